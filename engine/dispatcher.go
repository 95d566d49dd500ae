package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher races engines with staged escalation: engine i starts after
// delays[i] unless an earlier engine already succeeded. The first success
// wins and cancels the rest.
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. Missing delays default to zero;
// memory may be nil.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *DomainMemory) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Dispatcher{engines: engines, delays: d, memory: memory}
}

// Engines returns the engine names in escalation order.
func (d *Dispatcher) Engines() []string {
	names := make([]string, len(d.engines))
	for i, e := range d.engines {
		names[i] = e.Name()
	}
	return names
}

// Dispatch returns the first successful fetch. A domain's remembered
// engine is tried alone first; if it fails the full race runs.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}
	domain := hostOf(req.URL)

	if remembered := d.memory.Get(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			result, err := eng.Fetch(ctx, req)
			if err == nil {
				slog.Debug("domain memory hit", "domain", domain, "engine", remembered)
				return result, nil
			}
			slog.Info("remembered engine failed, running full race",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Delete(domain)
			break
		}
	}

	return d.race(ctx, req, domain)
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type outcome struct {
		result *FetchResult
		err    error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan outcome, len(d.engines))
	var wg sync.WaitGroup
	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()
			if delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-t.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}
			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			outcomes <- outcome{result: result, err: err}
		}(eng, d.delays[i])
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var lastErr error
	for o := range outcomes {
		if o.err != nil {
			lastErr = o.err
			continue
		}
		cancel()
		slog.Debug("engine won race", "engine", o.result.EngineName, "url", req.URL)
		d.memory.Set(domain, o.result.EngineName)
		return o.result, nil
	}

	if lastErr == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
