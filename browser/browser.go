// Package browser drives a pooled headless Chromium through go-rod and
// implements search.Page on top of it. Natural-language steps (act, observe,
// extract) are resolved by an LLM reading a compact page snapshot.
package browser

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/llmbait/cleaner"
	"github.com/use-agent/llmbait/config"
	"github.com/use-agent/llmbait/models"
	"github.com/ysmood/gson"
)

// Browser manages the browser process and the page pool.
// It is safe for concurrent use.
type Browser struct {
	browser      *rod.Browser
	pagePool     rod.Pool[rod.Page]
	cfg          config.BrowserConfig
	cleaner      *cleaner.Cleaner
	agent        *Agent
	itemSelector string
	activePages  atomic.Int32
}

// New launches a headless browser and initialises the page pool.
// itemSelector locates result blocks for extraction snapshots.
func New(cfg config.BrowserConfig, itemSelector string, completer Completer) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), "en-US")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewSearchError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	rb := rod.New().ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		return nil, models.NewSearchError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	slog.Info("page pool created", "maxPages", maxPages)

	return &Browser{
		browser:      rb,
		pagePool:     rod.NewPagePool(maxPages),
		cfg:          cfg,
		cleaner:      cleaner.NewCleaner(),
		agent:        NewAgent(completer),
		itemSelector: itemSelector,
	}, nil
}

// newPage opens a tab with stealth and language headers installed. Both
// survive navigation, so reused pages keep them.
func (b *Browser) newPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
	}.Call(page)
	return page, nil
}

// Acquire borrows a page from the pool. The caller must Release the
// session. It blocks while every page is in use, until ctx is done.
func (b *Browser) Acquire(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(err, "acquire canceled")
	}

	type got struct {
		page *rod.Page
		err  error
	}
	ch := make(chan got, 1)
	go func() {
		page, err := b.pagePool.Get(b.newPage)
		ch <- got{page, err}
	}()

	var page *rod.Page
	select {
	case g := <-ch:
		if g.err != nil {
			return nil, models.NewSearchError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", g.err)
		}
		page = g.page
	case <-ctx.Done():
		// Hand the page back once the pool frees it.
		go func() {
			if g := <-ch; g.err == nil {
				b.pagePool.Put(g.page)
			}
		}()
		return nil, categorizeError(ctx.Err(), "timed out waiting for a free page")
	}
	b.activePages.Add(1)

	return &Session{
		page:    page,
		agent:   b.agent,
		cleaner: b.cleaner,
		snapshot: cleaner.SnapshotOptions{
			ItemSelector:    b.itemSelector,
			MarkerAttribute: markerAttribute,
			MaxTokens:       b.cfg.SnapshotMaxTokens,
		},
		release: func(p *rod.Page) {
			if navErr := p.Navigate("about:blank"); navErr != nil {
				slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
			}
			b.pagePool.Put(p)
			b.activePages.Add(-1)
		},
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (b *Browser) Stats() models.PoolStats {
	return models.PoolStats{
		MaxSessions:    b.cfg.MaxPages,
		ActiveSessions: int(b.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	slog.Info("browser shutdown complete")
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
