package engine

import (
	"sync"
	"time"
)

type domainEntry struct {
	engineName string
	expiresAt  time.Time
}

// DomainMemory remembers which engine last served each domain, so repeat
// lookups skip engines known to fail there. Expired entries are dropped on
// read and by a periodic sweep.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]domainEntry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	stop    sync.Once
}

// NewDomainMemory creates a DomainMemory and starts its sweep goroutine.
// Call Stop to end it.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		entries: make(map[string]domainEntry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go dm.sweepLoop(time.Hour)
	return dm
}

// Get returns the remembered engine name for a domain, or "".
func (dm *DomainMemory) Get(domain string) string {
	if dm == nil {
		return ""
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	e, ok := dm.entries[domain]
	if !ok {
		return ""
	}
	if dm.now().After(e.expiresAt) {
		delete(dm.entries, domain)
		return ""
	}
	return e.engineName
}

// Set records which engine succeeded for a domain.
func (dm *DomainMemory) Set(domain, engineName string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.entries[domain] = domainEntry{engineName: engineName, expiresAt: dm.now().Add(dm.ttl)}
}

// Delete forgets a domain.
func (dm *DomainMemory) Delete(domain string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.entries, domain)
}

// Stop terminates the sweep goroutine.
func (dm *DomainMemory) Stop() {
	dm.stop.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) sweep() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	now := dm.now()
	for k, e := range dm.entries {
		if now.After(e.expiresAt) {
			delete(dm.entries, k)
		}
	}
}

func (dm *DomainMemory) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			dm.sweep()
		}
	}
}
