package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/llmbait/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.MetadataResponse
	createdAt time.Time
}

// Cache is a TTL-bounded in-memory cache for metadata responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	done       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries responses, each fresh for
// ttl. A background goroutine evicts expired entries every ttl/2.
func New(maxEntries int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop(ttl / 2)
	return c
}

// Key derives a cache key from a URL. Scheme and host are case-folded and
// the fragment is dropped; path and query stay as given.
func Key(rawURL string) string {
	norm := strings.TrimSpace(rawURL)
	if u, err := url.Parse(norm); err == nil {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		norm = u.String()
	}
	h := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(h[:])
}

// Get retrieves a cached response younger than maxAge. A non-positive
// maxAge uses the cache TTL. Returns the response and whether it was a hit.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.MetadataResponse, bool) {
	if maxAge <= 0 || maxAge > c.ttl {
		maxAge = c.ttl
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}
	resp := *e.response
	return &resp, true
}

// Set stores a copy of resp. If the cache is at capacity the oldest entry
// is evicted to make room.
func (c *Cache) Set(key string, resp *models.MetadataResponse) {
	if c.maxEntries <= 0 {
		return
	}
	stored := *resp

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{response: &stored, createdAt: c.now()}
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the cleanup goroutine.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}
