// Package metadata looks up the title and meta description of a URL, the
// way an agent's scrape_url_metadata tool does. Failures are reported in
// the response envelope rather than as Go errors.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/llmbait/cache"
	"github.com/use-agent/llmbait/cleaner"
	"github.com/use-agent/llmbait/engine"
	"github.com/use-agent/llmbait/models"
)

// Cache status values reported in MetadataResponse.CacheStatus.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

// Fetcher retrieves a page. *engine.Dispatcher satisfies it.
type Fetcher interface {
	Dispatch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// Service resolves metadata requests through a fetcher and a cache.
type Service struct {
	fetcher Fetcher
	cache   *cache.Cache
	timeout time.Duration
}

// NewService creates a Service. cache may be nil.
func NewService(fetcher Fetcher, c *cache.Cache, timeout time.Duration) *Service {
	return &Service{fetcher: fetcher, cache: c, timeout: timeout}
}

// Lookup returns the metadata envelope for req.URL. Only successful
// lookups are cached.
func (s *Service) Lookup(ctx context.Context, req *models.MetadataRequest) *models.MetadataResponse {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.MetadataError(req.URL, fmt.Errorf("invalid URL %q: only absolute http(s) URLs are supported", req.URL))
	}

	// ── 1. Cache lookup ───────────────────────────────────────────────
	key := cache.Key(req.URL)
	cacheStatus := CacheBypass
	if s.cache != nil && req.MaxAge >= 0 {
		cacheStatus = CacheMiss
		if cached, ok := s.cache.Get(key, time.Duration(req.MaxAge)*time.Millisecond); ok {
			cached.CacheStatus = CacheHit
			return cached
		}
	}

	// ── 2. Fetch ──────────────────────────────────────────────────────
	start := time.Now()
	result, err := s.fetcher.Dispatch(ctx, &engine.FetchRequest{
		URL:       req.URL,
		UserAgent: engine.DefaultUserAgent,
		Timeout:   s.timeout,
	})
	if err != nil {
		slog.Warn("metadata fetch failed", "url", req.URL, "error", err)
		resp := models.MetadataError(req.URL, err)
		resp.CacheStatus = cacheStatus
		return resp
	}

	// ── 3. Parse ──────────────────────────────────────────────────────
	pageURL := result.FinalURL
	if pageURL == "" {
		pageURL = req.URL
	}
	meta, err := cleaner.ExtractMetadata(result.HTML, pageURL)
	if err != nil {
		resp := models.MetadataError(req.URL, fmt.Errorf("parse page: %w", err))
		resp.CacheStatus = cacheStatus
		return resp
	}
	if meta.Title == "" {
		meta.Title = result.Title
	}

	resp := &models.MetadataResponse{
		Status:          models.MetadataStatusSuccess,
		URL:             req.URL,
		Title:           meta.Title,
		MetaDescription: meta.Description,
		EngineUsed:      result.EngineName,
	}
	slog.Info("metadata resolved",
		"url", req.URL, "engine", result.EngineName, "elapsed", time.Since(start))

	if cacheStatus == CacheMiss {
		s.cache.Set(key, resp)
	}
	resp.CacheStatus = cacheStatus
	return resp
}
