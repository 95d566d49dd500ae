// Package app wires configuration into the running components shared by
// the server and the CLI.
package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/use-agent/llmbait/browser"
	"github.com/use-agent/llmbait/cache"
	"github.com/use-agent/llmbait/config"
	"github.com/use-agent/llmbait/engine"
	"github.com/use-agent/llmbait/llm"
	"github.com/use-agent/llmbait/metadata"
	"github.com/use-agent/llmbait/search"
)

// domainMemoryTTL is how long a domain remembers its winning fetch engine.
const domainMemoryTTL = 24 * time.Hour

// Stack holds the long-lived components. Close releases them.
type Stack struct {
	LLM      *llm.Client
	Browser  *browser.Browser
	Runner   *browser.Runner
	Metadata *metadata.Service

	cache  *cache.Cache
	memory *engine.DomainMemory
}

// SearchOptions converts the search config section into pipeline options.
func SearchOptions(cfg config.SearchConfig) search.Options {
	return search.Options{
		EngineURL:       cfg.EngineURL,
		RootSelector:    cfg.RootSelector,
		ItemSelector:    cfg.ItemSelector,
		ItemClass:       cfg.ItemClass,
		NavigationPause: cfg.NavigationPause,
		StepPause:       cfg.StepPause,
		ResultsPause:    cfg.ResultsPause,
		InjectionPause:  cfg.InjectionPause,
	}
}

// LLMConfig converts the llm config section into client settings.
func LLMConfig(cfg config.LLMConfig) llm.Config {
	return llm.Config{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}
}

// FetchEngines builds the metadata engine chain: plain HTTP first, then
// the browser when render is non-nil and fallback is enabled.
func FetchEngines(cfg *config.Config, render engine.RenderFunc) ([]engine.Engine, []time.Duration) {
	engines := []engine.Engine{engine.NewHTTPEngine(cfg.Browser.Proxy)}
	delays := []time.Duration{0}
	if render != nil && cfg.Fetch.BrowserFallback {
		engines = append(engines, engine.NewBrowserEngine(render))
		delays = append(delays, cfg.Fetch.HTTPTimeout)
	}
	return engines, delays
}

// New launches the browser and builds every component. The caller must
// Close the stack.
func New(cfg *config.Config) (*Stack, error) {
	// ── 1. LLM ──────────────────────────────────────────────────────
	client := llm.NewClient(LLMConfig(cfg.LLM))
	if !client.Configured() {
		slog.Warn("LLM not configured: searches will fail until LLMBAIT_LLM_API_KEY is set")
	}

	// ── 2. Browser + search pipeline ────────────────────────────────
	b, err := browser.New(cfg.Browser, cfg.Search.ItemSelector, client)
	if err != nil {
		return nil, err
	}
	searcher := search.NewSearcher(SearchOptions(cfg.Search), nil)

	// ── 3. Metadata: engines, domain memory, cache ──────────────────
	render := func(ctx context.Context, url string) (*engine.FetchResult, error) {
		r, err := b.Render(ctx, url)
		if err != nil {
			return nil, err
		}
		return &engine.FetchResult{HTML: r.HTML, Title: r.Title, FinalURL: r.FinalURL}, nil
	}
	engines, delays := FetchEngines(cfg, render)
	memory := engine.NewDomainMemory(domainMemoryTTL)
	dispatcher := engine.NewDispatcher(engines, delays, memory)
	slog.Info("metadata dispatcher ready", "engines", dispatcher.Engines())

	mc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	timeout := cfg.Fetch.HTTPTimeout * 3

	return &Stack{
		LLM:      client,
		Browser:  b,
		Runner:   browser.NewRunner(b, searcher),
		Metadata: metadata.NewService(dispatcher, mc, timeout),
		cache:    mc,
		memory:   memory,
	}, nil
}

// Close stops background sweepers and kills the browser.
func (s *Stack) Close() {
	s.cache.Stop()
	s.memory.Stop()
	s.Browser.Close()
}

// InitLogger configures slog based on the LogConfig.
func InitLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
