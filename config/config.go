package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LLMBAIT_"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Search    SearchConfig
	Fetch     FetchConfig
	LLM       LLMConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Webhook   WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// APIURL is where the MCP bridge reaches the HTTP API.
	APIURL string // default: "http://localhost:8080"

	// APIKey is the key the MCP bridge presents to the HTTP API.
	APIKey string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent searches).
	MaxPages int // default: 4

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects go-rod/stealth before every navigation.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types blocked while rendering
	// pages for metadata. Search pages are never filtered.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// SnapshotMaxTokens caps the page text sent to the LLM.
	SnapshotMaxTokens int // default: 6000
}

// SearchConfig controls the search pipeline.
type SearchConfig struct {
	// EngineURL is the search engine home page.
	EngineURL string // default: "https://www.google.com"

	// RootSelector and ItemSelector locate the result list.
	RootSelector string // default: "#search"
	ItemSelector string // default: ".g"

	// ItemClass is added to injected nodes that would not otherwise match
	// ItemSelector (for example the first node of an empty list).
	ItemClass string // default: "g"

	NavigationPause time.Duration // default: 1s
	StepPause       time.Duration // default: 500ms
	ResultsPause    time.Duration // default: 2s
	InjectionPause  time.Duration // default: 500ms

	// DefaultTimeout bounds one invocation when the caller sets none.
	DefaultTimeout time.Duration // default: 120s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 300s
}

// FetchConfig controls the metadata fetch engines.
type FetchConfig struct {
	// HTTPTimeout is the deadline for the plain HTTP engine.
	HTTPTimeout time.Duration // default: 10s

	// BrowserFallback renders the page in the browser when the HTTP
	// engine fails or returns a JS shell.
	BrowserFallback bool // default: true
}

// LLMConfig controls the model behind extract, observe and act.
type LLMConfig struct {
	APIKey      string
	Model       string  // default: "gpt-4o-mini"
	BaseURL     string  // default: "https://api.openai.com/v1"
	Temperature float64 // default: 0
	MaxTokens   int     // default: 2048
	Timeout     time.Duration
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the metadata cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached metadata responses.
	MaxEntries int // default: 1000

	// TTL is how long an entry stays fresh unless the caller asks for less.
	TTL time.Duration // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls completed-search delivery.
type WebhookConfig struct {
	// Timeout is the per-attempt delivery deadline.
	Timeout time.Duration // default: 10s
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is read first; variables already
// set in the environment win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: failed to read .env", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host:   envOr("HOST", "0.0.0.0"),
			Port:   envIntOr("PORT", 8080),
			Mode:   envOr("MODE", "release"),
			APIURL: envOr("API_URL", "http://localhost:8080"),
			APIKey: envOr("API_KEY", ""),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("HEADLESS", true),
			MaxPages:          envIntOr("MAX_PAGES", 4),
			Proxy:             envOr("PROXY", ""),
			NoSandbox:         envBoolOr("NO_SANDBOX", false),
			BrowserBin:        envOr("BROWSER_BIN", ""),
			Stealth:           envBoolOr("STEALTH", true),
			SnapshotMaxTokens: envIntOr("SNAPSHOT_MAX_TOKENS", 6000),
			BlockedResourceTypes: envSliceOr("BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Search: SearchConfig{
			EngineURL:       envOr("ENGINE_URL", "https://www.google.com"),
			RootSelector:    envOr("ROOT_SELECTOR", "#search"),
			ItemSelector:    envOr("ITEM_SELECTOR", ".g"),
			ItemClass:       envOr("ITEM_CLASS", "g"),
			NavigationPause: envDurationOr("NAVIGATION_PAUSE", time.Second),
			StepPause:       envDurationOr("STEP_PAUSE", 500*time.Millisecond),
			ResultsPause:    envDurationOr("RESULTS_PAUSE", 2*time.Second),
			InjectionPause:  envDurationOr("INJECTION_PAUSE", 500*time.Millisecond),
			DefaultTimeout:  envDurationOr("DEFAULT_TIMEOUT", 120*time.Second),
			MaxTimeout:      envDurationOr("MAX_TIMEOUT", 300*time.Second),
		},
		Fetch: FetchConfig{
			HTTPTimeout:     envDurationOr("HTTP_TIMEOUT", 10*time.Second),
			BrowserFallback: envBoolOr("BROWSER_FALLBACK", true),
		},
		LLM: LLMConfig{
			APIKey:      envOr("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:       envOr("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:     envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
			Temperature: envFloatOr("LLM_TEMPERATURE", 0),
			MaxTokens:   envIntOr("LLM_MAX_TOKENS", 2048),
			Timeout:     envDurationOr("LLM_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("AUTH_ENABLED", true),
			APIKeys: envSliceOr("API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RATE_RPS", 1.0),
			Burst:             envIntOr("RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Timeout: envDurationOr("WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}
}

// --- helper functions ---

func lookup(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envOr(key, fallback string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := lookup(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := lookup(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
