package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/llmbait/api/handler"
	"github.com/use-agent/llmbait/api/middleware"
	"github.com/use-agent/llmbait/config"
	"github.com/use-agent/llmbait/search"
	"github.com/use-agent/llmbait/webhook"
)

// Deps bundles what the routes need. Pool may be nil when the server runs
// without a browser (metadata only); Analytics and Notifier may be nil.
type Deps struct {
	Searcher  handler.Searcher
	Pool      handler.PoolStatter
	Metadata  handler.MetadataLookup
	Analytics search.AnalyticsSink
	Notifier  *webhook.Notifier
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(deps.Pool, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Search-as-an-agent
	protected.POST("/search", handler.Search(handler.SearchDeps{
		Searcher:       deps.Searcher,
		Analytics:      deps.Analytics,
		Notifier:       deps.Notifier,
		DefaultTimeout: cfg.Search.DefaultTimeout,
		MaxTimeout:     cfg.Search.MaxTimeout,
	}))

	// URL metadata
	protected.POST("/metadata", handler.Metadata(deps.Metadata))

	return r
}
