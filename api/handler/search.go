package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/report"
	"github.com/use-agent/llmbait/search"
	"github.com/use-agent/llmbait/webhook"
)

// Searcher runs one search invocation. *browser.Runner satisfies it.
type Searcher interface {
	Run(ctx context.Context, req *models.SearchRequest) (*models.SearchOutcome, error)
}

// SearchDeps are the collaborators of the search handler. Analytics and
// Notifier may be nil.
type SearchDeps struct {
	Searcher  Searcher
	Analytics search.AnalyticsSink
	Notifier  *webhook.Notifier

	// DefaultTimeout applies when the request sets none; MaxTimeout caps
	// whatever the request asks for.
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// Search returns a handler for POST /api/v1/search.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Run the pipeline under the request timeout.
//  3. Emit the analytics event and the optional webhook.
//  4. Respond with the outcome.
func Search(deps SearchDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		if req.Timeout == 0 && deps.DefaultTimeout > 0 {
			req.Timeout = int(deps.DefaultTimeout / time.Second)
		}
		req.Defaults()
		id := uuid.NewString()

		timeout := time.Duration(req.Timeout) * time.Second
		if deps.MaxTimeout > 0 && timeout > deps.MaxTimeout {
			timeout = deps.MaxTimeout
		}

		// ── 2. Run ──────────────────────────────────────────────────
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		outcome, err := deps.Searcher.Run(ctx, &req)

		// ── 3. Side channels ────────────────────────────────────────
		resp := models.SearchResponse{Success: err == nil, ID: id, Outcome: outcome}
		if err == nil && deps.Analytics != nil {
			deps.Analytics.Log(report.BuildEvent(outcome, req.Objective))
		}
		if req.WebhookURL != "" && deps.Notifier != nil {
			payload := resp
			if err != nil {
				payload.Error = &models.ErrorDetail{Code: codeOf(err), Message: err.Error()}
			}
			deps.Notifier.DeliverAsync(req.WebhookURL, req.WebhookSecret,
				webhook.NewEvent(webhook.EventSearchCompleted, id, payload))
		}

		// ── 4. Respond ──────────────────────────────────────────────
		if err != nil {
			slog.Warn("search failed", "id", id, "query", req.SearchPrompt, "error", err)
			respondError(c, id, err)
			return
		}
		slog.Info("search completed",
			"id", id,
			"query", req.SearchPrompt,
			"results", len(outcome.Results),
			"elapsed_ms", outcome.ElapsedMillis,
		)
		c.JSON(http.StatusOK, resp)
	}
}
