package browser

import (
	"context"
	"errors"

	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/search"
)

// Runner runs each search on its own pooled session.
type Runner struct {
	browser  *Browser
	searcher *search.Searcher
}

// NewRunner pairs a browser with a searcher.
func NewRunner(b *Browser, s *search.Searcher) *Runner {
	return &Runner{browser: b, searcher: s}
}

// Run borrows a session, runs req on it and returns the session.
func (r *Runner) Run(ctx context.Context, req *models.SearchRequest) (*models.SearchOutcome, error) {
	session, err := r.browser.Acquire(ctx)
	if err != nil {
		return nil, models.NewSearchError(codeOf(err), "search failed", err)
	}
	defer session.Release()
	return r.searcher.Search(ctx, session, req)
}

func codeOf(err error) string {
	var se *models.SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return models.ErrCodeSearchFailed
}

// Stats reports pool usage.
func (r *Runner) Stats() models.PoolStats {
	return r.browser.Stats()
}
