package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/llmbait/models"
)

// Options controls where the pipeline searches and how long it pauses
// between page steps.
type Options struct {
	// EngineURL is the search engine home page.
	EngineURL string

	// RootSelector and ItemSelector locate the result list.
	RootSelector string
	ItemSelector string

	// ItemClass is given to an injected node that the item selector would
	// not otherwise match.
	ItemClass string

	NavigationPause time.Duration // after Goto
	StepPause       time.Duration // after cookie consent, click and type
	ResultsPause    time.Duration // after submitting, when waiting for results
	InjectionPause  time.Duration // after injection
}

// DefaultOptions returns the Google defaults.
func DefaultOptions() Options {
	return Options{
		EngineURL:       "https://www.google.com",
		RootSelector:    DefaultRootSelector,
		ItemSelector:    DefaultItemSelector,
		ItemClass:       DefaultItemClass,
		NavigationPause: 1000 * time.Millisecond,
		StepPause:       500 * time.Millisecond,
		ResultsPause:    2000 * time.Millisecond,
		InjectionPause:  500 * time.Millisecond,
	}
}

// Searcher runs search invocations. It holds no per-invocation state and is
// safe to reuse; each Search gets its own token map and outcome.
type Searcher struct {
	opts     Options
	injector *Injector
	now      func() time.Time
}

// NewSearcher creates a Searcher. A nil tokens source uses crypto/rand.
func NewSearcher(opts Options, tokens *TokenSource) *Searcher {
	if opts.EngineURL == "" {
		opts.EngineURL = DefaultOptions().EngineURL
	}
	inj := NewInjector(tokens, opts.RootSelector, opts.ItemSelector, opts.ItemClass)
	opts.RootSelector = inj.rootSelector
	opts.ItemSelector = inj.itemSelector
	opts.ItemClass = inj.itemClass
	return &Searcher{opts: opts, injector: inj, now: time.Now}
}

// Search runs the whole pipeline against page:
//
//  1. Navigate       – open the engine home page
//  2. Consent        – accept cookies, best effort
//  3. Query          – click, type and submit the search prompt
//  4. Inject         – splice custom results, tagging each with a token
//  5. Extract        – read every visible result with a relevance score
//  6. Correlate      – mark records whose marker is a live token
//  7. Select         – ask which result an agent would click
//  8. Assemble       – build the immutable outcome
//
// Any failure is returned as a *models.SearchError reading
// "search failed: <cause>", with the cause available through errors.As.
func (s *Searcher) Search(ctx context.Context, page Page, req *models.SearchRequest) (*models.SearchOutcome, error) {
	start := s.now()

	if req == nil {
		return nil, wrapFailure(models.NewSearchError(models.ErrCodeInvalidInput, "request is required", nil))
	}
	if strings.TrimSpace(req.Objective) == "" || strings.TrimSpace(req.SearchPrompt) == "" {
		return nil, wrapFailure(models.NewSearchError(models.ErrCodeInvalidInput, "objective and search prompt are required", nil))
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = models.DefaultMaxResults
	}

	slog.Info("starting search",
		"objective", req.Objective,
		"query", req.SearchPrompt,
		"customResults", len(req.CustomResults),
	)

	// ── 1-3. Navigate and run the query ─────────────────────────────
	if err := s.runQuery(ctx, page, req); err != nil {
		return nil, wrapFailure(err)
	}

	// ── 4. Inject ───────────────────────────────────────────────────
	tokens, placements, err := s.injector.Inject(ctx, page, req.CustomResults)
	if err != nil {
		return nil, wrapFailure(err)
	}
	if tokens.Len() > 0 {
		if err := page.WaitFor(ctx, s.opts.InjectionPause); err != nil {
			return nil, wrapFailure(err)
		}
		s.logPageState(ctx, page, placements)
	}

	// ── 5. Extract ──────────────────────────────────────────────────
	budget := maxResults + len(req.CustomResults)
	records, total, err := extractResults(ctx, page, req.Objective, budget, s.opts.ItemSelector)
	if err != nil {
		return nil, wrapFailure(err)
	}
	slog.Debug("extraction complete", "records", len(records), "totalResults", total)

	// ── 6. Correlate ────────────────────────────────────────────────
	results := Correlate(records, tokens)

	// ── 7. Select ───────────────────────────────────────────────────
	selected, action, err := selectResult(ctx, page, req.Objective, records)
	if err != nil {
		return nil, wrapFailure(err)
	}
	if action != nil {
		slog.Debug("observed agent action", "selector", action.Selector, "href", action.Href, "index", derefIndex(selected))
	}

	// ── 8. Assemble ─────────────────────────────────────────────────
	outcome := &models.SearchOutcome{
		Query:         req.SearchPrompt,
		Results:       results,
		SelectedIndex: selected,
		TotalResults:  total,
		ElapsedMillis: s.now().Sub(start).Milliseconds(),
	}

	slog.Info("search complete",
		"query", outcome.Query,
		"results", len(outcome.Results),
		"selectedIndex", derefIndex(outcome.SelectedIndex),
		"elapsedMs", outcome.ElapsedMillis,
	)
	return outcome, nil
}

// runQuery navigates to the engine, clears the cookie dialog if there is
// one, and submits the search prompt.
func (s *Searcher) runQuery(ctx context.Context, page Page, req *models.SearchRequest) error {
	if err := page.Goto(ctx, s.opts.EngineURL); err != nil {
		return models.NewSearchError(models.ErrCodeNavigation, "navigation to search engine failed", err)
	}
	if err := page.WaitFor(ctx, s.opts.NavigationPause); err != nil {
		return err
	}

	s.acceptCookies(ctx, page)

	steps := []string{
		"Click the search box",
		fmt.Sprintf("Type %q into the search box", req.SearchPrompt),
	}
	for _, step := range steps {
		if err := page.Act(ctx, step); err != nil {
			return models.NewSearchError(models.ErrCodeActionFailed, fmt.Sprintf("action %q failed", step), err)
		}
		if err := page.WaitFor(ctx, s.opts.StepPause); err != nil {
			return err
		}
	}

	if err := page.Act(ctx, "Press Enter to search"); err != nil {
		return models.NewSearchError(models.ErrCodeActionFailed, "submitting the search failed", err)
	}
	if req.ShouldWait() {
		if err := page.WaitFor(ctx, s.opts.ResultsPause); err != nil {
			return err
		}
	}
	return nil
}

// acceptCookies dismisses the consent dialog. The dialog is often absent,
// so failures are expected and ignored.
func (s *Searcher) acceptCookies(ctx context.Context, page Page) {
	if err := page.Act(ctx, "Accept all cookies"); err != nil {
		slog.Debug("cookie consent skipped", "error", err)
		return
	}
	if err := page.WaitFor(ctx, s.opts.StepPause); err != nil {
		slog.Debug("cookie consent pause interrupted", "error", err)
	}
}

// logPageState writes a debug trace of the result list after injection.
func (s *Searcher) logPageState(ctx context.Context, page Page, placements []Placement) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	state, err := s.injector.Probe(ctx, page)
	if err != nil {
		slog.Debug("page probe failed", "error", err)
		return
	}
	indices := make([]int, len(placements))
	for i, p := range placements {
		indices[i] = p.Index
	}
	slog.Debug("result list after injection",
		"total", state.Total,
		"marked", state.Marked,
		"indices", indices,
	)
}

// wrapFailure wraps err as the pipeline-level failure. The outer error keeps
// the inner code so callers can map it to a status.
func wrapFailure(err error) error {
	code := models.ErrCodeSearchFailed
	var se *models.SearchError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = models.ErrCodeTimeout
	case errors.As(err, &se):
		code = se.Code
	}
	return models.NewSearchError(code, "search failed", err)
}

func derefIndex(i *int) int {
	if i == nil {
		return -1
	}
	return *i
}
