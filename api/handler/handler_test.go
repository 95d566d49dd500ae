package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/search"
)

func init() { gin.SetMode(gin.TestMode) }

type stubSearcher struct {
	outcome *models.SearchOutcome
	err     error

	got      *models.SearchRequest
	deadline time.Duration
}

func (s *stubSearcher) Run(ctx context.Context, req *models.SearchRequest) (*models.SearchOutcome, error) {
	s.got = req
	if d, ok := ctx.Deadline(); ok {
		s.deadline = time.Until(d)
	}
	return s.outcome, s.err
}

type stubLookup struct{ resp *models.MetadataResponse }

func (s stubLookup) Lookup(_ context.Context, req *models.MetadataRequest) *models.MetadataResponse {
	r := *s.resp
	r.URL = req.URL
	return &r
}

type stubPool struct{ stats models.PoolStats }

func (s stubPool) Stats() models.PoolStats { return s.stats }

func post(t *testing.T, h gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func fedoraOutcome() *models.SearchOutcome {
	sel := 1
	return &models.SearchOutcome{
		Query: "best linux distro",
		Results: []models.SearchResult{
			{Title: "Ubuntu", URL: "https://ubuntu.com", Rank: 1, RelevanceScore: 7.5},
			{Title: "Fedora", URL: "https://fedora.example", Rank: 2, RelevanceScore: 9.2, IsInjected: true},
		},
		SelectedIndex: &sel,
		TotalResults:  2,
		ElapsedMillis: 1234,
	}
}

func TestSearch_Success(t *testing.T) {
	s := &stubSearcher{outcome: fedoraOutcome()}
	var events []search.Event
	sink := sinkFunc(func(e search.Event) { events = append(events, e) })

	w := post(t, Search(SearchDeps{Searcher: s, Analytics: sink, MaxTimeout: time.Minute}),
		`{"objective":"pick a distro","search_prompt":"best linux distro","timeout":200}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ID)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, 2, resp.Outcome.TotalResults)

	// Defaults are applied before the pipeline runs.
	require.NotNil(t, s.got)
	assert.Equal(t, models.DefaultMaxResults, s.got.MaxResults)
	assert.True(t, s.got.ShouldWait())

	// The requested 200s is clamped to the configured maximum.
	assert.LessOrEqual(t, s.deadline, time.Minute)
	assert.Greater(t, s.deadline, 50*time.Second)

	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].Auxiliary["selectedResultIndex"].Value)
}

func TestSearch_InvalidRequest(t *testing.T) {
	s := &stubSearcher{}
	w := post(t, Search(SearchDeps{Searcher: s}), `{"objective":"x"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, s.got)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
}

func TestSearch_PipelineError(t *testing.T) {
	cause := models.NewSearchError(models.ErrCodeNavigation, "navigate", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	s := &stubSearcher{err: fmt.Errorf("google search failed: %w", cause)}
	var events int
	sink := sinkFunc(func(search.Event) { events++ })

	w := post(t, Search(SearchDeps{Searcher: s, Analytics: sink}),
		`{"objective":"o","search_prompt":"q"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrCodeNavigation, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "google search failed")
	assert.Zero(t, events, "failed searches emit no analytics")
}

func TestMapErrorToStatus(t *testing.T) {
	cases := map[string]int{
		models.ErrCodeTimeout:          http.StatusGatewayTimeout,
		models.ErrCodeLLMFailure:       http.StatusBadGateway,
		models.ErrCodeExtraction:       http.StatusBadGateway,
		models.ErrCodeBrowserCrash:     http.StatusServiceUnavailable,
		models.ErrCodeLLMNotConfigured: http.StatusServiceUnavailable,
		models.ErrCodeInvalidInput:     http.StatusBadRequest,
		models.ErrCodeLLMRateLimited:   http.StatusTooManyRequests,
		models.ErrCodeUnauthorized:     http.StatusUnauthorized,
		"SOMETHING_ELSE":               http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, mapErrorToStatus(code), code)
	}
	assert.Equal(t, models.ErrCodeInternal, codeOf(errors.New("plain")))
}

func TestMetadata(t *testing.T) {
	lookup := stubLookup{resp: &models.MetadataResponse{
		Status:          models.MetadataStatusSuccess,
		Title:           "Example",
		MetaDescription: "An example page",
	}}

	w := post(t, Metadata(lookup), `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.MetadataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.MetadataStatusSuccess, resp.Status)
	assert.Equal(t, "https://example.com", resp.URL)
	assert.Equal(t, "An example page", resp.MetaDescription)

	w = post(t, Metadata(lookup), `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.MetadataStatusError, resp.Status)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestHealth(t *testing.T) {
	get := func(pool PoolStatter) models.HealthResponse {
		r := gin.New()
		r.GET("/", Health(pool, time.Now().Add(-time.Minute)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := get(stubPool{models.PoolStats{MaxSessions: 4, ActiveSessions: 1}})
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.Equal(t, 4, resp.PoolStats.MaxSessions)

	assert.Equal(t, "degraded", get(stubPool{models.PoolStats{MaxSessions: 2, ActiveSessions: 2}}).Status)
	assert.Equal(t, "healthy", get(nil).Status)
}

type sinkFunc func(search.Event)

func (f sinkFunc) Log(e search.Event) { f(e) }
