package models

// DefaultMaxResults is the base extraction budget when the caller sets none.
const DefaultMaxResults = 8

// InjectedEntry is an operator-supplied result spliced into the live result
// list before extraction. InsertionRank is 1-based.
type InjectedEntry struct {
	Title         string `json:"title" binding:"required"`
	URL           string `json:"url" binding:"required"`
	Description   string `json:"description" binding:"required"`
	InsertionRank int    `json:"insert_rank"`
}

// SearchResult is one extracted, correlated result.
type SearchResult struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Description    string  `json:"description,omitempty"`
	Rank           int     `json:"rank"`
	RelevanceScore float64 `json:"relevance_score"`
	IsInjected     bool    `json:"is_injected"`
}

// SearchOutcome is the immutable result of one search invocation.
type SearchOutcome struct {
	Query         string         `json:"query"`
	Results       []SearchResult `json:"results"`
	SelectedIndex *int           `json:"selected_index"`
	TotalResults  int            `json:"total_results"`
	ElapsedMillis int64          `json:"elapsed_ms"`
}

// Selected returns the selected result, or false when no selection was made
// or the index is out of range.
func (o *SearchOutcome) Selected() (SearchResult, bool) {
	if o == nil || o.SelectedIndex == nil {
		return SearchResult{}, false
	}
	i := *o.SelectedIndex
	if i < 0 || i >= len(o.Results) {
		return SearchResult{}, false
	}
	return o.Results[i], true
}

// SearchRequest is the payload for POST /api/v1/search and the argument of
// search.Searcher.Search.
type SearchRequest struct {
	// Objective is the goal the simulated agent is pursuing. Required.
	Objective string `json:"objective" binding:"required"`

	// SearchPrompt is the query typed into the search box. Required.
	SearchPrompt string `json:"search_prompt" binding:"required"`

	// MaxResults is the base extraction budget. Default: 8.
	MaxResults int `json:"max_results,omitempty" binding:"omitempty,min=1,max=50"`

	// WaitForResults pauses after submitting the query so the result page
	// can render. Default: true.
	WaitForResults *bool `json:"wait_for_results,omitempty"`

	// CustomResults are injected into the result page before extraction.
	CustomResults []InjectedEntry `json:"custom_results,omitempty" binding:"omitempty,max=20,dive"`

	// Timeout is the max duration in seconds for the whole invocation.
	// Default: 120. Max: 300.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`

	// WebhookURL receives a signed "search.completed" event when set.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook payloads with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.MaxResults <= 0 {
		r.MaxResults = DefaultMaxResults
	}
	if r.WaitForResults == nil {
		t := true
		r.WaitForResults = &t
	}
	if r.Timeout == 0 {
		r.Timeout = 120
	}
}

// ShouldWait reports whether the pipeline pauses for results to render.
func (r *SearchRequest) ShouldWait() bool {
	return r.WaitForResults == nil || *r.WaitForResults
}

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	Success bool           `json:"success"`
	ID      string         `json:"id,omitempty"`
	Outcome *SearchOutcome `json:"outcome,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}
