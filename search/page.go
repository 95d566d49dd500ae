// Package search runs the search-as-an-agent pipeline: navigate to a search
// engine, inject operator-supplied results, extract every visible result,
// correlate injected entries and ask which result an agent would pick.
//
// The package never talks to a browser directly. Everything it needs from
// the page goes through the Page interface, which the browser package
// implements on top of go-rod and an LLM.
package search

import (
	"context"
	"encoding/json"
	"time"
)

// MarkerAttribute is the DOM attribute carrying an injected node's
// correlation token.
const MarkerAttribute = "data-result-id"

// ActionDescriptor is one action proposed by Page.Observe.
type ActionDescriptor struct {
	// Selector locates the target element. Empty means the observer found
	// nothing it could act on.
	Selector string `json:"selector"`

	Description string   `json:"description,omitempty"`
	Method      string   `json:"method,omitempty"`
	Arguments   []string `json:"arguments,omitempty"`

	// Href is the resolved link target of the element, when it is a link.
	Href string `json:"href,omitempty"`
}

// Page is the page-automation capability the pipeline drives. Calls are
// issued strictly one at a time; implementations may assume no concurrent
// use from a single pipeline run.
type Page interface {
	// Goto navigates the page to url.
	Goto(ctx context.Context, url string) error

	// Act performs a natural-language instruction ("Click the search box").
	Act(ctx context.Context, instruction string) error

	// WaitFor pauses for d or until ctx is done.
	WaitFor(ctx context.Context, d time.Duration) error

	// Evaluate runs a JS function expression in the page with the given
	// JSON-serialisable arguments and returns its JSON-encoded result.
	Evaluate(ctx context.Context, js string, args ...any) (json.RawMessage, error)

	// Extract reads the rendered page and returns a JSON document matching
	// schema, following instruction.
	Extract(ctx context.Context, instruction string, schema json.RawMessage) (json.RawMessage, error)

	// Observe returns zero or one actions an agent would take to satisfy
	// instruction.
	Observe(ctx context.Context, instruction string) ([]ActionDescriptor, error)
}

// AuxValue is one auxiliary field of an analytics event. Values are always
// serialised strings; Type names the original type.
type AuxValue struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Event is a structured analytics record.
type Event struct {
	Category  string              `json:"category"`
	Message   string              `json:"message"`
	Auxiliary map[string]AuxValue `json:"auxiliary,omitempty"`
}

// AnalyticsSink receives analytics events. Log is fire-and-forget.
type AnalyticsSink interface {
	Log(Event)
}
