// Package engine fetches pages for metadata lookups. A plain HTTP engine
// with a Chrome TLS fingerprint runs first; the browser engine takes over
// when HTTP fails or returns a JavaScript shell.
package engine

import (
	"context"
	"errors"
	"time"
)

// DefaultUserAgent is sent when a request names none.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ErrNeedsBrowser reports that a fetched page only renders with JavaScript.
var ErrNeedsBrowser = errors.New("page needs a browser to render")

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http", "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// RenderFunc renders a URL in a real browser.
type RenderFunc func(ctx context.Context, url string) (*FetchResult, error)

// BrowserEngine delegates to a browser through a callback so this package
// does not depend on the browser package.
type BrowserEngine struct {
	render RenderFunc
}

// NewBrowserEngine creates a BrowserEngine around render.
func NewBrowserEngine(render RenderFunc) *BrowserEngine {
	return &BrowserEngine{render: render}
}

func (e *BrowserEngine) Name() string { return "browser" }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, errors.New("browser: render func not configured")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	result, err := e.render(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	result.EngineName = e.Name()
	return result, nil
}
