package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/models"
)

func TestResolveSelection(t *testing.T) {
	records := []Record{
		{Title: "a", URL: "https://www.shop.example/hats/"},
		{Title: "b", URL: "https://bait.example/fedora", Marker: "K3X9QZ"},
		{Title: "c", URL: "https://news.example/?q=1"},
	}

	tests := []struct {
		name    string
		action  *ActionDescriptor
		records []Record
		want    *int
	}{
		{"no action", nil, records, nil},
		{"empty selector", &ActionDescriptor{Selector: "  "}, records, nil},
		{"no results", &ActionDescriptor{Selector: "a"}, nil, nil},
		{"href match", &ActionDescriptor{Selector: "a", Href: "http://shop.example/hats"}, records, intPtr(0)},
		{"href with query", &ActionDescriptor{Selector: "a", Href: "https://news.example/?q=1#top"}, records, intPtr(2)},
		{"marker in selector", &ActionDescriptor{Selector: `div.g[data-result-id="K3X9QZ"] > a`}, records, intPtr(1)},
		{"unresolvable falls back to first", &ActionDescriptor{Selector: "xpath=/html/body/div[3]/a"}, records, intPtr(0)},
		{"unknown href falls back to first", &ActionDescriptor{Selector: "a", Href: "https://elsewhere.example"}, records, intPtr(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSelection(tt.action, tt.records))
		})
	}
}

func TestSelectResult_NoAction(t *testing.T) {
	page := newFakePage()
	idx, action, err := selectResult(context.Background(), page, "objective", []Record{{Title: "a"}})
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Nil(t, action)
}

func TestSelectResult_ObserveFailure(t *testing.T) {
	page := newFakePage()
	page.observeErr = errors.New("observe timed out")

	_, _, err := selectResult(context.Background(), page, "objective", nil)
	var se *models.SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeObservation, se.Code)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "example.com/a", normalizeURL("https://www.Example.com/a/"))
	assert.Equal(t, "example.com/a?b=1", normalizeURL("http://example.com/a?b=1#frag"))
	assert.Equal(t, "", normalizeURL("  "))
	assert.Equal(t, "/relative", normalizeURL("/relative/"))
}

func intPtr(i int) *int { return &i }
