package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/llmbait/models"
)

func TestCorrelate(t *testing.T) {
	tokens := newTokenMap(1)
	tokens.add("K3X9QZ", models.InjectedEntry{Title: "Best Fedoras", URL: "https://bait.example"})

	records := []Record{
		{Title: "Organic", URL: "https://shop.example", Rank: 1, Score: 6},
		{Title: "Best Fedoras", URL: "https://bait.example", Rank: 2, Score: 8}, // marker lost by extractor
		{Title: "Tagged", URL: "https://bait.example/x", Rank: 3, Score: 9, Marker: "K3X9QZ"},
		{Title: "Forged", URL: "https://y.example", Rank: 4, Score: 2, Marker: "ZZZZZZ"},
		{Title: "Case", URL: "https://z.example", Rank: 5, Score: 1, Marker: "k3x9qz"},
	}

	got := Correlate(records, tokens)
	want := []bool{false, false, true, false, false}
	for i, r := range got {
		assert.Equal(t, want[i], r.IsInjected, "record %d (%s)", i, r.Title)
		assert.Equal(t, records[i].Title, r.Title)
		assert.Equal(t, records[i].Rank, r.Rank)
		assert.Equal(t, records[i].Score, r.RelevanceScore)
	}
}

func TestCorrelate_FailClosedWithoutTokens(t *testing.T) {
	records := []Record{{Title: "a", Marker: "AAAAAA"}, {Title: "b"}, {Title: "c", Marker: ""}}
	for _, r := range Correlate(records, TokenMap{}) {
		assert.False(t, r.IsInjected)
	}
}

func TestCorrelate_Idempotent(t *testing.T) {
	tokens := newTokenMap(2)
	tokens.add("AAAAAA", models.InjectedEntry{})
	tokens.add("BBBBBB", models.InjectedEntry{})
	records := []Record{{Marker: "AAAAAA"}, {Marker: "CCCCCC"}, {}, {Marker: "BBBBBB"}}

	first := Correlate(records, tokens)
	second := Correlate(records, tokens)
	assert.Equal(t, first, second)
}

func TestCorrelate_Empty(t *testing.T) {
	assert.Empty(t, Correlate(nil, TokenMap{}))
}
