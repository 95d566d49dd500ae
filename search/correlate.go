package search

import "github.com/use-agent/llmbait/models"

// Correlate converts extraction records into search results, marking a
// result as injected only when its marker is a key of tokens. Titles and
// URLs are never consulted: an injected entry is whatever carries a live
// token, nothing else. Order is preserved and the input is not modified.
func Correlate(records []Record, tokens TokenMap) []models.SearchResult {
	out := make([]models.SearchResult, len(records))
	for i, r := range records {
		out[i] = models.SearchResult{
			Title:          r.Title,
			URL:            r.URL,
			Description:    r.Description,
			Rank:           r.Rank,
			RelevanceScore: r.Score,
			IsInjected:     r.Marker != "" && tokens.Contains(r.Marker),
		}
	}
	return out
}
