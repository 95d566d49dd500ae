package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/use-agent/llmbait/models"
)

// Relevance scores are reported on a 1-10 scale; anything outside [0, 10]
// is clamped.
const (
	minScore = 0.0
	maxScore = 10.0
)

// maxRank bounds reported ranks and totals before they are converted to int.
const maxRank = math.MaxInt32

// extractionSchema is the JSON schema handed to Page.Extract.
var extractionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "url": {"type": "string"},
          "description": {"type": "string"},
          "rank": {"type": "number"},
          "extractorRelevanceScore": {"type": "number"},
          "resultId": {"type": "string"}
        },
        "required": ["title", "url", "rank", "extractorRelevanceScore"]
      }
    },
    "totalResults": {"type": "number"}
  },
  "required": ["results", "totalResults"]
}`)

// Record is one validated extraction record. Marker is the value of the
// result's hidden data-result-id attribute as reported by the extractor, or
// empty.
type Record struct {
	Title       string
	URL         string
	Description string
	Rank        int
	Score       float64
	Marker      string
}

type rawRecord struct {
	Title       *string  `json:"title"`
	URL         *string  `json:"url"`
	Description *string  `json:"description"`
	Rank        *float64 `json:"rank"`
	Score       *float64 `json:"extractorRelevanceScore"`
	ResultID    *string  `json:"resultId"`
}

type rawExtraction struct {
	Results      *[]rawRecord `json:"results"`
	TotalResults *float64     `json:"totalResults"`
}

// extractionInstruction builds the natural-language instruction for
// Page.Extract.
func extractionInstruction(objective string, budget int, itemSelector string) string {
	return fmt.Sprintf(
		"Extract the first %d search results with their titles, URLs, descriptions, and positions. "+
			"Look for all elements matching %q in the search results, including any that have a %q attribute; "+
			"when a result carries that attribute, report its value in resultId. "+
			"For each result, determine how relevant it is to the objective: %q. "+
			"Rate the relevance of the result on a scale of 1 to 10 in extractorRelevanceScore, using decimal precision to avoid ties.",
		budget, itemSelector, MarkerAttribute, objective,
	)
}

// extractResults asks the page for up to budget results and validates the
// payload. Any failure is returned as an EXTRACTION_FAILED error.
func extractResults(ctx context.Context, page Page, objective string, budget int, itemSelector string) ([]Record, int, error) {
	raw, err := page.Extract(ctx, extractionInstruction(objective, budget, itemSelector), extractionSchema)
	if err != nil {
		return nil, 0, models.NewSearchError(models.ErrCodeExtraction, "extraction failed", err)
	}
	records, total, err := parseExtraction(raw, budget)
	if err != nil {
		return nil, 0, models.NewSearchError(models.ErrCodeExtraction, "extraction returned an invalid payload", err)
	}
	return records, total, nil
}

// parseExtraction validates raw against the extraction schema and converts
// it into records. Records beyond budget are dropped.
func parseExtraction(raw json.RawMessage, budget int) ([]Record, int, error) {
	var payload rawExtraction
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}
	if payload.Results == nil {
		return nil, 0, fmt.Errorf("missing results array")
	}

	records := make([]Record, 0, len(*payload.Results))
	for i, r := range *payload.Results {
		if r.Title == nil || r.URL == nil {
			return nil, 0, fmt.Errorf("result %d: title and url are required", i)
		}
		if r.Score == nil {
			return nil, 0, fmt.Errorf("result %d: extractorRelevanceScore is required", i)
		}
		title := strings.TrimSpace(*r.Title)
		url := strings.TrimSpace(*r.URL)
		if title == "" && url == "" {
			continue
		}

		rec := Record{
			Title: title,
			URL:   url,
			Score: clampScore(*r.Score),
			Rank:  len(records) + 1,
		}
		if r.Rank != nil && *r.Rank >= 1 && *r.Rank <= maxRank {
			rec.Rank = int(math.Round(*r.Rank))
		}
		if r.Description != nil {
			rec.Description = strings.TrimSpace(*r.Description)
		}
		if r.ResultID != nil {
			rec.Marker = strings.TrimSpace(*r.ResultID)
		}
		records = append(records, rec)
		if budget > 0 && len(records) == budget {
			break
		}
	}

	total := len(records)
	if payload.TotalResults != nil && *payload.TotalResults > float64(total) {
		total = int(math.Min(*payload.TotalResults, maxRank))
	}
	return records, total, nil
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return minScore
	case s < minScore:
		return minScore
	case s > maxScore:
		return maxScore
	default:
		return s
	}
}
