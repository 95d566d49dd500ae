package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/search"
)

// Category is the analytics category of a completed search.
const Category = "google-search"

// SlogSink writes events through a slog.Logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Log implements search.AnalyticsSink.
func (s SlogSink) Log(e search.Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, len(e.Auxiliary))
	for k, v := range e.Auxiliary {
		attrs = append(attrs, slog.String(k, v.Value))
	}
	logger.Info(e.Message, "category", e.Category, slog.Group("auxiliary", attrs...))
}

// SinkFunc adapts a function to search.AnalyticsSink.
type SinkFunc func(search.Event)

// Log implements search.AnalyticsSink.
func (f SinkFunc) Log(e search.Event) { f(e) }

// BestScoreIndex returns the index of the first result holding the highest
// relevance score, or -1 when there are no results.
func BestScoreIndex(results []models.SearchResult) int {
	best := -1
	for i, r := range results {
		if best == -1 || r.RelevanceScore > results[best].RelevanceScore {
			best = i
		}
	}
	return best
}

// BuildEvent derives the analytics record of outcome. The favourite index
// is recomputed from the scores so it can be checked against the
// highlighted result.
func BuildEvent(outcome *models.SearchOutcome, objective string) search.Event {
	selected := "null"
	if outcome.SelectedIndex != nil {
		selected = strconv.Itoa(*outcome.SelectedIndex)
	}

	results := outcome.Results
	if results == nil {
		results = []models.SearchResult{}
	}
	all, err := json.Marshal(results)
	if err != nil {
		all = []byte("[]")
	}

	str := func(v string) search.AuxValue { return search.AuxValue{Value: v, Type: "string"} }
	return search.Event{
		Category: Category,
		Message:  fmt.Sprintf("Completed Google search for objective: %s", objective),
		Auxiliary: map[string]search.AuxValue{
			"query":                  str(outcome.Query),
			"totalResults":           str(strconv.Itoa(outcome.TotalResults)),
			"searchTime":             str(strconv.FormatInt(outcome.ElapsedMillis, 10)),
			"selectedResultIndex":    str(selected),
			"allResults":             str(string(all)),
			"extractorFavoriteIndex": str(strconv.Itoa(BestScoreIndex(outcome.Results))),
		},
	}
}
