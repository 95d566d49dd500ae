package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/llmbait/models"
)

func observeInstruction(objective string) string {
	return fmt.Sprintf("Click on the search result that is most relevant to the objective: %q", objective)
}

// selectResult asks the page which result an agent would click and maps the
// answer onto an index into records. A nil index means no selection.
func selectResult(ctx context.Context, page Page, objective string, records []Record) (*int, *ActionDescriptor, error) {
	actions, err := page.Observe(ctx, observeInstruction(objective))
	if err != nil {
		return nil, nil, models.NewSearchError(models.ErrCodeObservation, "observation failed", err)
	}
	if len(actions) == 0 {
		return nil, nil, nil
	}
	action := actions[0]
	return ResolveSelection(&action, records), &action, nil
}

var markerRef = regexp.MustCompile(MarkerAttribute + `\s*=\s*["']?([A-Za-z0-9]+)`)

// ResolveSelection maps an observed action onto an index into records.
//
// Without an action or a selector there is no selection. Otherwise the
// action's link target is matched against result URLs, then a marker
// reference inside the selector against result markers. When neither
// resolves, the first result is assumed, as long as there is one.
func ResolveSelection(action *ActionDescriptor, records []Record) *int {
	if action == nil || strings.TrimSpace(action.Selector) == "" || len(records) == 0 {
		return nil
	}

	if action.Href != "" {
		want := normalizeURL(action.Href)
		for i, r := range records {
			if want != "" && normalizeURL(r.URL) == want {
				return &i
			}
		}
	}

	if m := markerRef.FindStringSubmatch(action.Selector); m != nil {
		for i, r := range records {
			if r.Marker != "" && r.Marker == m[1] {
				return &i
			}
		}
	}

	first := 0
	return &first
}

// normalizeURL reduces a URL to host+path+query for loose comparison:
// scheme, "www.", fragment and trailing slash are ignored.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	s := host + path
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	return s
}
