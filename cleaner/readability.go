package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// excerptLimit caps a readability excerpt used as a description.
const excerptLimit = 300

// readabilityExcerpt runs the Mozilla Readability algorithm on rawHTML and
// returns its excerpt, or "" when it cannot find one.
func readabilityExcerpt(rawHTML string, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL", "url", sourceURL, "error", err)
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return ""
	}

	excerpt := collapseSpace(article.Excerpt)
	if r := []rune(excerpt); len(r) > excerptLimit {
		excerpt = string(r[:excerptLimit]) + "..."
	}
	return excerpt
}
