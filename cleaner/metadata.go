package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMetadata is the title and description of a page.
type PageMetadata struct {
	Title       string
	Description string
}

// ExtractMetadata reads the <title> and the description of rawHTML. The
// description comes from <meta name="description">, then og:description,
// then a readability excerpt of the body.
func ExtractMetadata(rawHTML string, sourceURL string) (PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return PageMetadata{}, err
	}

	meta := PageMetadata{
		Title: collapseSpace(doc.Find("head title").First().Text()),
	}
	if meta.Title == "" {
		meta.Title = collapseSpace(doc.Find("title").First().Text())
	}

	doc.Find("meta[name], meta[property]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if strings.EqualFold(strings.TrimSpace(name), "description") {
			content, _ := s.Attr("content")
			if c := collapseSpace(content); c != "" {
				meta.Description = c
				return false
			}
		}
		return true
	})

	if meta.Description == "" {
		if content, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
			meta.Description = collapseSpace(content)
		}
	}
	if meta.Description == "" {
		meta.Description = readabilityExcerpt(rawHTML, sourceURL)
	}

	return meta, nil
}

// collapseSpace trims s and folds every whitespace run into one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
