// Package cleaner turns rendered HTML into the compact text an LLM reads:
// numbered result blocks for result pages, Markdown for everything else,
// and the title and description of arbitrary pages.
package cleaner

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// blockDescriptionLimit caps the description of one result block.
const blockDescriptionLimit = 300

// Cleaner is safe for concurrent use. The converter is created once and
// reused across snapshots.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// SnapshotOptions selects what a snapshot contains.
type SnapshotOptions struct {
	// ItemSelector locates result blocks. Empty renders the page as Markdown.
	ItemSelector string

	// MarkerAttribute is copied verbatim from each result block when present.
	MarkerAttribute string

	// MaxTokens caps the estimated size of Text. Zero disables the cap.
	MaxTokens int
}

// ResultBlock is one result as it appears in the page.
type ResultBlock struct {
	Position    int
	Marker      string
	Title       string
	URL         string
	Description string
}

// Snapshot is an LLM-readable rendition of a page.
type Snapshot struct {
	Results   []ResultBlock
	Text      string
	Tokens    int
	Truncated bool
}

// Snapshot renders rawHTML. When ItemSelector matches, every top-level
// result becomes a numbered block carrying its marker attribute; otherwise
// the body is converted to Markdown.
func (c *Cleaner) Snapshot(rawHTML string, pageURL string, opts SnapshotOptions) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("cleaner: parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	snap := &Snapshot{}
	if opts.ItemSelector != "" {
		sel, err := cascadia.Compile(opts.ItemSelector)
		if err != nil {
			return nil, fmt.Errorf("cleaner: item selector %q: %w", opts.ItemSelector, err)
		}
		snap.Results = resultBlocks(doc, sel, base, opts.MarkerAttribute)
	}

	var text string
	if len(snap.Results) > 0 {
		text = renderBlocks(snap.Results, opts.MarkerAttribute)
	} else {
		body, _ := doc.Find("body").Html()
		if body == "" {
			body = rawHTML
		}
		text, err = toMarkdown(c.mdConverter, body, pageURL)
		if err != nil {
			return nil, fmt.Errorf("cleaner: markdown conversion: %w", err)
		}
	}

	snap.Text, snap.Truncated = TruncateTokens(strings.TrimSpace(text), opts.MaxTokens)
	snap.Tokens = EstimateTokens(snap.Text)
	return snap, nil
}

func resultBlocks(doc *goquery.Document, sel cascadia.Selector, base *url.URL, attr string) []ResultBlock {
	var blocks []ResultBlock
	doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		// Nested matches belong to the enclosing result.
		if s.ParentsMatcher(sel).Length() > 0 {
			return
		}

		title := collapseSpace(s.Find("h3").First().Text())
		href, _ := s.Find("a[href]").First().Attr("href")
		link := resolveLink(base, href)
		if title == "" && link == "" {
			return
		}

		desc := collapseSpace(s.Find(".VwiC3b, [data-sncf]").First().Text())
		if desc == "" {
			desc = strings.TrimSpace(strings.TrimPrefix(collapseSpace(s.Text()), title))
		}

		var marker string
		if attr != "" {
			marker, _ = s.Attr(attr)
		}

		blocks = append(blocks, ResultBlock{
			Position:    len(blocks) + 1,
			Marker:      marker,
			Title:       title,
			URL:         link,
			Description: clip(desc, blockDescriptionLimit),
		})
	})
	return blocks
}

func renderBlocks(blocks []ResultBlock, attr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results (%d):\n", len(blocks))
	for _, r := range blocks {
		fmt.Fprintf(&b, "\n[%d]", r.Position)
		if r.Marker != "" {
			fmt.Fprintf(&b, " %s=%q", attr, r.Marker)
		}
		fmt.Fprintf(&b, "\nTitle: %s\nURL: %s\n", r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", r.Description)
		}
	}
	return b.String()
}

// resolveLink makes href absolute and unwraps Google's /url?q= redirects.
// Non-HTTP links resolve to "".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			if target, err := url.Parse(q); err == nil && target.IsAbs() {
				u = target
			}
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
