// Package report presents a search outcome: a styled console report for
// humans and an analytics event for machines. It makes no decisions; every
// annotation is derived from the outcome.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/search"
)

// descriptionLimit is the number of runes of a description shown per result.
const descriptionLimit = 100

// Reporter renders outcomes. It is stateless apart from its styles.
type Reporter struct {
	renderer *lipgloss.Renderer
}

// New creates a Reporter writing to w. Colours are used only when w is a
// terminal.
func New(w io.Writer) *Reporter {
	return &Reporter{renderer: lipgloss.NewRenderer(w)}
}

func (r *Reporter) box(title, body, color string) string {
	style := r.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1).
		Margin(1)
	if color != "" {
		style = style.BorderForeground(lipgloss.Color(color))
	}
	heading := r.renderer.NewStyle().Bold(true).Render(title)
	return style.Render(heading + "\n\n" + body)
}

func (r *Reporter) fg(color string) lipgloss.Style {
	return r.renderer.NewStyle().Foreground(lipgloss.Color(color))
}

// Render writes the human-readable report of outcome to w.
func (r *Reporter) Render(w io.Writer, outcome *models.SearchOutcome, objective string) error {
	var b strings.Builder

	green, yellow, gray, blue, magenta := r.fg("2"), r.fg("3"), r.fg("8"), r.fg("4"), r.fg("5")

	b.WriteString(green.Render("\n✅ Google Search Completed"))
	b.WriteString("\n")
	b.WriteString(r.box("Search Summary", fmt.Sprintf(
		"Query: %s\nResults Found: %d\nSearch Time: %dms\nObjective: %s",
		outcome.Query, outcome.TotalResults, outcome.ElapsedMillis, objective,
	), ""))
	b.WriteString("\n")

	b.WriteString(blue.Render("\n📋 Search Results:"))
	b.WriteString("\n")

	best := BestScoreIndex(outcome.Results)
	for i, res := range outcome.Results {
		isSelected := outcome.SelectedIndex != nil && *outcome.SelectedIndex == i
		isBest := best >= 0 && res.RelevanceScore == outcome.Results[best].RelevanceScore

		prefix := fmt.Sprintf("%d.", i+1)
		title := r.renderer.NewStyle()
		switch {
		case isSelected && isBest:
			prefix, title = "🎯⭐", green
		case isSelected:
			prefix, title = "🎯", green
		case isBest:
			prefix, title = "⭐", yellow
		}

		fmt.Fprintf(&b, "%s %s\n", prefix, title.Render(res.Title))
		b.WriteString(gray.Render("   URL: "+res.URL) + "\n")
		if res.Description != "" {
			b.WriteString(gray.Render("   Description: "+truncate(res.Description, descriptionLimit)) + "\n")
		}
		b.WriteString(gray.Render(fmt.Sprintf("   Rank: %d", res.Rank)) + "\n")
		b.WriteString(blue.Render(fmt.Sprintf("   Relevance Score: %g/10", res.RelevanceScore)) + "\n")
		if res.IsInjected {
			b.WriteString(magenta.Render("   🔧 Custom injected result") + "\n")
		}
		if isBest {
			b.WriteString(yellow.Render("   ⭐ Highest relevance score") + "\n")
		}
		if isSelected {
			b.WriteString(green.Render("   🎯 Agent's selection") + "\n")
		}
		b.WriteString("\n")
	}

	if sel, ok := outcome.Selected(); ok {
		b.WriteString(green.Render("🎯 Selected Result:"))
		b.WriteString("\n")
		b.WriteString(r.box("Most Relevant", fmt.Sprintf(
			"Title: %s\nURL: %s\nRank: %d", sel.Title, sel.URL, sel.Rank,
		), "2"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderVerdict writes the closing summary: result count, the agent's pick
// (1-based) and the highest score.
func (r *Reporter) RenderVerdict(w io.Writer, outcome *models.SearchOutcome) error {
	pick := "none"
	if outcome.SelectedIndex != nil {
		pick = fmt.Sprintf("%d", *outcome.SelectedIndex+1)
	}
	highest := "n/a"
	if best := BestScoreIndex(outcome.Results); best >= 0 {
		highest = fmt.Sprintf("%g/10", outcome.Results[best].RelevanceScore)
	}
	body := fmt.Sprintf("Found %d results in %dms\nAgent selected result #%s\nHighest relevance score: %s",
		outcome.TotalResults, outcome.ElapsedMillis, pick, highest)
	_, err := io.WriteString(w, r.box("Search Summary", body, "2")+"\n")
	return err
}

// Emit sends the analytics event of outcome to sink.
func (r *Reporter) Emit(sink search.AnalyticsSink, outcome *models.SearchOutcome, objective string) {
	if sink == nil {
		return
	}
	sink.Log(BuildEvent(outcome, objective))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
