package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/models"
)

// rodPage runs scripts in a real page. Only Evaluate is needed by the
// injector.
type rodPage struct{ page *rod.Page }

func (p rodPage) Goto(context.Context, string) error                          { return nil }
func (p rodPage) Act(context.Context, string) error                           { return nil }
func (p rodPage) WaitFor(context.Context, time.Duration) error                { return nil }
func (p rodPage) Observe(context.Context, string) ([]ActionDescriptor, error) { return nil, nil }
func (p rodPage) Extract(context.Context, string, json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (p rodPage) Evaluate(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

// titles returns the h3 text of every node matching itemSel, in order.
func (p rodPage) titles(t *testing.T, itemSel string) []string {
	t.Helper()
	res, err := p.page.Eval(`(sel) => Array.from(document.querySelectorAll(sel)).map((n) => n.querySelector('h3').textContent)`, itemSel)
	require.NoError(t, err)
	var out []string
	require.NoError(t, json.Unmarshal([]byte(res.Value.JSON("", "")), &out))
	return out
}

func newChromiumPage(t *testing.T, html string) rodPage {
	t.Helper()
	if testing.Short() {
		t.Skip("needs Chromium")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("Chromium not found")
	}
	u, err := launcher.New().Bin(bin).Headless(true).NoSandbox(true).Launch()
	if err != nil {
		t.Skipf("launch Chromium: %v", err)
	}
	b := rod.New().ControlURL(u)
	require.NoError(t, b.Connect())
	t.Cleanup(func() { _ = b.Close() })

	page, err := b.Page(proto.TargetCreateTarget{})
	require.NoError(t, err)
	require.NoError(t, page.SetDocumentContent(html))
	return rodPage{page: page}
}

// resultPage renders five organic results r1..r5 with the given wrapper
// markup, e.g. `div class="g"`.
func resultPage(open, close string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="search"><div id="rso">`)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, `<%s><a href="https://example.com/%d"><h3>r%d</h3></a></%s>`, open, i, i, close)
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func TestInjectScript_InChromium(t *testing.T) {
	tests := []struct {
		name        string
		open, close string
		itemSel     string
	}{
		{"class", `div class="g"`, "div", ".g"},
		{"tag and class", `div class="g Ww4FFb"`, "div", "div.g"},
		{"descendant", `div class="g"`, "div", "#rso .g"},
		{"other class", `div class="MjjYud"`, "div", ".MjjYud"},
		{"other tag", `section class="g"`, "section", "section.g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newChromiumPage(t, resultPage(tt.open, tt.close))
			inj := NewInjector(nil, "#search", tt.itemSel, "")

			tokens, placements, err := inj.Inject(context.Background(), page,
				[]models.InjectedEntry{entry("B", 3), entry("A", 1)})
			require.NoError(t, err)

			// A lands first; B's rank 3 is resolved against the list that
			// already holds A.
			require.Len(t, placements, 2)
			assert.Equal(t, 0, placements[0].Index)
			assert.Equal(t, 2, placements[1].Index)
			assert.Equal(t, []string{"A", "r1", "B", "r2", "r3", "r4", "r5"}, page.titles(t, tt.itemSel))

			state, err := inj.Probe(context.Background(), page)
			require.NoError(t, err)
			assert.Equal(t, PageState{Total: 7, Marked: 2}, state)
			assert.Equal(t, 2, tokens.Len())
		})
	}
}

func TestInjectScript_EmptyListUsesItemClass(t *testing.T) {
	page := newChromiumPage(t, `<html><body><div id="search"></div></body></html>`)
	inj := NewInjector(nil, "#search", "div.result", "result")

	_, placements, err := inj.Inject(context.Background(), page,
		[]models.InjectedEntry{entry("A", 4), entry("B", 1)})
	require.NoError(t, err)
	assert.Equal(t, 0, placements[0].Index)
	assert.Equal(t, 1, placements[1].Index, "rank 4 clamps to the one-item list")
	assert.Equal(t, []string{"B", "A"}, page.titles(t, "div.result"))
}

func TestInjectScript_UnreachableSelectorFails(t *testing.T) {
	page := newChromiumPage(t, `<html><body><div id="search"></div></body></html>`)
	inj := NewInjector(nil, "#search", "#rso .g", "")

	_, _, err := inj.Inject(context.Background(), page, []models.InjectedEntry{entry("A", 1)})
	var se *models.SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeInjection, se.Code)
}
