package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/use-agent/llmbait/models"
)

// Default selectors for the result list on a Google result page.
const (
	DefaultRootSelector = "#search"
	DefaultItemSelector = ".g"

	// DefaultItemClass is added to an injected node that would otherwise
	// not match the item selector, such as the first node of an empty list.
	DefaultItemClass = "g"
)

// injectScript splices one result-shaped node into the live result list and
// returns the 0-based index it landed on plus whether the node matches
// itemSel. The node copies the tag and classes of a neighbouring result and
// sits beside it, so compound and descendant item selectors still match.
// Content is assigned through textContent and attributes so injected titles
// cannot smuggle markup.
const injectScript = `(rootSel, itemSel, attr, title, url, description, rank, token, itemClass) => {
	const root = document.querySelector(rootSel) || document.body;
	const existing = root.querySelectorAll(itemSel);
	const index = Math.max(0, Math.min(rank - 1, existing.length));

	const ref = existing.length > 0 ? existing[Math.min(index, existing.length - 1)] : null;
	const wrapper = document.createElement(ref ? ref.tagName.toLowerCase() : 'div');
	if (ref && typeof ref.className === 'string' && ref.className) {
		wrapper.className = ref.className;
	}
	wrapper.setAttribute(attr, token);

	const inner = document.createElement('div');
	inner.className = 'tF2Cxc';
	const head = document.createElement('div');
	head.className = 'yuRUbf';
	const link = document.createElement('a');
	link.href = url;
	link.setAttribute('ping', url);
	link.target = '_blank';
	const h3 = document.createElement('h3');
	h3.className = 'LC20lb MBeuO DKV0Md';
	h3.textContent = title;
	link.appendChild(h3);
	head.appendChild(link);
	inner.appendChild(head);

	const snippet = document.createElement('div');
	snippet.className = 'VwiC3b yXK7lf MUxGbd yDYNvb lyLwlc';
	const span = document.createElement('span');
	span.textContent = description;
	snippet.appendChild(span);
	inner.appendChild(snippet);
	wrapper.appendChild(inner);

	if (index < existing.length) {
		const anchor = existing[index];
		anchor.parentNode.insertBefore(wrapper, anchor);
	} else if (existing.length > 0) {
		const last = existing[existing.length - 1];
		last.parentNode.insertBefore(wrapper, last.nextSibling);
	} else {
		root.appendChild(wrapper);
	}

	if (!wrapper.matches(itemSel) && itemClass) {
		wrapper.classList.add(itemClass);
	}
	return { index: index, matched: wrapper.matches(itemSel) };
}`

// injectResult is what injectScript reports for one node.
type injectResult struct {
	Index   int  `json:"index"`
	Matched bool `json:"matched"`
}

// probeScript counts result nodes and marked result nodes.
const probeScript = `(rootSel, itemSel, attr) => {
	const root = document.querySelector(rootSel) || document.body;
	const items = Array.from(root.querySelectorAll(itemSel));
	return {
		total: items.length,
		marked: items.filter((n) => n.hasAttribute(attr)).length,
	};
}`

// Placement records where one injected entry landed.
type Placement struct {
	Token string
	Rank  int
	// Index is the resolved 0-based position, or -1 when the page did not
	// report one.
	Index int
}

// PageState is a snapshot of the result list after injection.
type PageState struct {
	Total  int `json:"total"`
	Marked int `json:"marked"`
}

// Injector splices injected entries into the page's result list.
type Injector struct {
	tokens       *TokenSource
	rootSelector string
	itemSelector string
	itemClass    string
}

// NewInjector creates an Injector. Empty selectors and class fall back to
// the Google defaults.
func NewInjector(tokens *TokenSource, rootSelector, itemSelector, itemClass string) *Injector {
	if tokens == nil {
		tokens = NewTokenSource(nil)
	}
	if rootSelector == "" {
		rootSelector = DefaultRootSelector
	}
	if itemSelector == "" {
		itemSelector = DefaultItemSelector
	}
	if itemClass == "" {
		itemClass = DefaultItemClass
	}
	return &Injector{
		tokens:       tokens,
		rootSelector: rootSelector,
		itemSelector: itemSelector,
		itemClass:    itemClass,
	}
}

// ClampInsertIndex converts a 1-based insertion rank into a 0-based splice
// index for a list of n items. The result is always within [0, n].
func ClampInsertIndex(rank, n int) int {
	if n < 0 {
		n = 0
	}
	i := rank - 1
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Inject tags every entry with a fresh token and splices it into the page,
// lowest rank first, each rank resolved against the list as it stands at
// that moment. It returns the token map and the placements in insertion
// order. With no entries it touches nothing and returns an empty map.
func (in *Injector) Inject(ctx context.Context, page Page, entries []models.InjectedEntry) (TokenMap, []Placement, error) {
	if len(entries) == 0 {
		return TokenMap{}, nil, nil
	}

	sorted := make([]models.InjectedEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InsertionRank < sorted[j].InsertionRank
	})

	slog.Info("injecting custom results", "count", len(sorted))

	tokens := newTokenMap(len(sorted))
	placements := make([]Placement, 0, len(sorted))

	for _, entry := range sorted {
		tok, err := in.tokens.generateUnique(&tokens)
		if err != nil {
			return tokens, placements, models.NewSearchError(models.ErrCodeInjection, "token generation failed", err)
		}
		tokens.add(tok, entry)

		raw, err := page.Evaluate(ctx, injectScript,
			in.rootSelector, in.itemSelector, MarkerAttribute,
			entry.Title, entry.URL, entry.Description, entry.InsertionRank, tok, in.itemClass,
		)
		if err != nil {
			return tokens, placements, models.NewSearchError(models.ErrCodeInjection, "inject custom result", err)
		}

		res := injectResult{Index: -1}
		if err := json.Unmarshal(raw, &res); err != nil {
			return tokens, placements, models.NewSearchError(models.ErrCodeInjection, "undecodable injection result", err)
		}
		if !res.Matched {
			// An unmatched node is invisible to later clamping and to
			// extraction, so its marker would never be correlated.
			return tokens, placements, models.NewSearchError(models.ErrCodeInjection,
				fmt.Sprintf("injected node does not match item selector %q (item class %q)", in.itemSelector, in.itemClass), nil)
		}
		idx := res.Index
		placements = append(placements, Placement{Token: tok, Rank: entry.InsertionRank, Index: idx})

		slog.Debug("injected custom result",
			"title", entry.Title,
			"rank", entry.InsertionRank,
			"index", idx,
			"token", tok,
		)
	}

	return tokens, placements, nil
}

// Probe reports how many result nodes, and how many marked ones, the page
// currently holds.
func (in *Injector) Probe(ctx context.Context, page Page) (PageState, error) {
	var state PageState
	raw, err := page.Evaluate(ctx, probeScript, in.rootSelector, in.itemSelector, MarkerAttribute)
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, err
	}
	return state, nil
}
