package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type fakeItem struct {
	title, url, desc, marker string
}

// fakePage simulates a result list. Injection splices by the same clamping
// rule as the in-page script and extraction echoes markers faithfully
// unless extractFn overrides it.
type fakePage struct {
	items []fakeItem

	gotos  []string
	acts   []string
	waits  []time.Duration
	actErr map[string]error

	evaluations int
	injected    []int
	unmatched   bool

	extractFn          func(instruction string) (json.RawMessage, error)
	extractInstruction string

	observed   []ActionDescriptor
	observeErr error
}

func newFakePage(titles ...string) *fakePage {
	p := &fakePage{}
	for i, t := range titles {
		p.items = append(p.items, fakeItem{
			title: t,
			url:   fmt.Sprintf("https://example.com/%d", i+1),
			desc:  "about " + t,
		})
	}
	return p
}

func (p *fakePage) Goto(_ context.Context, url string) error {
	p.gotos = append(p.gotos, url)
	return nil
}

func (p *fakePage) Act(_ context.Context, instruction string) error {
	p.acts = append(p.acts, instruction)
	if err, ok := p.actErr[instruction]; ok {
		return err
	}
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, d time.Duration) error {
	p.waits = append(p.waits, d)
	return ctx.Err()
}

func (p *fakePage) Evaluate(_ context.Context, js string, args ...any) (json.RawMessage, error) {
	p.evaluations++
	switch js {
	case injectScript:
		item := fakeItem{
			title:  args[3].(string),
			url:    args[4].(string),
			desc:   args[5].(string),
			marker: args[7].(string),
		}
		idx := ClampInsertIndex(args[6].(int), len(p.items))
		p.items = append(p.items, fakeItem{})
		copy(p.items[idx+1:], p.items[idx:])
		p.items[idx] = item
		p.injected = append(p.injected, idx)
		return json.Marshal(injectResult{Index: idx, Matched: !p.unmatched})
	case probeScript:
		state := PageState{Total: len(p.items)}
		for _, it := range p.items {
			if it.marker != "" {
				state.Marked++
			}
		}
		return json.Marshal(state)
	}
	return nil, fmt.Errorf("unexpected script")
}

func (p *fakePage) Extract(_ context.Context, instruction string, _ json.RawMessage) (json.RawMessage, error) {
	p.extractInstruction = instruction
	if p.extractFn != nil {
		return p.extractFn(instruction)
	}
	type rec struct {
		Title    string  `json:"title"`
		URL      string  `json:"url"`
		Desc     string  `json:"description"`
		Rank     int     `json:"rank"`
		Score    float64 `json:"extractorRelevanceScore"`
		ResultID string  `json:"resultId,omitempty"`
	}
	out := struct {
		Results      []rec `json:"results"`
		TotalResults int   `json:"totalResults"`
	}{Results: []rec{}, TotalResults: len(p.items)}
	for i, it := range p.items {
		out.Results = append(out.Results, rec{
			Title:    it.title,
			URL:      it.url,
			Desc:     it.desc,
			Rank:     i + 1,
			Score:    5 + float64(i)/10,
			ResultID: it.marker,
		})
	}
	return json.Marshal(out)
}

func (p *fakePage) Observe(_ context.Context, _ string) ([]ActionDescriptor, error) {
	return p.observed, p.observeErr
}

// staticExtraction returns an extractFn that always answers with body.
func staticExtraction(body string) func(string) (json.RawMessage, error) {
	return func(string) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	}
}
