package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/llmbait/cleaner"
	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/search"
)

const markerAttribute = search.MarkerAttribute

// actionTimeout is the per-action deadline for element lookups and input.
const actionTimeout = 10 * time.Second

// maxElements caps the candidate list sent to the model.
const maxElements = 150

// collectElementsScript lists visible interactive elements with a CSS path
// that uniquely locates each. Paths stop at the nearest id or marker
// attribute so injected results are addressable by their token.
const collectElementsScript = `(attr, limit) => {
	const pathOf = (el) => {
		const parts = [];
		for (let node = el; node && node.nodeType === 1; node = node.parentElement) {
			if (node.id) { parts.unshift('#' + CSS.escape(node.id)); break; }
			const marker = node.getAttribute(attr);
			if (marker) { parts.unshift(node.tagName.toLowerCase() + '[' + attr + '="' + marker + '"]'); break; }
			const tag = node.tagName.toLowerCase();
			const parent = node.parentElement;
			if (!parent) { parts.unshift(tag); break; }
			const same = Array.from(parent.children).filter(c => c.tagName === node.tagName);
			parts.unshift(same.length > 1 ? tag + ':nth-of-type(' + (same.indexOf(node) + 1) + ')' : tag);
		}
		return parts.join(' > ');
	};
	const query = 'a[href], button, input:not([type=hidden]), textarea, select, [role=button], [role=link], [role=combobox], [role=searchbox], [contenteditable=true]';
	const out = [];
	for (const el of document.querySelectorAll(query)) {
		if (out.length >= limit) break;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		const text = (el.innerText || el.value || el.getAttribute('aria-label') || el.title || '').trim().replace(/\s+/g, ' ').slice(0, 120);
		const owner = el.closest('[' + attr + ']');
		out.push({
			index: out.length,
			selector: pathOf(el),
			tag: el.tagName.toLowerCase(),
			role: el.getAttribute('role') || '',
			type: el.getAttribute('type') || '',
			text: text,
			placeholder: el.getAttribute('placeholder') || '',
			href: el.href || '',
			marker: owner ? owner.getAttribute(attr) : '',
		});
	}
	return out;
}`

// Session is one borrowed page. It implements search.Page and serialises
// its own operations.
type Session struct {
	mu       sync.Mutex
	page     *rod.Page
	agent    *Agent
	cleaner  *cleaner.Cleaner
	snapshot cleaner.SnapshotOptions
	release  func(*rod.Page)
	once     sync.Once
}

var _ search.Page = (*Session)(nil)

// Release returns the page to the pool. Further calls are no-ops.
func (s *Session) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.release(s.page)
	})
}

// Goto navigates and waits for the DOM to settle.
func (s *Session) Goto(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// WaitFor pauses for d or until ctx is done.
func (s *Session) WaitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate runs a JS function with args and returns its JSON result.
func (s *Session) Evaluate(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eval(ctx, js, args...)
}

func (s *Session) eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, categorizeError(err, "script evaluation failed")
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

// Extract snapshots the page and asks the model for a document matching
// schema.
func (s *Session) Extract(ctx context.Context, instruction string, schema json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}
	pageURL := evalStringOrEmpty(p, `() => window.location.href`)

	snap, err := s.cleaner.Snapshot(html, pageURL, s.snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	slog.Debug("page snapshot",
		"results", len(snap.Results), "tokens", snap.Tokens, "truncated", snap.Truncated)

	return s.agent.Extract(ctx, instruction, schema, snap.Text)
}

// Observe returns the element an agent would act on, or nothing.
func (s *Session) Observe(ctx context.Context, instruction string) ([]search.ActionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elements, err := s.elements(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.agent.Choose(ctx, instruction, elements)
	if err != nil {
		return nil, err
	}
	if d.Index < 0 {
		return nil, nil
	}

	el := elements[d.Index]
	action := search.ActionDescriptor{
		Selector:    el.Selector,
		Description: d.Description,
		Method:      d.Method,
		Href:        el.Href,
	}
	if d.Argument != "" {
		action.Arguments = []string{d.Argument}
	}
	return []search.ActionDescriptor{action}, nil
}

// Act performs instruction on the element the model picks.
func (s *Session) Act(ctx context.Context, instruction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	elements, err := s.elements(ctx)
	if err != nil {
		return err
	}
	d, err := s.agent.Choose(ctx, instruction, elements)
	if err != nil {
		return err
	}
	if d.Index < 0 {
		return models.NewSearchError(models.ErrCodeActionFailed,
			fmt.Sprintf("no element matches %q", instruction), nil)
	}

	el := elements[d.Index]
	slog.Debug("act", "instruction", instruction, "method", d.Method, "selector", el.Selector)
	if err := s.perform(ctx, el, d); err != nil {
		return models.NewSearchError(models.ErrCodeActionFailed,
			fmt.Sprintf("%s on %s failed", d.Method, el.Selector), err)
	}
	return nil
}

func (s *Session) elements(ctx context.Context) ([]Element, error) {
	raw, err := s.eval(ctx, collectElementsScript, markerAttribute, maxElements)
	if err != nil {
		return nil, err
	}
	var elements []Element
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	return elements, nil
}

func (s *Session) perform(ctx context.Context, el Element, d Decision) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()
	p := s.page.Context(actionCtx)

	target, err := p.Element(el.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", el.Selector, err)
	}

	switch d.Method {
	case MethodFill:
		if err := target.SelectAllText(); err != nil {
			slog.Debug("select all before fill failed", "error", err)
		}
		return target.Input(d.Argument)
	case MethodPress:
		key, ok := keyByName(d.Argument)
		if !ok {
			return fmt.Errorf("unsupported key %q", d.Argument)
		}
		return target.Type(key)
	default:
		return target.Click(proto.InputMouseButtonLeft, 1)
	}
}

// keyByName maps the key names the model may answer with.
func keyByName(name string) (input.Key, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "enter", "return":
		return input.Enter, true
	case "tab":
		return input.Tab, true
	case "escape", "esc":
		return input.Escape, true
	case "space":
		return input.Space, true
	default:
		return 0, false
	}
}

// categorizeError wraps raw errors into typed SearchErrors so the API layer
// can map them to HTTP status codes.
func categorizeError(err error, msg string) *models.SearchError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewSearchError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewSearchError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewSearchError(models.ErrCodeNavigation, msg, err)
	}
}
