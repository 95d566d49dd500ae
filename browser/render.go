package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/llmbait/models"
)

// Rendered is a page as the browser saw it after scripts ran.
type Rendered struct {
	HTML     string
	Title    string
	FinalURL string
}

// Render loads targetURL in a pooled page and returns the settled DOM.
// Heavy resources and known trackers are blocked while it loads.
func (b *Browser) Render(ctx context.Context, targetURL string) (*Rendered, error) {
	// ── 1. Acquire page from pool ─────────────────────────────────────
	page, err := b.pagePool.Get(b.newPage)
	if err != nil {
		return nil, models.NewSearchError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	// ── 2. Cleanup: about:blank + return to pool ──────────────────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	// ── 3. Block resources before navigation ──────────────────────────
	router := blockResources(page, b.cfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 4. Navigate + wait ────────────────────────────────────────────
	p := page.Context(ctx)
	if err := p.Navigate(targetURL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	// ── 5. Read DOM ───────────────────────────────────────────────────
	html, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}
	return &Rendered{
		HTML:     html,
		Title:    evalStringOrEmpty(p, `() => document.title`),
		FinalURL: finalURL,
	}, nil
}

// evalStringOrEmpty evaluates a JS function and returns its string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerDomains are blocked whenever resource blocking is active.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"scorecardresearch.com": {},
	"hotjar.com":            {},
	"consensu.org":          {},
}

// isTrackerHost reports whether host or any parent domain is a tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// blockResources installs a request interceptor failing the named resource
// types and tracker hosts. It returns nil when nothing is blocked; otherwise
// the caller must Stop the router.
func blockResources(page *rod.Page, names []string) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if u, err := url.Parse(h.Request.URL().String()); err == nil && isTrackerHost(u.Hostname()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
