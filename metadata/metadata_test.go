package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/cache"
	"github.com/use-agent/llmbait/engine"
	"github.com/use-agent/llmbait/models"
)

const fedoraHome = `<html><head><title>Fedora Linux | The Fedora Project</title>
<meta name="description" content="Fedora creates an innovative, free, and open source platform.">
</head><body><h1>Fedora</h1></body></html>`

func newHTTPService(t *testing.T, h http.HandlerFunc) (*Service, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := cache.New(10, time.Minute)
	t.Cleanup(c.Stop)
	d := engine.NewDispatcher([]engine.Engine{engine.NewHTTPEngine("")}, nil, nil)
	return NewService(d, c, 5*time.Second), srv.URL
}

func TestLookup_Success(t *testing.T) {
	var hits atomic.Int32
	var ua string
	svc, base := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, fedoraHome)
	})

	resp := svc.Lookup(context.Background(), &models.MetadataRequest{URL: base + "/"})

	assert.Equal(t, models.MetadataStatusSuccess, resp.Status)
	assert.Equal(t, base+"/", resp.URL)
	assert.Equal(t, "Fedora Linux | The Fedora Project", resp.Title)
	assert.Equal(t, "Fedora creates an innovative, free, and open source platform.", resp.MetaDescription)
	assert.Empty(t, resp.ErrorMessage)
	assert.Equal(t, "http", resp.EngineUsed)
	assert.Equal(t, CacheMiss, resp.CacheStatus)
	assert.Contains(t, ua, "Mozilla/5.0")

	again := svc.Lookup(context.Background(), &models.MetadataRequest{URL: base + "/"})
	assert.Equal(t, CacheHit, again.CacheStatus)
	assert.Equal(t, resp.Title, again.Title)
	assert.Equal(t, int32(1), hits.Load())

	bypass := svc.Lookup(context.Background(), &models.MetadataRequest{URL: base + "/", MaxAge: -1})
	assert.Equal(t, CacheBypass, bypass.CacheStatus)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLookup_FetchError(t *testing.T) {
	svc, base := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})

	resp := svc.Lookup(context.Background(), &models.MetadataRequest{URL: base + "/missing"})
	assert.Equal(t, models.MetadataStatusError, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "410")
	assert.Empty(t, resp.Title)

	// Failures are not cached.
	again := svc.Lookup(context.Background(), &models.MetadataRequest{URL: base + "/missing"})
	assert.Equal(t, CacheMiss, again.CacheStatus)
}

func TestLookup_InvalidURL(t *testing.T) {
	svc := NewService(nil, nil, time.Second)
	for _, u := range []string{"ftp://a.example/x", "not a url", "/relative"} {
		resp := svc.Lookup(context.Background(), &models.MetadataRequest{URL: u})
		assert.Equal(t, models.MetadataStatusError, resp.Status, u)
		assert.Contains(t, resp.ErrorMessage, "invalid URL", u)
	}
}

type stubFetcher struct {
	result *engine.FetchResult
	err    error
}

func (s stubFetcher) Dispatch(context.Context, *engine.FetchRequest) (*engine.FetchResult, error) {
	return s.result, s.err
}

func TestLookup_TitleFallsBackToEngine(t *testing.T) {
	svc := NewService(stubFetcher{result: &engine.FetchResult{
		HTML:       "<html><body>rendered</body></html>",
		Title:      "Rendered Title",
		EngineName: "browser",
	}}, nil, time.Second)

	resp := svc.Lookup(context.Background(), &models.MetadataRequest{URL: "https://spa.example/"})
	require.Equal(t, models.MetadataStatusSuccess, resp.Status)
	assert.Equal(t, "Rendered Title", resp.Title)
	assert.Equal(t, "browser", resp.EngineUsed)
	assert.Equal(t, CacheBypass, resp.CacheStatus)
}

func TestLookup_StubError(t *testing.T) {
	svc := NewService(stubFetcher{err: errors.New("dial tcp: no such host")}, nil, time.Second)
	resp := svc.Lookup(context.Background(), &models.MetadataRequest{URL: "https://nowhere.example/"})
	assert.Equal(t, models.MetadataStatusError, resp.Status)
	assert.Equal(t, "dial tcp: no such host", resp.ErrorMessage)
}
