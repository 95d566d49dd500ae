package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/config"
	"github.com/use-agent/llmbait/models"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(identityKey)) })
	return r
}

func do(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", " k2 "}))

	w := do(r, "X-API-Key", "k1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "k1", w.Body.String())

	w = do(r, "Authorization", "Bearer k2")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, "X-API-Key", "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeUnauthorized, resp.Error.Code)
	assert.Equal(t, "invalid API key", resp.Error.Message)

	w = do(r, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth([]string{"", "  "}))
	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "a").Code)
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "a").Code)

	w := do(r, "X-API-Key", "a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeRateLimited, resp.Error.Code)

	// Buckets are per identity.
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "b").Code)
}

func TestLimiterSet_EvictIdle(t *testing.T) {
	set := newLimiterSet(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 0})
	now := time.Now()
	assert.True(t, set.allow("old", now.Add(-2*time.Hour)))
	assert.True(t, set.allow("new", now))

	set.evictIdle(now.Add(-time.Hour))
	assert.Len(t, set.limiters, 1)
	assert.Contains(t, set.limiters, "new")
}
