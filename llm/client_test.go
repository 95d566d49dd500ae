package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/models"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL + "/v1"}, option.WithMaxRetries(0))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCompleteJSON(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		writeJSON(w, http.StatusOK, completion(`{"answer": 42}`))
	})

	out, usage, err := c.CompleteJSON(context.Background(), "be terse", "question")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer": 42}`, string(out))
	assert.Equal(t, int64(18), usage.TotalTokens)

	assert.Equal(t, "test-model", body["model"])
	msgs, _ := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])
}

func TestCompleteJSON_StripsFences(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completion("```json\n{\"ok\": true}\n```"))
	})

	out, _, err := c.CompleteJSON(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(out))
}

func TestCompleteJSON_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completion("sure, here you go"))
	})

	_, _, err := c.CompleteJSON(context.Background(), "s", "u")
	var se *models.SearchError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, models.ErrCodeLLMFailure, se.Code)
}

func TestCompleteJSON_ErrorStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, models.ErrCodeLLMAuthFailure},
		{http.StatusForbidden, models.ErrCodeLLMAuthFailure},
		{http.StatusTooManyRequests, models.ErrCodeLLMRateLimited},
		{http.StatusInternalServerError, models.ErrCodeLLMFailure},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"error": map[string]any{"message": "nope", "type": "x"}})
			})

			_, _, err := c.CompleteJSON(context.Background(), "s", "u")
			var se *models.SearchError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
		})
	}
}

func TestCompleteJSON_NotConfigured(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.Configured())

	_, _, err := c.CompleteJSON(context.Background(), "s", "u")
	var se *models.SearchError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, models.ErrCodeLLMNotConfigured, se.Code)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{}`, stripFences("  {}  "))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, stripFences("```json [1] ```"))
}
