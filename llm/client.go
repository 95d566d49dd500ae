// Package llm is a thin OpenAI-compatible chat client that returns JSON.
// The browser backend builds its extract, observe and act prompts on top of
// it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/use-agent/llmbait/models"
)

// Config holds the model endpoint settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // e.g. "https://api.openai.com/v1"
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Usage reports token consumption of one completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Client sends chat completions and validates that the answer is JSON.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	maxTokens   int
	configured  bool
}

// NewClient creates a client for cfg. Extra request options are appended
// after the ones derived from cfg, so callers can override them.
func NewClient(cfg Config, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{
		api:         openai.NewClient(append(base, opts...)...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		configured:  cfg.APIKey != "" && cfg.Model != "",
	}
}

// Configured reports whether an API key and model were supplied.
func (c *Client) Configured() bool {
	return c != nil && c.configured
}

// CompleteJSON sends one system + user exchange in JSON mode and returns
// the assistant's JSON document.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (json.RawMessage, *Usage, error) {
	if !c.Configured() {
		return nil, nil, models.NewSearchError(models.ErrCodeLLMNotConfigured, "LLM API key and model are required", nil)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, nil, classifyLLMError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil, models.NewSearchError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	if !json.Valid([]byte(raw)) {
		return nil, nil, models.NewSearchError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", nil)
	}

	return json.RawMessage(raw), &Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// stripFences removes a markdown code fence some compatible providers wrap
// around JSON mode answers.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// classifyLLMError maps provider errors to error codes.
func classifyLLMError(err error) *models.SearchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewSearchError(models.ErrCodeTimeout, "LLM request timed out", err)
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return models.NewSearchError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = "LLM API error"
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewSearchError(models.ErrCodeLLMAuthFailure, msg, nil)
	case http.StatusTooManyRequests:
		return models.NewSearchError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewSearchError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", apiErr.StatusCode, msg), nil)
	}
}
