package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/llmbait/config"
	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/report"
)

// apiClient calls the llmbait HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	cfg := config.Load()

	api := &apiClient{
		baseURL: strings.TrimRight(cfg.Server.APIURL, "/"),
		apiKey:  cfg.Server.APIKey,
		// A search may take up to the server's max timeout plus a margin.
		http: &http.Client{Timeout: cfg.Search.MaxTimeout + 30*time.Second},
	}

	s := newServer(api)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"llmbait",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	metadataTool := mcp.NewTool("scrape_url_metadata",
		mcp.WithDescription("Fetch a web page and return its title and meta description."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The absolute http(s) URL of the page"),
		),
	)
	s.AddTool(metadataTool, handleScrapeMetadata(api))

	searchTool := mcp.NewTool("search_as_agent",
		mcp.WithDescription("Run a Google search in a real browser, optionally inject custom results into the result page, and report which result an agent pursuing the objective would pick."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The query typed into the search box"),
		),
		mcp.WithString("objective",
			mcp.Required(),
			mcp.Description("The goal the simulated agent is pursuing"),
		),
		mcp.WithArray("injected_results",
			mcp.Description("Custom results to splice into the page before extraction"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":       map[string]any{"type": "string"},
					"url":         map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"insert_rank": map[string]any{"type": "number", "description": "1-based position; omitted or out of range appends"},
				},
				"required": []string{"title", "url", "description"},
			}),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Base number of results to extract (default: 8)"),
		),
	)
	s.AddTool(searchTool, handleSearchAsAgent(api))

	return s
}

// post sends payload to path and decodes the JSON response into out. Non-2xx
// responses still decode, since the API reports failures in the body.
func (a *apiClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func handleScrapeMetadata(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.MetadataResponse
		if err := api.post(ctx, "/api/v1/metadata", models.MetadataRequest{URL: url}, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		// The envelope is the tool result either way; agents read the status.
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func handleSearchAsAgent(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		objective, err := request.RequireString("objective")
		if err != nil {
			return mcp.NewToolResultError("objective is required"), nil
		}

		injected, err := injectedResults(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload := models.SearchRequest{
			Objective:     objective,
			SearchPrompt:  query,
			MaxResults:    request.GetInt("max_results", 0),
			CustomResults: injected,
		}

		var resp models.SearchResponse
		if err := api.post(ctx, "/api/v1/search", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success || resp.Outcome == nil {
			errMsg := "search failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		if err := report.New(&sb).Render(&sb, resp.Outcome, objective); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
		}
		out, err := json.MarshalIndent(resp.Outcome, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode outcome: %v", err)), nil
		}
		sb.WriteString("\n---\n")
		sb.Write(out)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// injectedResults decodes the optional injected_results argument.
func injectedResults(args map[string]any) ([]models.InjectedEntry, error) {
	raw, ok := args["injected_results"]
	if !ok || raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("injected_results: %w", err)
	}
	var entries []models.InjectedEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("injected_results must be an array of {title, url, description, insert_rank}: %w", err)
	}
	for i, e := range entries {
		if e.Title == "" || e.URL == "" {
			return nil, fmt.Errorf("injected_results[%d]: title and url are required", i)
		}
	}
	return entries, nil
}
