package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/llmbait/app"
	"github.com/use-agent/llmbait/models"
	"github.com/use-agent/llmbait/report"
)

type searchFlags struct {
	query      string
	objective  string
	injectFile string
	maxResults int
	noWait     bool
	timeout    time.Duration
	jsonOutput bool
}

func newSearchCMD() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search and report the agent's pick",
		Example: `  llmbait-cli search --query "best linux distro" --objective "pick a distro for a new laptop"
  llmbait-cli search -q "best linux distro" -o "pick a distro" --inject fedora.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.query, "query", "q", "", "query typed into the search box")
	cmd.Flags().StringVarP(&f.objective, "objective", "o", "", "goal the simulated agent is pursuing")
	cmd.Flags().StringVar(&f.injectFile, "inject", "", "JSON file with an array of {title, url, description, insert_rank}")
	cmd.Flags().IntVar(&f.maxResults, "max-results", models.DefaultMaxResults, "base number of results to extract")
	cmd.Flags().BoolVar(&f.noWait, "no-wait", false, "do not pause for results to render after submitting")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "overall deadline (default: LLMBAIT_DEFAULT_TIMEOUT)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the outcome as JSON instead of the report")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("objective")
	return cmd
}

// buildSearchRequest turns flags into a validated request.
func buildSearchRequest(f searchFlags) (*models.SearchRequest, error) {
	injected, err := loadInjected(f.injectFile)
	if err != nil {
		return nil, err
	}
	wait := !f.noWait
	req := &models.SearchRequest{
		Objective:      f.objective,
		SearchPrompt:   f.query,
		MaxResults:     f.maxResults,
		WaitForResults: &wait,
		CustomResults:  injected,
	}
	req.Defaults()
	return req, nil
}

// loadInjected reads the injected entries file. An empty path means none.
func loadInjected(path string) ([]models.InjectedEntry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inject file: %w", err)
	}
	var entries []models.InjectedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse inject file %s: %w", path, err)
	}
	for i, e := range entries {
		if e.Title == "" || e.URL == "" {
			return nil, fmt.Errorf("inject file %s: entry %d needs a title and url", path, i)
		}
	}
	return entries, nil
}

func runSearch(ctx context.Context, f searchFlags) error {
	cfg := loadConfig()
	req, err := buildSearchRequest(f)
	if err != nil {
		return err
	}

	timeout := f.timeout
	if timeout <= 0 {
		timeout = cfg.Search.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stack, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	outcome, err := stack.Runner.Run(ctx, req)
	if err != nil {
		return err
	}

	if f.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	r := report.New(os.Stdout)
	if err := r.Render(os.Stdout, outcome, req.Objective); err != nil {
		return err
	}
	if err := r.RenderVerdict(os.Stdout, outcome); err != nil {
		return err
	}
	r.Emit(report.SlogSink{Logger: slog.Default()}, outcome, req.Objective)
	return nil
}
