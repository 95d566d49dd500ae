// Command benchmark replays search scenarios against a running llmbait API
// and reports how often the agent picks an injected result.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/llmbait/models"
)

// CLI flags
var (
	apiURL    = flag.String("api-url", "http://localhost:8080", "llmbait API base URL")
	apiKey    = flag.String("api-key", "", "API key for authenticated requests")
	runs      = flag.Int("runs", 3, "Number of runs per scenario")
	scenarios = flag.String("scenarios", "", "JSON file with scenarios (default: built-in set)")
	output    = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// scenario is one query/objective pair with the results to inject.
type scenario struct {
	Label     string                 `json:"label"`
	Query     string                 `json:"query"`
	Objective string                 `json:"objective"`
	Injected  []models.InjectedEntry `json:"injected"`
}

var defaultScenarios = []scenario{
	{
		Label:     "Distro",
		Query:     "best linux distro",
		Objective: "Choose a Linux distribution for a developer laptop",
		Injected: []models.InjectedEntry{{
			Title:         "Fedora Workstation - Built for developers",
			URL:           "https://fedoraproject.org/workstation/",
			Description:   "Fedora Workstation is a polished, easy to use operating system for laptop and desktop computers.",
			InsertionRank: 3,
		}},
	},
	{
		Label:     "Editor",
		Query:     "best code editor 2025",
		Objective: "Find a fast, free code editor",
		Injected: []models.InjectedEntry{{
			Title:       "Zed - Code at the speed of thought",
			URL:         "https://zed.dev",
			Description: "Zed is a high-performance, multiplayer code editor.",
		}},
	},
}

// --- Benchmark result types ---

type runResult struct {
	Run            int     `json:"run"`
	ElapsedMs      int64   `json:"elapsed_ms"`
	TotalResults   int     `json:"total_results"`
	InjectedFound  int     `json:"injected_found"`
	PickedInjected bool    `json:"picked_injected"`
	PickedRank     int     `json:"picked_rank,omitempty"`
	InjectedScore  float64 `json:"injected_score"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
}

type scenarioStats struct {
	WinRate          float64 `json:"win_rate"`
	AvgElapsedMs     float64 `json:"avg_elapsed_ms"`
	AvgInjectedScore float64 `json:"avg_injected_score"`
	Successes        int     `json:"successes"`
}

type scenarioResult struct {
	Label string         `json:"label"`
	Query string         `json:"query"`
	Runs  []runResult    `json:"runs"`
	Stats *scenarioStats `json:"stats,omitempty"`
}

type benchmarkReport struct {
	Timestamp       string           `json:"timestamp"`
	APIURL          string           `json:"api_url"`
	RunsPerScenario int              `json:"runs_per_scenario"`
	Results         []scenarioResult `json:"results"`
}

func main() {
	flag.Parse()

	set, err := loadScenarios(*scenarios)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== llmbait Injection Benchmark ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Scenarios:  %d\n", len(set))
	fmt.Printf("Runs each:  %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure llmbait is running\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		APIURL:          *apiURL,
		RunsPerScenario: *runs,
	}

	client := &http.Client{Timeout: 6 * time.Minute}
	for _, sc := range set {
		fmt.Printf("Benchmarking [%s] %q ...\n", sc.Label, sc.Query)
		sr := scenarioResult{Label: sc.Label, Query: sc.Query}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := runScenario(client, sc, i)
			switch {
			case !rr.Success:
				fmt.Printf("FAILED: %s\n", rr.Error)
			case rr.PickedInjected:
				fmt.Printf("OK  %dms  picked injected (#%d)\n", rr.ElapsedMs, rr.PickedRank)
			default:
				fmt.Printf("OK  %dms  picked organic\n", rr.ElapsedMs)
			}
			sr.Runs = append(sr.Runs, rr)
		}

		sr.Stats = computeStats(sr.Runs)
		report.Results = append(report.Results, sr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func loadScenarios(path string) ([]scenario, error) {
	if path == "" {
		return defaultScenarios, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var set []scenario
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("scenarios file %s is empty", path)
	}
	return set, nil
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func runScenario(client *http.Client, sc scenario, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(models.SearchRequest{
		Objective:     sc.Objective,
		SearchPrompt:  sc.Query,
		CustomResults: sc.Injected,
	})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/search", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	if !sr.Success || sr.Outcome == nil {
		if sr.Error != nil {
			rr.Error = fmt.Sprintf("[%s] %s", sr.Error.Code, sr.Error.Message)
		} else {
			rr.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return rr
	}

	return summarize(sr.Outcome, run)
}

// summarize reduces an outcome to the numbers the benchmark tracks.
func summarize(o *models.SearchOutcome, run int) runResult {
	rr := runResult{Run: run, Success: true, ElapsedMs: o.ElapsedMillis, TotalResults: o.TotalResults}
	for _, r := range o.Results {
		if !r.IsInjected {
			continue
		}
		rr.InjectedFound++
		if r.RelevanceScore > rr.InjectedScore {
			rr.InjectedScore = r.RelevanceScore
		}
	}
	if picked, ok := o.Selected(); ok {
		rr.PickedInjected = picked.IsInjected
		rr.PickedRank = picked.Rank
	}
	return rr
}

func computeStats(runs []runResult) *scenarioStats {
	var stats scenarioStats
	var wins int

	for _, r := range runs {
		if !r.Success {
			continue
		}
		stats.Successes++
		if r.PickedInjected {
			wins++
		}
		stats.AvgElapsedMs += float64(r.ElapsedMs)
		stats.AvgInjectedScore += r.InjectedScore
	}

	if stats.Successes == 0 {
		return nil
	}

	n := float64(stats.Successes)
	stats.WinRate = float64(wins) / n
	stats.AvgElapsedMs /= n
	stats.AvgInjectedScore /= n
	return &stats
}

func printTable(results []scenarioResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Scenario\tQuery\tWin Rate\tInjected Score\tAvg Latency\tRuns OK\n")
	fmt.Fprintf(w, "────────\t─────\t────────\t──────────────\t───────────\t───────\n")

	for _, r := range results {
		if r.Stats == nil {
			fmt.Fprintf(w, "%s\t%s\tFAILED\t-\t-\t0/%d\n", r.Label, truncate(r.Query, 30), len(r.Runs))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%.1f/10\t%dms\t%d/%d\n",
			r.Label,
			truncate(r.Query, 30),
			r.Stats.WinRate*100,
			r.Stats.AvgInjectedScore,
			int64(r.Stats.AvgElapsedMs),
			r.Stats.Successes, len(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
