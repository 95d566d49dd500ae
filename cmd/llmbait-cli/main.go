// Command llmbait-cli runs a single search or metadata lookup locally and
// prints a human-readable report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/llmbait/app"
	"github.com/use-agent/llmbait/config"
)

var rootCMD = &cobra.Command{
	Use:   "llmbait-cli",
	Short: "Test how an LLM agent picks search results",
	Long: `llmbait-cli drives a real browser through a Google search, optionally
splices custom results into the page, and reports which result an agent
pursuing an objective would pick.

Configuration comes from LLMBAIT_* environment variables or a .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		app.InitLogger(loadConfig().Log)
	},
}

var cfg *config.Config

// loadConfig reads configuration once per process.
func loadConfig() *config.Config {
	if cfg == nil {
		cfg = config.Load()
		// The report owns stdout; keep logs quiet unless asked.
		if os.Getenv(config.EnvPrefix+"LOG_LEVEL") == "" {
			cfg.Log.Level = "warn"
		}
		if os.Getenv(config.EnvPrefix+"LOG_FORMAT") == "" {
			cfg.Log.Format = "text"
		}
	}
	return cfg
}

func main() {
	rootCMD.AddCommand(newSearchCMD(), newMetadataCMD())
	if err := rootCMD.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
