package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/llmbait/app"
	"github.com/use-agent/llmbait/models"
)

func newMetadataCMD() *cobra.Command {
	return &cobra.Command{
		Use:     "metadata URL",
		Short:   "Print the title and meta description of a page",
		Example: `  llmbait-cli metadata https://getfedora.org`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetadata(cmd.Context(), args[0])
		},
	}
}

func runMetadata(ctx context.Context, url string) error {
	stack, err := app.New(loadConfig())
	if err != nil {
		return err
	}
	defer stack.Close()

	// MaxAge -1: a one-shot process has nothing cached.
	resp := stack.Metadata.Lookup(ctx, &models.MetadataRequest{URL: url, MaxAge: -1})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
