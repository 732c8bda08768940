package commands

import (
	"encoding/json"
	"fmt"

	"github.com/nholik/case-sentinel/internal/config"
	"github.com/nholik/case-sentinel/internal/fetch"
	"github.com/nholik/case-sentinel/internal/logging"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <source>",
	Short: "Fetch and extract one source once and print the record without storing it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.NewWithLevel(cfg.LogLevel)

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		src, ok := registry.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown source %q (known: %v)", args[0], registry.IDs())
		}

		timeout := cfg.FetchTimeout
		if src.Timeout > 0 {
			timeout = src.Timeout
		}
		fetcher, err := fetch.NewHTTPFetcher(timeout, 0, fetch.WithLogger(logger))
		if err != nil {
			return err
		}

		body, err := fetcher.Fetch(cmd.Context(), src.URL)
		if err != nil {
			return err
		}
		rec, err := src.Extractor.Extract(body)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(rec.WithUpdated(true))
	},
}
