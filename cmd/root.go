// Package cmd defines the CLI commands for the autorfp-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/config"
	"github.com/AaksharGarg/autorfp-crawler/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autorfp-crawler",
		Short: "Agentic crawler for coating and waterproofing tenders",
		Long: `autorfp-crawler discovers, fetches, and extracts structured tender/RFP
records from the web. An LLM planner turns frontier state into an action
plan; the orchestrator executes it with retries and routes extraction
output through normalization, validation, and persistence.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with AUTORFP_ prefix also apply)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSeedCmd())
	return cmd
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
