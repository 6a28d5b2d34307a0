package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/app"
	"github.com/AaksharGarg/autorfp-crawler/internal/frontier"
)

func newSeedCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Enqueue seed URLs from a descriptor file",
		Long: `Loads a JSON seed file (an array of {url, priority, depth, meta} objects)
and enqueues each entry into the frontier. Duplicate and invalid URLs are
reported but do not abort the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, seedFile)
		},
	}

	cmd.Flags().StringVar(&seedFile, "file", "", "path to the seed JSON file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(cmd *cobra.Command, seedFile string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	seeds, err := frontier.LoadSeedFile(seedFile)
	if err != nil {
		return fmt.Errorf("load seed file: %w", err)
	}

	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Close()

	results := frontier.EnqueueSeeds(cmd.Context(), a.Frontier, seeds, logger)

	var added, skipped, failed int
	for _, result := range results {
		switch {
		case result.Err != nil:
			failed++
			logger.Warn("seed rejected", zap.String("url", result.URL), zap.Error(result.Err))
		case result.Added:
			added++
		default:
			skipped++
		}
	}

	cmd.Printf("seeds: %d added, %d duplicate, %d rejected (of %d)\n", added, skipped, failed, len(results))
	return nil
}
