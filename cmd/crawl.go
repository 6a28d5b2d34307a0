package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/app"
)

func newCrawlCmd() *cobra.Command {
	var iterations int

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run orchestrator cycles against the frontier",
		Long: `Runs plan-execute cycles: each cycle dequeues a batch of frontier URLs,
asks the planner for an action plan, executes it, and persists extracted
records. Stops after the configured number of iterations or as soon as
the frontier is empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), iterations)
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 0, "number of cycles to run (0 = use agent.iterations from config)")
	return cmd
}

func runCrawl(ctx context.Context, iterations int) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Close()

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           a.APIServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http server shutdown", zap.Error(err))
			}
		}()
	}

	if iterations <= 0 {
		iterations = cfg.Agent.Iterations
	}
	if iterations <= 0 {
		iterations = 1
	}

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			logger.Info("crawl interrupted", zap.Int("completed_cycles", i))
			return nil
		}
		logger.Info("starting cycle", zap.Int("cycle", i+1), zap.Int("total", iterations))

		processed, err := a.Manager.RunOnce(ctx)
		if err != nil {
			logger.Error("cycle failed", zap.Int("cycle", i+1), zap.Error(err))
			continue
		}
		if processed == 0 {
			logger.Info("frontier empty; stopping early", zap.Int("completed_cycles", i+1))
			return nil
		}
	}
	logger.Info("crawl finished", zap.Int("cycles", iterations))
	return nil
}
