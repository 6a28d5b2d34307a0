// Package app builds the application's dependency graph from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/agent"
	"github.com/AaksharGarg/autorfp-crawler/internal/api"
	"github.com/AaksharGarg/autorfp-crawler/internal/blob"
	"github.com/AaksharGarg/autorfp-crawler/internal/clock/system"
	"github.com/AaksharGarg/autorfp-crawler/internal/config"
	"github.com/AaksharGarg/autorfp-crawler/internal/extract"
	"github.com/AaksharGarg/autorfp-crawler/internal/fetch"
	"github.com/AaksharGarg/autorfp-crawler/internal/frontier"
	"github.com/AaksharGarg/autorfp-crawler/internal/id/uuid"
	"github.com/AaksharGarg/autorfp-crawler/internal/llm"
	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/normalize"
	"github.com/AaksharGarg/autorfp-crawler/internal/planner"
	"github.com/AaksharGarg/autorfp-crawler/internal/publish"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
	"github.com/AaksharGarg/autorfp-crawler/internal/store"
	"github.com/AaksharGarg/autorfp-crawler/internal/validate"
)

// App holds the wired application.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Frontier  rfp.Frontier
	Manager   *agent.Manager
	APIServer *api.Server

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Build creates the application's dependencies. Unknown providers fail fast.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{Cfg: cfg, Logger: logger}
	clock := system.New()
	ids := uuid.New()

	front, err := a.buildFrontier(cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	a.Frontier = front

	fetcher, err := a.buildFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := a.buildBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	recordStore, err := a.buildRecordStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sink, err := store.NewFileSink(cfg.Agent.RecordDir, clock)
	if err != nil {
		return nil, fmt.Errorf("record sink: %w", err)
	}

	completer := llm.NewOllama(llm.OllamaConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout(),
	}, logger)
	plnr := planner.New(completer, blobs, clock, ids, planner.Config{
		MaxTokens:      cfg.LLM.MaxTokens,
		RepairAttempts: cfg.LLM.RepairAttempts,
	}, logger)

	extractor := extract.New()
	downloader := fetch.NewHTTPDownloader(cfg.Fetcher.NavTimeout(), logger)

	tools := agent.NewRegistry(agent.RegistryDeps{
		Frontier:     front,
		Fetcher:      fetcher,
		Extractor:    extractor,
		Downloader:   downloader,
		Store:        recordStore,
		FetchTimeout: cfg.Fetcher.NavTimeout(),
		Logger:       logger,
	})

	a.Manager = agent.NewManager(agent.ManagerDeps{
		Frontier:   front,
		Planner:    plnr,
		Tools:      tools,
		Normalizer: normalize.New(clock),
		Validator:  validate.New(),
		Sink:       sink,
		Store:      recordStore,
		Publisher:  publisher,
		Blobs:      blobs,
		Clock:      clock,
		IDs:        ids,
		Logger:     logger,
	}, agent.ManagerConfig{
		Goal:      cfg.Agent.Goal,
		BatchSize: cfg.Agent.BatchSize,
		MaxSteps:  cfg.Agent.MaxSteps,
	})

	a.APIServer = api.NewServer(front, tools, logger)
	return a, nil
}

func (a *App) buildFrontier(cfg config.Config, clock rfp.Clock, logger *zap.Logger) (rfp.Frontier, error) {
	switch cfg.Frontier.Provider {
	case "memory":
		return frontier.NewMemory(clock), nil
	case "redis":
		front, err := frontier.NewRedis(frontier.RedisConfig{
			URL:         cfg.Frontier.RedisURL,
			FrontierKey: cfg.Frontier.FrontierKey,
			SeenKey:     cfg.Frontier.SeenKey,
			SeqKey:      cfg.Frontier.SeqKey,
		}, clock, logger)
		if err != nil {
			return nil, fmt.Errorf("redis frontier: %w", err)
		}
		a.closers = append(a.closers, front)
		return front, nil
	default:
		return nil, fmt.Errorf("unknown frontier provider: %s", cfg.Frontier.Provider)
	}
}

func (a *App) buildFetcher(cfg config.Config, logger *zap.Logger) (rfp.Fetcher, error) {
	var inner rfp.Fetcher
	switch cfg.Fetcher.Provider {
	case "headless":
		headless, err := fetch.NewHeadless(fetch.HeadlessConfig{
			MaxParallel: cfg.Fetcher.MaxParallel,
			UserAgent:   cfg.Fetcher.UserAgent,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("headless fetcher: %w", err)
		}
		a.closers = append(a.closers, closerFunc(func() error {
			headless.Close()
			return nil
		}))
		inner = headless
	case "static":
		inner = fetch.NewStatic(fetch.StaticConfig{UserAgent: cfg.Fetcher.UserAgent}, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher provider: %s", cfg.Fetcher.Provider)
	}
	if cfg.Fetcher.RequestDelaySeconds > 0 {
		return fetch.NewRateLimited(inner, cfg.Fetcher.RequestDelay()), nil
	}
	return inner, nil
}

func (a *App) buildBlobStore(ctx context.Context, cfg config.Config) (rfp.BlobStore, error) {
	switch cfg.Blob.Provider {
	case "local":
		blobs, err := blob.NewLocal(blob.LocalConfig{BaseDir: cfg.Blob.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store: %w", err)
		}
		return blobs, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, client)
		blobs, err := blob.NewGCS(client, blob.GCSConfig{
			Bucket: cfg.Blob.Bucket,
			Prefix: cfg.Blob.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown blob provider: %s", cfg.Blob.Provider)
	}
}

func (a *App) buildRecordStore(ctx context.Context, cfg config.Config) (rfp.RecordStore, error) {
	switch cfg.DB.Provider {
	case "noop":
		return nil, nil
	case "postgres":
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MaxConnLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres record store: %w", err)
		}
		a.closers = append(a.closers, closerFunc(func() error {
			pg.Close()
			return nil
		}))
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown db provider: %s", cfg.DB.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (rfp.Publisher, error) {
	switch cfg.PubSub.Provider {
	case "noop":
		return publish.NewNoOp(), nil
	case "pubsub":
		pub, err := publish.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub)
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown pubsub provider: %s", cfg.PubSub.Provider)
	}
}

// Close releases every resource Build acquired, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close dependency", zap.Error(err))
		}
	}
}
