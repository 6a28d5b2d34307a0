package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AaksharGarg/autorfp-crawler/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Server:   config.ServerConfig{Enabled: false},
		Frontier: config.FrontierConfig{Provider: "memory"},
		Fetcher: config.FetcherConfig{
			Provider:          "static",
			UserAgent:         "test-agent",
			NavTimeoutSeconds: 5,
		},
		LLM: config.LLMConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3",
			TimeoutSeconds: 5,
			MaxTokens:      256,
		},
		Agent: config.AgentConfig{
			Goal:      "test goal",
			BatchSize: 2,
			MaxSteps:  10,
			RecordDir: dir + "/records",
		},
		DB:     config.DBConfig{Provider: "noop"},
		Blob:   config.BlobConfig{Provider: "local", BaseDir: dir + "/blobs"},
		PubSub: config.PubSubConfig{Provider: "noop"},
	}
}

func TestBuildWiresMemoryStack(t *testing.T) {
	cfg := baseConfig(t)

	a, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Frontier)
	require.NotNil(t, a.Manager)
	require.NotNil(t, a.APIServer)
}

func TestBuildRejectsUnknownFrontierProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Frontier.Provider = "dynamo"

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown frontier provider")
}

func TestBuildRejectsUnknownBlobProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Blob.Provider = "s3"

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown blob provider")
}

func TestBuildRejectsUnknownFetcherProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Fetcher.Provider = "curl"

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown fetcher provider")
}
