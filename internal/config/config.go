// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Frontier FrontierConfig `mapstructure:"frontier"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Agent    AgentConfig    `mapstructure:"agent"`
	DB       DBConfig       `mapstructure:"db"`
	Blob     BlobConfig     `mapstructure:"blob"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls the status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FrontierConfig selects and configures the frontier backend.
type FrontierConfig struct {
	Provider    string `mapstructure:"provider"`
	RedisURL    string `mapstructure:"redis_url"`
	FrontierKey string `mapstructure:"frontier_key"`
	SeenKey     string `mapstructure:"seen_key"`
	SeqKey      string `mapstructure:"seq_key"`
}

// FetcherConfig governs page fetching and per-host politeness.
type FetcherConfig struct {
	Provider            string `mapstructure:"provider"`
	UserAgent           string `mapstructure:"user_agent"`
	RequestDelaySeconds int    `mapstructure:"request_delay_seconds"`
	NavTimeoutSeconds   int    `mapstructure:"nav_timeout_seconds"`
	MaxParallel         int    `mapstructure:"max_parallel"`
	DownloadDir         string `mapstructure:"download_dir"`
}

// LLMConfig configures the completion service used by the planner.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	RepairAttempts int    `mapstructure:"repair_attempts"`
}

// AgentConfig governs orchestrator cycles.
type AgentConfig struct {
	Goal       string `mapstructure:"goal"`
	BatchSize  int    `mapstructure:"batch_size"`
	MaxSteps   int    `mapstructure:"max_steps"`
	Iterations int    `mapstructure:"iterations"`
	RecordDir  string `mapstructure:"record_dir"`
}

// DBConfig controls access to the relational record store.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// BlobConfig sets where raw artifacts and failure logs are written.
type BlobConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for downstream record notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTORFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("frontier.provider", "memory")
	v.SetDefault("frontier.redis_url", "redis://localhost:6379/0")
	v.SetDefault("frontier.frontier_key", "rfp_frontier")
	v.SetDefault("frontier.seen_key", "rfp_seen")
	v.SetDefault("frontier.seq_key", "rfp_frontier_seq")
	v.SetDefault("fetcher.provider", "headless")
	v.SetDefault("fetcher.user_agent", "AutoRFPAgent/1.0")
	v.SetDefault("fetcher.request_delay_seconds", 1)
	v.SetDefault("fetcher.nav_timeout_seconds", 30)
	v.SetDefault("fetcher.max_parallel", 2)
	v.SetDefault("fetcher.download_dir", "logs/downloads")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.repair_attempts", 2)
	v.SetDefault("agent.goal", "Discover and extract coating and waterproofing tenders")
	v.SetDefault("agent.batch_size", 5)
	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.iterations", 3)
	v.SetDefault("agent.record_dir", "logs/extracted")
	v.SetDefault("db.provider", "noop")
	v.SetDefault("db.table", "rfp_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("blob.provider", "local")
	v.SetDefault("blob.base_dir", "logs")
	v.SetDefault("blob.prefix", "artifacts")
	v.SetDefault("pubsub.provider", "noop")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Frontier.Provider {
	case "redis":
		if c.Frontier.RedisURL == "" {
			return fmt.Errorf("frontier.redis_url must be set for the redis provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown frontier provider: %s", c.Frontier.Provider)
	}
	if c.Fetcher.Provider != "headless" && c.Fetcher.Provider != "static" {
		return fmt.Errorf("unknown fetcher provider: %s", c.Fetcher.Provider)
	}
	if c.Fetcher.RequestDelaySeconds < 0 {
		return fmt.Errorf("fetcher.request_delay_seconds must be >= 0")
	}
	if c.Agent.BatchSize <= 0 {
		return fmt.Errorf("agent.batch_size must be > 0")
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be > 0")
	}
	if c.LLM.RepairAttempts < 0 {
		return fmt.Errorf("llm.repair_attempts must be >= 0")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set for the postgres provider")
	}
	if c.Blob.Provider == "gcs" && c.Blob.Bucket == "" {
		return fmt.Errorf("blob.bucket must be set for the gcs provider")
	}
	if c.PubSub.Provider == "pubsub" && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set for the pubsub provider")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout into a duration.
func (c FetcherConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// RequestDelay converts the per-host delay into a duration.
func (c FetcherConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySeconds) * time.Second
}

// Timeout converts the LLM request timeout into a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
