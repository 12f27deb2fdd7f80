// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/youtube-graph-crawler/internal/logging"
	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/gcs"
	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/local"
)

// EnvPrefix prefixes every environment override, e.g. GRAPHCRAWLER_YOUTUBE_API_KEY.
const EnvPrefix = "GRAPHCRAWLER"

// Output backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures every knob of a crawl run.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Output     OutputConfig     `mapstructure:"output"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    logging.Config   `mapstructure:"logging"`
	Progress   ProgressConfig   `mapstructure:"progress"`
}

// CrawlConfig governs traversal and checkpointing.
type CrawlConfig struct {
	SeedFile                 string `mapstructure:"seed_file"`
	MaxDepth                 int    `mapstructure:"max_depth"`
	CheckpointInterval       int    `mapstructure:"checkpoint_interval"`
	CheckpointCount          int    `mapstructure:"checkpoint_count"`
	FinalWriteTimeoutSeconds int    `mapstructure:"final_write_timeout_seconds"`
}

// FinalWriteTimeout returns the bound on the final snapshot write.
func (c CrawlConfig) FinalWriteTimeout() time.Duration {
	return time.Duration(c.FinalWriteTimeoutSeconds) * time.Second
}

// ClassifierConfig holds the tier thresholds.
type ClassifierConfig struct {
	RecencyYears        int    `mapstructure:"recency_years"`
	MinVideos           uint64 `mapstructure:"min_videos"`
	MajorSubscribers    uint64 `mapstructure:"major_subscribers"`
	ConnectorMinTargets int    `mapstructure:"connector_min_targets"`
}

// YouTubeConfig configures the Data API client.
type YouTubeConfig struct {
	APIKey           string `mapstructure:"api_key"`
	Endpoint         string `mapstructure:"endpoint"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// Timeout returns the per-attempt request timeout.
func (c YouTubeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c YouTubeConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c YouTubeConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// RateLimitConfig paces API requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// OutputConfig selects where snapshot tables are written.
type OutputConfig struct {
	Backend string `mapstructure:"backend"`
	Prefix  string `mapstructure:"prefix"`

	Local local.Config `mapstructure:",squash"`
	GCS   gcs.Config   `mapstructure:",squash"`
}

// DBConfig enables the optional Postgres row sink when DSN is set.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig enables the run notification when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether a notification should be published.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.TopicName != ""
}

// MetricsConfig serves /metrics and /healthz on Addr while crawling.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// MaxBatchWait returns the hub flush interval.
func (c ProgressConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMs) * time.Millisecond
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("crawl.seed_file", "data/seed_nodes.csv")
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.checkpoint_interval", 150)
	v.SetDefault("crawl.checkpoint_count", 10)
	v.SetDefault("crawl.final_write_timeout_seconds", 60)
	v.SetDefault("classifier.recency_years", 5)
	v.SetDefault("classifier.min_videos", 150)
	v.SetDefault("classifier.major_subscribers", 1000000)
	v.SetDefault("classifier.connector_min_targets", 3)
	// Registered so AutomaticEnv can resolve them during Unmarshal.
	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.endpoint", "")
	v.SetDefault("youtube.timeout_seconds", 15)
	v.SetDefault("youtube.max_attempts", 3)
	v.SetDefault("youtube.backoff_initial_ms", 250)
	v.SetDefault("youtube.backoff_max_ms", 5000)
	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.prefix", "graph")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "snapshot_rows")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 500)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.SeedFile) == "" {
		return fmt.Errorf("crawl.seed_file must be set")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0")
	}
	if c.Crawl.CheckpointInterval < 0 {
		return fmt.Errorf("crawl.checkpoint_interval must be >= 0")
	}
	if c.Crawl.CheckpointCount < 0 {
		return fmt.Errorf("crawl.checkpoint_count must be >= 0")
	}
	if c.Crawl.FinalWriteTimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.final_write_timeout_seconds must be > 0")
	}
	if c.Classifier.RecencyYears <= 0 {
		return fmt.Errorf("classifier.recency_years must be > 0")
	}
	if c.Classifier.ConnectorMinTargets < 0 {
		return fmt.Errorf("classifier.connector_min_targets must be >= 0")
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		return fmt.Errorf("youtube.timeout_seconds must be > 0")
	}
	if c.YouTube.MaxAttempts <= 0 {
		return fmt.Errorf("youtube.max_attempts must be > 0")
	}
	if c.YouTube.BackoffMaxMs < c.YouTube.BackoffInitialMs {
		return fmt.Errorf("youtube.backoff_max_ms must be >= youtube.backoff_initial_ms")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("ratelimit.requests_per_second must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be > 0")
	}
	switch c.Output.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Output.Local.BaseDir) == "" {
			return fmt.Errorf("output.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Output.GCS.Bucket) == "" {
			return fmt.Errorf("output.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("output.backend must be one of local, gcs, memory; got %q", c.Output.Backend)
	}
	if c.DB.DSN != "" && c.DB.MaxConns <= 0 {
		return fmt.Errorf("db.max_conns must be > 0 when db.dsn is set")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Progress.BufferSize < 0 || c.Progress.MaxBatchEvents < 0 || c.Progress.MaxBatchWaitMs < 0 {
		return fmt.Errorf("progress settings must be >= 0")
	}
	return c.Logging.Validate()
}

// RequireAPIKey reports a missing youtube.api_key. It is separate from
// Validate so that configuration can be inspected without credentials.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.YouTube.APIKey) == "" {
		return fmt.Errorf("youtube.api_key must be set (env %s_YOUTUBE_API_KEY)", EnvPrefix)
	}
	return nil
}
