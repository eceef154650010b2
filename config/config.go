// Package config provides the service configuration: defaults, YAML
// file loading, environment variable overrides and file watching.
//
// Precedence: defaults, then YAML file, then environment variables with
// the RESEARCHFLOW prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" env:"SERVER"`
	Log         LogConfig         `yaml:"log" env:"LOG"`
	Research    ResearchConfig    `yaml:"research" env:"RESEARCH"`
	Search      SearchConfig      `yaml:"search" env:"SEARCH"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer" env:"SYNTHESIZER"`
	Scoring     ScoringConfig     `yaml:"scoring" env:"SCORING"`
	Embedding   EmbeddingConfig   `yaml:"embedding" env:"EMBEDDING"`
	Streaming   StreamingConfig   `yaml:"streaming" env:"STREAMING"`
	History     HistoryConfig     `yaml:"history" env:"HISTORY"`
	Metrics     MetricsConfig     `yaml:"metrics" env:"METRICS"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// Build constructs the configured zap logger.
func (l LogConfig) Build() (*zap.Logger, error) {
	var cfg zap.Config
	if l.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if l.Level != "" {
		lvl, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("config: parse log level %q: %w", l.Level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// ResearchConfig bounds the research pipeline.
type ResearchConfig struct {
	MaxConcurrentRuns    int           `yaml:"max_concurrent_runs" env:"MAX_CONCURRENT_RUNS"`
	MaxDepth             int           `yaml:"max_depth" env:"MAX_DEPTH"`
	MaxSubtopicsPerLevel int           `yaml:"max_subtopics_per_level" env:"MAX_SUBTOPICS_PER_LEVEL"`
	Workers              int           `yaml:"workers" env:"WORKERS"`
	AgentTimeout         time.Duration `yaml:"agent_timeout" env:"AGENT_TIMEOUT"`
	AggregationPreset    string        `yaml:"aggregation_preset" env:"AGGREGATION_PRESET"`
}

// SearchConfig points the agents at their search backend. An empty
// endpoint disables the serving entrypoint; the library surface does
// not need it.
type SearchConfig struct {
	Endpoint string        `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SynthesizerConfig points the subtopic extractor at the synthesis
// service. Empty endpoint disables subtopic extraction.
type SynthesizerConfig struct {
	Endpoint string        `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string        `yaml:"api_key" env:"API_KEY"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ScoringConfig tunes final result ranking.
type ScoringConfig struct {
	Preset          string  `yaml:"preset" env:"PRESET"`
	DiversityWeight float64 `yaml:"diversity_weight" env:"DIVERSITY_WEIGHT"`
}

// EmbeddingConfig configures the embedding backend, chunking, and the
// embedding cache. An empty endpoint disables content embedding in the
// pipeline.
type EmbeddingConfig struct {
	Endpoint      string        `yaml:"endpoint" env:"ENDPOINT"`
	APIKey        string        `yaml:"api_key" env:"API_KEY"`
	Model         string        `yaml:"model" env:"MODEL"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	MaxBatchSize  int           `yaml:"max_batch_size" env:"MAX_BATCH_SIZE"`
	Strategy      string        `yaml:"strategy" env:"STRATEGY"`
	MaxTokens     int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	OverlapTokens int           `yaml:"overlap_tokens" env:"OVERLAP_TOKENS"`
}

// StreamingConfig configures live update delivery.
type StreamingConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	SendTimeout       time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT"`
}

// HistoryConfig configures run persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// TelemetryConfig configures the OTel SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Research: ResearchConfig{
			MaxConcurrentRuns:    3,
			MaxDepth:             3,
			MaxSubtopicsPerLevel: 5,
			Workers:              4,
			AgentTimeout:         30 * time.Second,
			AggregationPreset:    "balanced",
		},
		Search: SearchConfig{
			Timeout: 30 * time.Second,
		},
		Synthesizer: SynthesizerConfig{
			Timeout: 60 * time.Second,
		},
		Scoring: ScoringConfig{
			Preset:          "general",
			DiversityWeight: 0.05,
		},
		Embedding: EmbeddingConfig{
			RedisAddr:     "localhost:6379",
			CacheTTL:      24 * time.Hour,
			MaxBatchSize:  100,
			Strategy:      "semantic",
			MaxTokens:     512,
			OverlapTokens: 50,
		},
		Streaming: StreamingConfig{
			HeartbeatInterval: 30 * time.Second,
			SendTimeout:       5 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "researchflow.db",
		},
		Metrics: MetricsConfig{
			Namespace: "researchflow",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "researchflow",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Research.MaxDepth < 1 {
		errs = append(errs, "research.max_depth must be at least 1")
	}
	if c.Research.MaxSubtopicsPerLevel < 0 {
		errs = append(errs, "research.max_subtopics_per_level must not be negative")
	}
	if c.Research.MaxConcurrentRuns < 1 {
		errs = append(errs, "research.max_concurrent_runs must be at least 1")
	}
	if c.Scoring.DiversityWeight < 0 || c.Scoring.DiversityWeight > 1 {
		errs = append(errs, "scoring.diversity_weight must be between 0 and 1")
	}
	if c.Embedding.MaxBatchSize < 1 {
		errs = append(errs, "embedding.max_batch_size must be at least 1")
	}
	if c.Embedding.OverlapTokens >= c.Embedding.MaxTokens {
		errs = append(errs, "embedding.overlap_tokens must be below max_tokens")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
