// Package config provides application configuration with environment-first
// priority: environment variables override the optional config file, which
// overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("chunk overlap must be smaller than chunk size")

	// ErrInvalidTopK indicates the retrieval fan-out is out of range.
	ErrInvalidTopK = errors.New("top_k must be at least 1")

	// ErrInvalidThreshold indicates the routing confidence threshold is out of range.
	ErrInvalidThreshold = errors.New("route confidence threshold must be within [0, 1]")

	// ErrInvalidRetries indicates a retry budget is negative.
	ErrInvalidRetries = errors.New("retry budget must not be negative")

	// ErrInvalidHistoryWindow indicates the conversation window is out of range.
	ErrInvalidHistoryWindow = errors.New("history window must be at least 1")

	// ErrUnknownSessionBackend indicates an unsupported session backend name.
	ErrUnknownSessionBackend = errors.New("unknown session backend")
)

// Config holds every tunable of the orchestration core.
type Config struct {
	// Chunking / retrieval
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`

	// RAG graph stages
	RAGUseQueryRewriting  bool `mapstructure:"rag_use_query_rewriting"`
	RAGUseDocumentGrading bool `mapstructure:"rag_use_document_grading"`
	RAGMaxRetries         int  `mapstructure:"rag_max_retries"`

	// Routing
	RouteConfidenceThreshold float64 `mapstructure:"route_confidence_threshold"`
	HistoryWindow            int     `mapstructure:"history_window"`

	// Tools
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
	ToolMaxRetries int           `mapstructure:"tool_max_retries"`
	CityAPIURL     string        `mapstructure:"city_api_url"`
	EventsAPIURL   string        `mapstructure:"events_api_url"`

	// Models (opaque identifiers forwarded to the LLM/embedding capability)
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`

	// Storage
	SessionBackend string `mapstructure:"session_backend"`
	RedisAddr      string `mapstructure:"redis_addr"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	PostgresDSN    string `mapstructure:"postgres_dsn"`

	// Server
	Addr string `mapstructure:"addr"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chunk_size", 800)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("top_k", 5)
	v.SetDefault("rag_use_query_rewriting", true)
	v.SetDefault("rag_use_document_grading", true)
	v.SetDefault("rag_max_retries", 1)
	v.SetDefault("route_confidence_threshold", 0.6)
	v.SetDefault("history_window", 6)
	v.SetDefault("tool_timeout", 10*time.Second)
	v.SetDefault("tool_max_retries", 2)
	v.SetDefault("city_api_url", "https://api.yazzh.gate.petersburg.ru")
	v.SetDefault("events_api_url", "https://api.afisha.gate.petersburg.ru")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	// Empty defaults so AutomaticEnv surfaces these keys through Unmarshal;
	// viper only considers keys it already knows about.
	v.SetDefault("openai_api_key", "")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("session_backend", "memory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("sqlite_path", "cityagent.db")
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from the environment and an optional config file
// path. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks range invariants. It is called by Load and by tests that
// build configs by hand.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, c.TopK)
	}
	if c.RouteConfidenceThreshold < 0 || c.RouteConfidenceThreshold > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidThreshold, c.RouteConfidenceThreshold)
	}
	if c.RAGMaxRetries < 0 || c.ToolMaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidHistoryWindow, c.HistoryWindow)
	}
	switch c.SessionBackend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSessionBackend, c.SessionBackend)
	}
	return nil
}
