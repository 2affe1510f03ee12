// Package config loads and validates engine configuration. The environment
// is the primary source (optionally seeded from .env files); a YAML file can
// be layered underneath for deployments that prefer files. Env vars always
// win over file values.
package config

import (
	"net/url"
	"strings"
	"time"
)

// Vector store backends.
const (
	VectorProviderPgvector = "pgvector"
	VectorProviderQdrant   = "qdrant"
	VectorProviderChromem  = "chromem"
)

// Config is the root configuration.
type Config struct {
	Vector        VectorConfig        `yaml:"vector"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Chat          ChatConfig          `yaml:"chat"`
	Query         QueryConfig         `yaml:"query"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	// Provider is one of pgvector, qdrant, chromem.
	Provider string `yaml:"provider"`

	// DatabaseURL is the Postgres connection string (pgvector).
	DatabaseURL string `yaml:"database_url"`

	// Qdrant gRPC endpoint.
	QdrantHost string `yaml:"qdrant_host"`
	QdrantPort int    `yaml:"qdrant_port"`

	// ChromemPath persists the embedded store; empty means in-memory.
	ChromemPath string `yaml:"chromem_path"`

	// Connection pool bounds (pgvector).
	MaxConns int `yaml:"max_conns"`
	MaxIdle  int `yaml:"max_idle"`

	// DefaultCollection is searched when neither the caller nor the
	// router picked one.
	DefaultCollection string `yaml:"default_collection"`
}

// EmbeddingConfig configures the embedding endpoint (OpenAI-compatible).
type EmbeddingConfig struct {
	APIBase        string `yaml:"api_base"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ChatConfig configures the chat completion endpoint (OpenAI-compatible).
type ChatConfig struct {
	APIBase        string   `yaml:"api_base"`
	APIKey         string   `yaml:"api_key"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// QueryConfig holds per-query behavior knobs.
type QueryConfig struct {
	// TopK is the default retrieval depth, clamped to [1, 20].
	TopK int `yaml:"top_k"`

	// ContentMaxLength truncates retrieved snippets, clamped to [100, 2000].
	ContentMaxLength int `yaml:"content_max_length"`

	// MaxIterations bounds the reasoning loop.
	MaxIterations int `yaml:"max_iterations"`

	// TimeoutSeconds is the total per-query deadline.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RetrievalTimeoutSeconds bounds a single vector store call.
	RetrievalTimeoutSeconds int `yaml:"retrieval_timeout_seconds"`
}

// HTTPConfig holds transport-level settings shared by the embedding and
// chat clients.
type HTTPConfig struct {
	VerifySSL     *bool  `yaml:"verify_ssl"`
	CACertificate string `yaml:"ca_certificate"`
	MaxRetries    int    `yaml:"max_retries"`
	MaxInflight   int    `yaml:"max_inflight"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of simple, verbose, json.
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// ObservabilityConfig configures metrics and tracing exporters.
type ObservabilityConfig struct {
	ServiceName    string   `yaml:"service_name"`
	MetricsEnabled *bool    `yaml:"metrics_enabled"`
	MetricsPort    int      `yaml:"metrics_port"`
	TraceEndpoint  string   `yaml:"trace_endpoint"`
	SamplingRate   *float64 `yaml:"sampling_rate"`
}

func (c *Config) SetDefaults() {
	c.Vector.SetDefaults()
	c.Embedding.SetDefaults()
	c.Chat.SetDefaults()
	c.Query.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.Vector.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Chat.Validate(); err != nil {
		return err
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *VectorConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = VectorProviderPgvector
	}
	if c.QdrantHost == "" {
		c.QdrantHost = "localhost"
	}
	if c.QdrantPort == 0 {
		c.QdrantPort = 6334
	}
	if c.MaxConns == 0 {
		c.MaxConns = 8
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 4
	}
	if c.DefaultCollection == "" {
		c.DefaultCollection = "laws"
	}
}

func (c *VectorConfig) Validate() error {
	switch c.Provider {
	case VectorProviderPgvector:
		if c.DatabaseURL == "" {
			return newConfigError("vector.database_url", "VECTOR_DB_URL is required for the pgvector provider")
		}
		if strings.Contains(c.DatabaseURL, "://") {
			if _, err := url.Parse(c.DatabaseURL); err != nil {
				return newConfigError("vector.database_url", "invalid connection URL: %v", err)
			}
		}
	case VectorProviderQdrant, VectorProviderChromem:
	default:
		return newConfigError("vector.provider", "unknown provider %q (valid: pgvector, qdrant, chromem)", c.Provider)
	}
	return nil
}

func (c *EmbeddingConfig) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 8
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 120
	}
}

func (c *EmbeddingConfig) Validate() error {
	if c.APIBase == "" {
		return newConfigError("embedding.api_base", "EMBED_API_BASE is required")
	}
	if _, err := url.Parse(c.APIBase); err != nil {
		return newConfigError("embedding.api_base", "invalid URL: %v", err)
	}
	if c.APIKey == "" {
		return newConfigError("embedding.api_key", "EMBED_API_KEY is required")
	}
	if c.Model == "" {
		return newConfigError("embedding.model", "EMBED_MODEL is required")
	}
	if c.BatchSize < 1 {
		return newConfigError("embedding.batch_size", "batch size must be at least 1, got %d", c.BatchSize)
	}
	return nil
}

func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *ChatConfig) SetDefaults() {
	if c.Temperature == nil {
		temp := 0.0
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 120
	}
}

func (c *ChatConfig) Validate() error {
	if c.APIBase == "" {
		return newConfigError("chat.api_base", "CHAT_API_BASE is required")
	}
	if _, err := url.Parse(c.APIBase); err != nil {
		return newConfigError("chat.api_base", "invalid URL: %v", err)
	}
	if c.APIKey == "" {
		return newConfigError("chat.api_key", "CHAT_API_KEY is required")
	}
	if c.Model == "" {
		return newConfigError("chat.model", "CHAT_MODEL is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return newConfigError("chat.temperature", "temperature must be between 0 and 2, got %g", *c.Temperature)
	}
	return nil
}

func (c *ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *QueryConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 10
	}
	c.TopK = clamp(c.TopK, 1, 20)

	if c.ContentMaxLength == 0 {
		c.ContentMaxLength = 800
	}
	c.ContentMaxLength = clamp(c.ContentMaxLength, 100, 2000)

	if c.MaxIterations == 0 {
		c.MaxIterations = 10
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 300
	}
	if c.RetrievalTimeoutSeconds == 0 {
		c.RetrievalTimeoutSeconds = 30
	}
}

func (c *QueryConfig) Validate() error {
	if c.MaxIterations < 1 {
		return newConfigError("query.max_iterations", "must be at least 1, got %d", c.MaxIterations)
	}
	if c.TimeoutSeconds < 1 {
		return newConfigError("query.timeout_seconds", "must be at least 1, got %d", c.TimeoutSeconds)
	}
	return nil
}

func (c *QueryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *QueryConfig) RetrievalTimeout() time.Duration {
	return time.Duration(c.RetrievalTimeoutSeconds) * time.Second
}

func (c *HTTPConfig) SetDefaults() {
	if c.VerifySSL == nil {
		c.VerifySSL = BoolPtr(true)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxInflight == 0 {
		c.MaxInflight = 16
	}
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 30
	}
	if c.WriteTimeoutSeconds == 0 {
		c.WriteTimeoutSeconds = 120
	}
	if c.IdleTimeoutSeconds == 0 {
		c.IdleTimeoutSeconds = 120
	}
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "aileron"
	}
	if c.MetricsEnabled == nil {
		c.MetricsEnabled = BoolPtr(false)
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
	if c.SamplingRate == nil {
		rate := 1.0
		c.SamplingRate = &rate
	}
}

// BoolPtr returns a pointer to b, for optional config fields.
func BoolPtr(b bool) *bool {
	return &b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
