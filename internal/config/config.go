// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: listen address, CORS, rate limiting
//   - Database: PostgreSQL connection (sessions, feedback and the vector index)
//   - LLM: Groq chat completion model, temperature, max tokens
//   - Embedding: OpenAI-compatible embedding endpoint and model
//   - Retrieval: top-k, similarity threshold, prompt token budget
//   - Cache: response cache TTL and capacity
//   - Ingest: chunking and batching for document ingestion
//
// Sensitive values (API keys, passwords) are masked in MarshalJSON.
// Validation uses sentinel errors checked with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidCacheTTL indicates the cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache ttl")

	// ErrInvalidCacheSize indicates the cache capacity is out of range.
	ErrInvalidCacheSize = errors.New("invalid cache max entries")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidDimension indicates the embedding dimension is invalid.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidDatabase indicates the PostgreSQL configuration is invalid.
	ErrInvalidDatabase = errors.New("invalid database configuration")

	// ErrInvalidEndpoint indicates an HTTP endpoint URL is invalid.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

const (
	// DefaultLLMModel is the default Groq chat completion model.
	DefaultLLMModel = "llama-3.1-70b-versatile"

	// DefaultEmbeddingModel is the default multilingual embedding model.
	// The query:/passage: prefixes in internal/embed assume an E5 family model.
	DefaultEmbeddingModel = "intfloat/multilingual-e5-base"

	// VectorDimension is the embedding width the pgvector schema is built for.
	// Changing it requires a migration of document_chunks.embedding.
	VectorDimension = 768

	// MaxTopK is the absolute ceiling for retrieval candidates.
	MaxTopK = 20
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Server configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)

	// Per-IP rate limit for the chat endpoint
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// PostgreSQL configuration. DatabaseURL takes precedence when set;
	// otherwise the URL is assembled from the discrete fields.
	DatabaseURL      string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// LLM configuration (Groq, OpenAI-compatible)
	GroqAPIKey     string  `mapstructure:"groq_api_key" json:"groq_api_key"` // SENSITIVE: masked in MarshalJSON
	LLMBaseURL     string  `mapstructure:"llm_base_url" json:"llm_base_url"`
	LLMModel       string  `mapstructure:"llm_model" json:"llm_model"`
	LLMTemperature float32 `mapstructure:"llm_temperature" json:"llm_temperature"`
	LLMMaxTokens   int     `mapstructure:"llm_max_tokens" json:"llm_max_tokens"`

	// Embedding configuration (OpenAI-compatible endpoint)
	EmbeddingBaseURL   string `mapstructure:"embedding_base_url" json:"embedding_base_url"`
	EmbeddingAPIKey    string `mapstructure:"embedding_api_key" json:"embedding_api_key"` // SENSITIVE: masked in MarshalJSON
	EmbeddingModel     string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`

	// Retrieval and prompt configuration
	TopK                int     `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	PromptTokenBudget   int     `mapstructure:"prompt_token_budget" json:"prompt_token_budget"`
	HistoryLimit        int     `mapstructure:"history_limit" json:"history_limit"`

	// Response cache configuration
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	CacheMaxEntries int `mapstructure:"cache_max_entries" json:"cache_max_entries"`

	// Pipeline timeouts
	CallTimeoutSeconds    int `mapstructure:"call_timeout_seconds" json:"call_timeout_seconds"`
	RetrievalRetryDelayMS int `mapstructure:"retrieval_retry_delay_ms" json:"retrieval_retry_delay_ms"`

	// Ingestion configuration
	ChunkSize       int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	EmbedBatchSize  int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	UpsertBatchSize int    `mapstructure:"upsert_batch_size" json:"upsert_batch_size"`
	PDFConverterURL string `mapstructure:"pdf_converter_url" json:"pdf_converter_url"`

	// Observability configuration. Tracing is disabled when OTLPEndpoint is empty.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("cors_origins", []string{"http://localhost:8501"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit_per_minute", 20)
	v.SetDefault("rate_limit_burst", 5)

	// PostgreSQL defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "assistant")
	v.SetDefault("postgres_password", "assistant_dev_password")
	v.SetDefault("postgres_db_name", "assistant")
	v.SetDefault("postgres_ssl_mode", "disable")

	// LLM defaults
	v.SetDefault("llm_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm_model", DefaultLLMModel)
	v.SetDefault("llm_temperature", 0.3)
	v.SetDefault("llm_max_tokens", 1024)

	// Embedding defaults
	v.SetDefault("embedding_base_url", "http://localhost:8080/v1")
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("embedding_dimension", VectorDimension)

	// Retrieval defaults
	v.SetDefault("top_k", 10)
	v.SetDefault("similarity_threshold", 0.5)
	v.SetDefault("prompt_token_budget", 6000)
	v.SetDefault("history_limit", 10)

	// Cache defaults
	v.SetDefault("cache_ttl_seconds", 3600)
	v.SetDefault("cache_max_entries", 1000)

	// Pipeline defaults
	v.SetDefault("call_timeout_seconds", 30)
	v.SetDefault("retrieval_retry_delay_ms", 500)

	// Ingestion defaults
	v.SetDefault("chunk_size", 512)
	v.SetDefault("chunk_overlap", 50)
	v.SetDefault("embed_batch_size", 32)
	v.SetDefault("upsert_batch_size", 100)

	// Observability defaults
	v.SetDefault("service_name", "faculty-assistant")
	v.SetDefault("environment", "dev")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly. Secrets are only
// ever read from the environment, never from config.yaml on disk.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("database_url", "DATABASE_URL")
	mustBind("groq_api_key", "GROQ_API_KEY")
	mustBind("embedding_api_key", "EMBEDDING_API_KEY")
	mustBind("embedding_base_url", "EMBEDDING_BASE_URL")
	mustBind("llm_base_url", "LLM_BASE_URL")
	mustBind("llm_model", "LLM_MODEL")
	mustBind("http_addr", "ASSISTANT_HTTP_ADDR")
	mustBind("cors_origins", "ASSISTANT_CORS_ORIGINS")
	mustBind("trust_proxy", "ASSISTANT_TRUST_PROXY")
	mustBind("pdf_converter_url", "PDF_CONVERTER_URL")
	mustBind("otlp_endpoint", "OTLP_ENDPOINT")
	mustBind("log_level", "ASSISTANT_LOG_LEVEL")
}

// URL returns the PostgreSQL connection URL. DatabaseURL wins when set;
// otherwise the URL is assembled from the discrete postgres_* fields.
func (c *Config) URL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     c.PostgresHost + ":" + strconv.Itoa(c.PostgresPort),
		Path:     "/" + c.PostgresDBName,
		RawQuery: "sslmode=" + c.PostgresSSLMode,
	}
	return u.String()
}

// CallTimeout returns the per-call timeout for external dependencies.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// RetrievalRetryDelay returns the backoff before the single retrieval retry.
func (c *Config) RetrievalRetryDelay() time.Duration {
	return time.Duration(c.RetrievalRetryDelayMS) * time.Millisecond
}

// CacheTTL returns the response cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.GroqAPIKey = maskSecret(a.GroqAPIKey)
	a.EmbeddingAPIKey = maskSecret(a.EmbeddingAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
