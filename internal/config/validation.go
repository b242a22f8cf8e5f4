package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// LLM configuration
	if c.GroqAPIKey == "" {
		return fmt.Errorf("%w: GROQ_API_KEY environment variable is required", ErrMissingAPIKey)
	}
	if c.LLMModel == "" {
		return fmt.Errorf("%w: llm_model cannot be empty", ErrInvalidModelName)
	}
	if c.LLMTemperature < 0.0 || c.LLMTemperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.LLMTemperature)
	}
	if c.LLMMaxTokens < 1 || c.LLMMaxTokens > 32768 {
		return fmt.Errorf("%w: must be between 1 and 32,768, got %d", ErrInvalidMaxTokens, c.LLMMaxTokens)
	}
	if err := validateEndpoint("llm_base_url", c.LLMBaseURL); err != nil {
		return err
	}

	// Embedding configuration
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model cannot be empty", ErrInvalidModelName)
	}
	if c.EmbeddingDimension != VectorDimension {
		return fmt.Errorf("%w: the vector schema is fixed at %d dimensions, got %d",
			ErrInvalidDimension, VectorDimension, c.EmbeddingDimension)
	}
	if err := validateEndpoint("embedding_base_url", c.EmbeddingBaseURL); err != nil {
		return err
	}

	// Retrieval configuration
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidTopK, MaxTopK, c.TopK)
	}
	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.PromptTokenBudget < 256 {
		return fmt.Errorf("%w: prompt_token_budget must be at least 256, got %d", ErrInvalidMaxTokens, c.PromptTokenBudget)
	}

	// Cache configuration
	if c.CacheTTLSeconds < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidCacheTTL, c.CacheTTLSeconds)
	}
	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidCacheSize, c.CacheMaxEntries)
	}

	// Ingestion configuration
	if c.ChunkSize < 32 || c.ChunkSize > 8192 {
		return fmt.Errorf("%w: chunk_size must be between 32 and 8192, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be non-negative and smaller than chunk_size, got %d",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	// Database configuration
	if c.DatabaseURL != "" {
		if !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
			return fmt.Errorf("%w: database_url must start with postgres:// or postgresql://", ErrInvalidDatabase)
		}
		return nil
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidDatabase)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidDatabase, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidDatabase)
	}

	return nil
}

func validateEndpoint(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s %q is not a valid http(s) URL", ErrInvalidEndpoint, name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s must use http or https, got %q", ErrInvalidEndpoint, name, u.Scheme)
	}
	return nil
}
