package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.Provider != "ollama" && c.LLM.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: "provider must be ollama or openai",
		})
	}

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "LLM base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid LLM base URL",
		})
	}

	if c.LLM.Provider == "openai" && c.LLM.APIToken == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_token",
			Message: "API token is required for the openai provider",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_score",
			Message: "min_score must be within [-1, 1]",
		})
	}

	if c.Retrieval.EmbeddingDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.embedding_dim",
			Message: "embedding_dim must be positive",
		})
	}

	if c.Prompt.MaxChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "prompt.max_chars",
			Message: "max_chars must be positive",
		})
	}

	if c.Generation.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "generation.max_attempts",
			Message: "max_attempts must be positive",
		})
	}

	if c.Generation.BaseBackoffMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "generation.base_backoff_ms",
			Message: "base_backoff_ms must be positive",
		})
	}

	if c.Generation.MaxBackoffMs < c.Generation.BaseBackoffMs {
		errors = append(errors, ValidationError{
			Field:   "generation.max_backoff_ms",
			Message: "max_backoff_ms must be at least base_backoff_ms",
		})
	}

	if c.Generation.OverallDeadlineMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "generation.overall_deadline_ms",
			Message: "overall_deadline_ms must be positive",
		})
	}

	if c.Corpus.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "corpus.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Corpus.ChunkOverlap < 0 || c.Corpus.ChunkOverlap >= c.Corpus.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "corpus.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	return errors
}
