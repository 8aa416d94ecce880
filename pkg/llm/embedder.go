package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/kvant/advisor/internal/models"
)

// EmbedderConfig represents the configuration for the embedding provider.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int
}

// Embedder maps text to fixed-length vectors via an Ollama embedding model.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		config: config,
		llm:    emb,
	}, nil
}

// Embed returns the embedding vector for the given text. A provider error or
// a vector of unexpected dimension both surface as an EmbeddingError.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, &models.EmbeddingError{Err: err}
	}
	if len(embeddings) != 1 {
		return nil, &models.EmbeddingError{
			Err: fmt.Errorf("expected 1 embedding, got %d", len(embeddings)),
		}
	}
	if len(embeddings[0]) != e.config.Dimension {
		return nil, &models.EmbeddingError{
			Err: fmt.Errorf("embedding dimension %d, expected %d", len(embeddings[0]), e.config.Dimension),
		}
	}
	return embeddings[0], nil
}

// Dimension returns the configured embedding dimension.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}
