package types

import (
	"context"
	"time"

	"github.com/kvant/advisor/internal/models"
)

// Capability interfaces shared across packages. The embedding and completion
// boundaries are interfaces so providers can be swapped without touching
// retrieval or orchestration logic.

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Completer sends an assembled prompt to a text-generation model and returns
// the raw completion. One network call per invocation; the generation
// client's retry policy sits above it.
type Completer interface {
	Complete(ctx context.Context, prompt models.Prompt) (string, error)
}

// SearchIndex answers nearest-neighbor queries over embedded chunks.
// Query is safe for concurrent use once Build has completed.
type SearchIndex interface {
	Build(chunks []models.Chunk) error
	Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error)
	Size() int
}

// Retriever returns ranked chunks relevant to a query, already filtered by
// the relevance threshold. An empty result is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.RetrievalResult, error)
}

// Generator produces an answer for a prompt, absorbing transient failures
// per its retry policy. Only the terminal outcome escapes.
type Generator interface {
	Generate(ctx context.Context, prompt models.Prompt) (string, error)
	Reachable() bool
}

// Sleeper abstracts the backoff wait so retry behavior is testable without
// real delay. Sleep returns early with the context error if ctx expires.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
