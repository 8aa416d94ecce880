package retriever

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/internal/types"
)

// Config represents the retrieval policy.
type Config struct {
	TopK     int
	MinScore float64
}

// Retriever embeds a query, asks the index for the top-k neighbors and keeps
// only results above the relevance threshold. A nearest neighbor existing is
// not the same as it being relevant; the threshold is what separates the
// two.
type Retriever struct {
	config   Config
	embedder types.Embedder
	index    types.SearchIndex
	logger   *zap.Logger
}

func New(config Config, embedder types.Embedder, index types.SearchIndex, logger *zap.Logger) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		config:   config,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Retrieve returns the ranked chunks relevant to the query. An empty result
// is not an error; it signals that no grounding context was found.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.RetrievalResult, error) {
	vector, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.index.Query(ctx, vector, r.config.TopK)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Score >= r.config.MinScore {
			filtered = append(filtered, res)
		}
	}

	r.logger.Debug("retrieval finished",
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(filtered)),
		zap.Float64("min_score", r.config.MinScore))

	return filtered, nil
}

// embed calls the embedding provider, retrying once on failure. Embedding
// providers fail transiently often enough that a single retry pays for
// itself.
func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err == nil {
		return vector, nil
	}

	var embErr *models.EmbeddingError
	if !errors.As(err, &embErr) {
		return nil, err
	}

	r.logger.Warn("query embedding failed, retrying once", zap.Error(err))
	vector, retryErr := r.embedder.Embed(ctx, query)
	if retryErr != nil {
		return nil, retryErr
	}
	return vector, nil
}
