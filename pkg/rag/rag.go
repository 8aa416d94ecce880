package rag

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/internal/types"
	"github.com/kvant/advisor/pkg/llm"
)

// Fallback texts shown when generation fails. The raw error never reaches
// the end user.
const (
	fallbackWithContext = "Извините, сервис генерации ответов временно недоступен. Вот информация из нашей базы знаний:\n\n%s"
	fallbackNoContext   = "Извините, сервис временно недоступен. Пожалуйста, обратитесь к специалистам по телефону или через сайт."
)

// Config carries the identification details the orchestrator reports in
// health and stats.
type Config struct {
	Model        string
	Provider     string
	EmbeddingDim int
}

// Orchestrator is the top-level pipeline: retrieve, build the prompt,
// generate, time the whole thing and always hand the caller a usable
// AnswerResult.
type Orchestrator struct {
	config    Config
	retriever types.Retriever
	builder   *llm.Builder
	generator types.Generator
	index     types.SearchIndex
	logger    *zap.Logger

	totalQueries  atomic.Int64
	contextMisses atomic.Int64
	fallbacks     atomic.Int64
}

func New(config Config, retriever types.Retriever, builder *llm.Builder, generator types.Generator, index types.SearchIndex, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		config:    config,
		retriever: retriever,
		builder:   builder,
		generator: generator,
		index:     index,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one query. Failures below the
// orchestrator never crash the request path: a degraded retrieval continues
// without context, a failed generation yields a fixed fallback text. Only an
// empty query is rejected, as a user error.
func (o *Orchestrator) Answer(ctx context.Context, query string) (models.AnswerResult, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return models.AnswerResult{}, models.ErrInvalidQuery
	}

	o.totalQueries.Add(1)
	o.logger.Info("query received", zap.Int("length", len(query)))

	results, err := o.retriever.Retrieve(ctx, query)
	if err != nil {
		// Degraded path: answer without grounding context rather than fail.
		o.logger.Error("retrieval failed, continuing without context", zap.Error(err))
		results = nil
	}
	contextFound := len(results) > 0
	if !contextFound {
		o.contextMisses.Add(1)
	}

	prompt := o.builder.Build(query, results)

	chunkIDs := make([]int, len(prompt.ContextChunks))
	for i, c := range prompt.ContextChunks {
		chunkIDs[i] = c.ID
	}

	response, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		o.fallbacks.Add(1)
		o.logger.Error("generation failed, returning fallback", zap.Error(err))
		if contextFound {
			response = fmt.Sprintf(fallbackWithContext, llm.ContextText(prompt.ContextChunks))
		} else {
			response = fallbackNoContext
		}
	}

	elapsed := time.Since(start).Seconds()
	o.logger.Info("query answered",
		zap.Bool("context_found", contextFound),
		zap.Int("chunks", len(chunkIDs)),
		zap.Float64("processing_time", elapsed))

	return models.AnswerResult{
		Response:          response,
		ContextFound:      contextFound,
		ProcessingTime:    elapsed,
		RetrievedChunkIDs: chunkIDs,
	}, nil
}

// HealthCheck reports per-component status. The knowledge base is degraded
// when empty; the generation client is degraded when the model endpoint was
// unreachable on the last attempt.
func (o *Orchestrator) HealthCheck(ctx context.Context) models.HealthReport {
	kb := models.ComponentStatus{
		Name:   "knowledge_base",
		Status: models.StatusHealthy,
		Detail: map[string]string{
			"chunks":              fmt.Sprintf("%d", o.index.Size()),
			"embedding_dimension": fmt.Sprintf("%d", o.config.EmbeddingDim),
		},
	}
	if o.index.Size() == 0 {
		kb.Status = models.StatusDegraded
	}

	gen := models.ComponentStatus{
		Name:   "generation_client",
		Status: models.StatusHealthy,
		Detail: map[string]string{
			"model":    o.config.Model,
			"provider": o.config.Provider,
		},
	}
	if !o.generator.Reachable() {
		gen.Status = models.StatusDegraded
		gen.Detail["reachable"] = "false"
	}

	overall := models.StatusHealthy
	for _, c := range []models.ComponentStatus{kb, gen} {
		if c.Status != models.StatusHealthy {
			overall = models.StatusDegraded
		}
	}

	return models.HealthReport{
		Status:     overall,
		Components: []models.ComponentStatus{kb, gen},
	}
}

// Stats describes the knowledge base and counters for the monitoring
// collaborator.
func (o *Orchestrator) Stats() models.Stats {
	sources := 0
	if s, ok := o.index.(interface{ Sources() int }); ok {
		sources = s.Sources()
	}
	return models.Stats{
		TotalDocuments:     sources,
		TotalChunks:        o.index.Size(),
		EmbeddingDimension: o.config.EmbeddingDim,
		Model:              o.config.Model,
		Provider:           o.config.Provider,
	}
}

// Counters returns the aggregate per-process counters.
func (o *Orchestrator) Counters() (queries, misses, fallbacks int64) {
	return o.totalQueries.Load(), o.contextMisses.Load(), o.fallbacks.Load()
}
