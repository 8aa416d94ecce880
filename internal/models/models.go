package models

// Chunk is a unit of source-document text small enough to embed and
// retrieve independently. Immutable once indexed.
type Chunk struct {
	ID        int
	Text      string
	SourceID  string
	Embedding []float32
}

// RetrievalResult pairs a chunk with its cosine similarity to the query.
type RetrievalResult struct {
	Chunk Chunk
	Score float64
}

// Prompt is the assembled generation input. Value object; built once by the
// prompt builder and only consumed afterwards.
type Prompt struct {
	System        string
	ContextChunks []Chunk
	UserQuery     string
}

// HasContext reports whether any grounding context survived retrieval.
func (p Prompt) HasContext() bool {
	return len(p.ContextChunks) > 0
}

// AnswerResult is what the orchestrator returns for every query, including
// fallback paths. ProcessingTime is wall-clock seconds from validation start
// to result construction, backoff delays included.
type AnswerResult struct {
	Response          string
	ContextFound      bool
	ProcessingTime    float64
	RetrievedChunkIDs []int
}

// ComponentStatus is one entry of a health report.
type ComponentStatus struct {
	Name   string            `json:"name"`
	Status string            `json:"status"`
	Detail map[string]string `json:"detail,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthReport aggregates per-component status.
type HealthReport struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
}

// Stats describes the knowledge base for the monitoring collaborator.
type Stats struct {
	TotalDocuments     int    `json:"total_documents"`
	TotalChunks        int    `json:"total_chunks"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	Model              string `json:"model"`
	Provider           string `json:"provider"`
}
