package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kvant/advisor/internal/models"
)

// FlatIndex is an in-memory vector index over the knowledge-base chunks.
// Vectors are normalized once at build time, so cosine similarity reduces to
// a flat dot-product scan. The index is built exactly once at startup and is
// read-only afterwards; Query is safe for concurrent use.
type FlatIndex struct {
	dim int

	mu      sync.RWMutex
	built   bool
	chunks  []models.Chunk // ascending id
	vectors [][]float32    // normalized, row i belongs to chunks[i]
	rows    map[int]int    // chunk id -> row
}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{
		dim:  dim,
		rows: make(map[int]int),
	}
}

// Build indexes the given chunks. Every chunk gets exactly one row and vice
// versa; on any dimension mismatch nothing is inserted. Input order does not
// affect later retrieval: chunks are stored sorted by id.
func (idx *FlatIndex) Build(chunks []models.Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.built {
		return fmt.Errorf("index already built")
	}

	for _, c := range chunks {
		if len(c.Embedding) != idx.dim {
			return &models.DimensionMismatchError{
				ChunkID: c.ID,
				Want:    idx.dim,
				Got:     len(c.Embedding),
			}
		}
	}

	ordered := make([]models.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	idx.chunks = ordered
	idx.vectors = make([][]float32, len(ordered))
	for i, c := range ordered {
		idx.vectors[i] = normalize(c.Embedding)
		idx.rows[c.ID] = i
	}
	idx.built = true

	return nil
}

// Query returns up to k nearest chunks by cosine similarity, sorted by
// descending score with ties broken by ascending chunk id. It returns fewer
// than k results only when the index holds fewer than k chunks.
func (idx *FlatIndex) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, fmt.Errorf("index not built")
	}
	if len(vector) != idx.dim {
		return nil, &models.DimensionMismatchError{Want: idx.dim, Got: len(vector)}
	}
	if k <= 0 || len(idx.chunks) == 0 {
		return []models.RetrievalResult{}, nil
	}

	query := normalize(vector)

	results := make([]models.RetrievalResult, len(idx.chunks))
	for i, c := range idx.chunks {
		results[i] = models.RetrievalResult{
			Chunk: c,
			Score: dot(query, idx.vectors[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of indexed chunks.
func (idx *FlatIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Dimension returns the vector dimension the index was built for.
func (idx *FlatIndex) Dimension() int {
	return idx.dim
}

// Chunk returns the indexed chunk with the given id.
func (idx *FlatIndex) Chunk(id int) (models.Chunk, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	row, ok := idx.rows[id]
	if !ok {
		return models.Chunk{}, false
	}
	return idx.chunks[row], true
}

// Sources returns the number of distinct source documents in the index.
func (idx *FlatIndex) Sources() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	seen := make(map[string]struct{}, len(idx.chunks))
	for _, c := range idx.chunks {
		seen[c.SourceID] = struct{}{}
	}
	return len(seen)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
