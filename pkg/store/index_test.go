package store_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/pkg/store"
)

func makeChunks() []models.Chunk {
	return []models.Chunk{
		{ID: 0, Text: "alpha", SourceID: "a.txt", Embedding: []float32{1, 0, 0}},
		{ID: 1, Text: "beta", SourceID: "a.txt", Embedding: []float32{0, 1, 0}},
		{ID: 2, Text: "gamma", SourceID: "b.txt", Embedding: []float32{0, 0, 1}},
		{ID: 3, Text: "delta", SourceID: "b.txt", Embedding: []float32{1, 1, 0}},
	}
}

func TestFlatIndex_QueryReturnsMinKN(t *testing.T) {
	idx := store.NewFlatIndex(3)
	require.NoError(t, idx.Build(makeChunks()))

	ctx := context.Background()

	for _, k := range []int{1, 2, 4, 10} {
		results, err := idx.Query(ctx, []float32{1, 0, 0}, k)
		require.NoError(t, err)

		want := k
		if want > 4 {
			want = 4
		}
		assert.Len(t, results, want, "k=%d", k)

		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	}
}

func TestFlatIndex_TiesBrokenByAscendingID(t *testing.T) {
	chunks := []models.Chunk{
		{ID: 7, Text: "same", Embedding: []float32{1, 0}},
		{ID: 2, Text: "same", Embedding: []float32{1, 0}},
		{ID: 5, Text: "same", Embedding: []float32{1, 0}},
	}
	idx := store.NewFlatIndex(2)
	require.NoError(t, idx.Build(chunks))

	results, err := idx.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 2, results[0].Chunk.ID)
	assert.Equal(t, 5, results[1].Chunk.ID)
	assert.Equal(t, 7, results[2].Chunk.ID)
}

func TestFlatIndex_BuildOrderIndependent(t *testing.T) {
	chunks := makeChunks()

	shuffled := make([]models.Chunk, len(chunks))
	copy(shuffled, chunks)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a := store.NewFlatIndex(3)
	require.NoError(t, a.Build(chunks))
	b := store.NewFlatIndex(3)
	require.NoError(t, b.Build(shuffled))

	query := []float32{0.4, 0.8, 0.1}
	ra, err := a.Query(context.Background(), query, 4)
	require.NoError(t, err)
	rb, err := b.Query(context.Background(), query, 4)
	require.NoError(t, err)

	assert.Equal(t, ra, rb)
}

func TestFlatIndex_BuildDimensionMismatch(t *testing.T) {
	chunks := makeChunks()
	chunks[2].Embedding = []float32{1, 2} // wrong length

	idx := store.NewFlatIndex(3)
	err := idx.Build(chunks)

	var dimErr *models.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.ChunkID)
	assert.Equal(t, 3, dimErr.Want)
	assert.Equal(t, 2, dimErr.Got)

	// Nothing partially inserted.
	assert.Equal(t, 0, idx.Size())
}

func TestFlatIndex_QueryDimensionMismatch(t *testing.T) {
	idx := store.NewFlatIndex(3)
	require.NoError(t, idx.Build(makeChunks()))

	_, err := idx.Query(context.Background(), []float32{1, 0}, 3)
	var dimErr *models.DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}

func TestFlatIndex_EmptyIndex(t *testing.T) {
	idx := store.NewFlatIndex(3)
	require.NoError(t, idx.Build(nil))

	results, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, idx.Size())
}

func TestFlatIndex_ScoresAreCosineSimilarity(t *testing.T) {
	chunks := []models.Chunk{
		{ID: 0, Text: "same direction", Embedding: []float32{2, 0}},
		{ID: 1, Text: "orthogonal", Embedding: []float32{0, 5}},
		{ID: 2, Text: "opposite", Embedding: []float32{-3, 0}},
	}
	idx := store.NewFlatIndex(2)
	require.NoError(t, idx.Build(chunks))

	results, err := idx.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Magnitude must not matter, only direction.
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[1].Score, 1e-6)
	assert.InDelta(t, -1.0, results[2].Score, 1e-6)
}

func TestFlatIndex_ChunkLookupAndSources(t *testing.T) {
	idx := store.NewFlatIndex(3)
	require.NoError(t, idx.Build(makeChunks()))

	c, ok := idx.Chunk(2)
	require.True(t, ok)
	assert.Equal(t, "gamma", c.Text)

	_, ok = idx.Chunk(99)
	assert.False(t, ok)

	assert.Equal(t, 2, idx.Sources())
}

func TestFlatIndex_BuildTwiceFails(t *testing.T) {
	idx := store.NewFlatIndex(3)
	require.NoError(t, idx.Build(makeChunks()))
	assert.Error(t, idx.Build(makeChunks()))
}
