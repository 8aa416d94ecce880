package processor_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvant/advisor/pkg/processor"
)

func TestProcessor_Chunk(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{
		ChunkSize:      60,
		ChunkOverlap:   10,
		MinChunkLength: 20,
	})

	text := "Это первое предложение. Это второе предложение. Это третье предложение, оно немного длиннее остальных."
	chunks := p.Chunk(text)

	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0], "первое предложение")
	for _, c := range chunks {
		assert.GreaterOrEqual(t, len(c), 20)
	}
}

func TestProcessor_CollapsesWhitespace(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{
		ChunkSize:      1000,
		ChunkOverlap:   10,
		MinChunkLength: 5,
	})

	chunks := p.Chunk("Текст   с \n\n лишними   пробелами. И переносами строк.")
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0], "  ")
	assert.NotContains(t, chunks[0], "\n")
}

func TestProcessor_EmptyText(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{})
	assert.Empty(t, p.Chunk(""))
	assert.Empty(t, p.Chunk("   \n  "))
}

func TestProcessor_ShortTextBelowMinimumDropped(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{
		ChunkSize:      100,
		ChunkOverlap:   10,
		MinChunkLength: 50,
	})
	assert.Empty(t, p.Chunk("Коротко."))
}

func TestProcessor_CyrillicOverlapStaysValidUTF8(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{
		ChunkSize:      100,
		ChunkOverlap:   15,
		MinChunkLength: 10,
	})

	text := strings.Repeat("Инвестиционный пай удостоверяет долю владельца. ", 10)
	chunks := p.Chunk(text)
	require.Greater(t, len(chunks), 1)

	// The overlap tail must never cut a multi-byte character in half.
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d: %q", i, c)
	}
}

func TestProcessor_ChunkSizeCountsRunes(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{
		ChunkSize:      60,
		ChunkOverlap:   10,
		MinChunkLength: 10,
	})

	// 23 runes but over 40 bytes per sentence: two fit in a 60-rune chunk
	// only if the budget counts runes.
	sentence := "Пай удостоверяет долю. "
	chunks := p.Chunk(strings.Repeat(sentence, 6))
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 60+utf8.RuneCountInString(sentence), "chunk %d", i)
	}
}

func TestProcessor_LongTextSplitsWithOverlap(t *testing.T) {
	p := processor.NewWithConfig(processor.Config{
		ChunkSize:      80,
		ChunkOverlap:   20,
		MinChunkLength: 10,
	})

	sentence := "Предложение номер один для проверки разбиения. "
	text := strings.Repeat(sentence, 10)

	chunks := p.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 80+len(sentence))
	}
}
