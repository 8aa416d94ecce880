package processor

import (
	"strings"
	"unicode/utf8"
)

// Config represents the chunking policy for corpus documents. Sizes are in
// runes, not bytes: the corpus is Cyrillic, where the two differ.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// Processor splits document text into retrievable chunks. Splitting is
// sentence-aware so a chunk rarely ends mid-sentence, with a configurable
// overlap so context at chunk borders is not lost.
type Processor struct {
	config Config
}

func NewWithConfig(config Config) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}

	return Processor{
		config: config,
	}
}

// Chunk cleans the text and splits it into chunks of at most ChunkSize
// runes.
func (p *Processor) Chunk(text string) []string {
	clean := p.cleanText(text)
	if clean == "" {
		return nil
	}
	return p.splitIntoChunks(clean)
}

func (p *Processor) cleanText(text string) string {
	// Collapse runs of whitespace; the corpus comes from sources with
	// arbitrary formatting.
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

func (p *Processor) splitIntoChunks(text string) []string {
	var chunks []string

	sentences := p.splitIntoSentences(text)

	currentChunk := strings.Builder{}
	currentLen := 0 // runes

	for _, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)

		if currentLen+sentenceLen > p.config.ChunkSize {
			if currentLen >= p.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			// Start the next chunk with the tail of the previous one. The
			// tail is cut on a rune boundary; a byte slice here would split
			// multi-byte Cyrillic characters.
			if p.config.ChunkOverlap > 0 && currentLen > p.config.ChunkOverlap {
				tail := []rune(currentChunk.String())
				lastPart := string(tail[len(tail)-p.config.ChunkOverlap:])
				currentChunk.Reset()
				currentChunk.WriteString(lastPart)
				currentLen = p.config.ChunkOverlap
			} else {
				currentChunk.Reset()
				currentLen = 0
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
		currentLen += sentenceLen + 1
	}

	if currentLen >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func (p *Processor) splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}
