package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/internal/types"
	"github.com/kvant/advisor/pkg/processor"
)

// Loader reads the fixed document corpus from a directory and turns it into
// chunks ready for embedding. Plain text and markdown are read as-is; HTML
// files have their text extracted.
type Loader struct {
	processor processor.Processor
}

func New(proc processor.Processor) *Loader {
	return &Loader{processor: proc}
}

// Load walks the corpus directory and returns chunks with sequential ids.
// File order is fixed (sorted paths) so chunk ids are stable across
// restarts.
func (l *Loader) Load(dir string) ([]models.Chunk, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".html", ".htm":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus dir: %w", err)
	}
	sort.Strings(paths)

	var chunks []models.Chunk
	nextID := 0
	for _, path := range paths {
		text, err := readDocument(path)
		if err != nil {
			return nil, err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		for _, piece := range l.processor.Chunk(text) {
			chunks = append(chunks, models.Chunk{
				ID:       nextID,
				Text:     piece,
				SourceID: rel,
			})
			nextID++
		}
	}

	return chunks, nil
}

func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return extractHTMLText(string(data))
	default:
		return string(data), nil
	}
}

func extractHTMLText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text(), nil
}

// EmbedAll computes embeddings for every chunk with bounded concurrency.
// Either every chunk comes back embedded or the whole pass fails; partially
// embedded corpora never reach the index. onProgress, when set, is called
// once per finished chunk, concurrently from the worker goroutines — the
// callback must be safe for concurrent use.
func EmbedAll(ctx context.Context, embedder types.Embedder, chunks []models.Chunk, concurrency int, onProgress func()) error {
	if concurrency <= 0 {
		concurrency = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range chunks {
		i := i
		g.Go(func() error {
			vector, err := embedder.Embed(ctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunks[i].ID, err)
			}
			chunks[i].Embedding = vector
			if onProgress != nil {
				onProgress()
			}
			return nil
		})
	}

	return g.Wait()
}
