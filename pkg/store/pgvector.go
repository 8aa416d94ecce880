package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kvant/advisor/internal/models"
)

// PgIndex is a pgvector-backed alternative to FlatIndex for corpora too
// large to scan in memory. It satisfies the same search contract: cosine
// similarity, descending score, ties by ascending chunk id.
type PgIndexConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

type PgIndex struct {
	config PgIndexConfig
	pool   *pgxpool.Pool
	size   int
}

func NewPgIndex(config PgIndexConfig) (*PgIndex, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	idx := &PgIndex{
		config: config,
		pool:   pool,
	}

	if err := idx.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return idx, nil
}

func (idx *PgIndex) initialize() error {
	ctx := context.Background()

	_, err := idx.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			source_id TEXT NOT NULL,
			content TEXT,
			embedding vector(%d)
		)`, idx.config.TableName, idx.config.VectorDim)

	_, err = idx.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		idx.config.TableName, idx.config.TableName)

	_, err = idx.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Build replaces the table contents with the given chunks in a single
// transaction, so a failed build leaves no partial insert behind.
func (idx *PgIndex) Build(chunks []models.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != idx.config.VectorDim {
			return &models.DimensionMismatchError{
				ChunkID: c.ID,
				Want:    idx.config.VectorDim,
				Got:     len(c.Embedding),
			}
		}
	}

	ctx := context.Background()

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", idx.config.TableName)); err != nil {
		return fmt.Errorf("failed to truncate table: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source_id, content, embedding)
		VALUES ($1, $2, $3, $4)`,
		idx.config.TableName)

	for _, c := range chunks {
		_, err = tx.Exec(ctx, stmt,
			c.ID,
			c.SourceID,
			sanitizeUTF8(c.Text),
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %v", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	idx.size = len(chunks)
	return nil
}

// Query returns up to k nearest chunks by cosine similarity.
func (idx *PgIndex) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	if len(vector) != idx.config.VectorDim {
		return nil, &models.DimensionMismatchError{Want: idx.config.VectorDim, Got: len(vector)}
	}
	if k <= 0 {
		return []models.RetrievalResult{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, source_id, content, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY score DESC, id ASC
		LIMIT $2`,
		idx.config.TableName)

	rows, err := idx.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	results := []models.RetrievalResult{}
	for rows.Next() {
		var r models.RetrievalResult
		err := rows.Scan(
			&r.Chunk.ID,
			&r.Chunk.SourceID,
			&r.Chunk.Text,
			&r.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

func (idx *PgIndex) Size() int {
	return idx.size
}

func (idx *PgIndex) Close() {
	if idx.pool != nil {
		idx.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
