package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/yazdeszhivu/cityagent/rag"
)

// DBPool defines the database operations the store needs. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PgvectorStore implements VectorStore on Postgres with the pgvector
// extension. Similarity uses the cosine distance operator.
type PgvectorStore struct {
	pool       DBPool
	tableName  string
	dimensions int
}

var _ VectorStore = (*PgvectorStore)(nil)

// PgvectorOptions configures the Postgres connection.
type PgvectorOptions struct {
	ConnString string
	TableName  string // default "document_chunks"
	Dimensions int    // embedding width, default 1536
}

// NewPgvectorStore connects a pool and returns the store.
func NewPgvectorStore(ctx context.Context, opts PgvectorOptions) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return newPgvectorStore(pool, opts), nil
}

// NewPgvectorStoreWithPool wraps an existing pool. Useful for testing with
// mocks.
func NewPgvectorStoreWithPool(pool DBPool, opts PgvectorOptions) *PgvectorStore {
	return newPgvectorStore(pool, opts)
}

func newPgvectorStore(pool DBPool, opts PgvectorOptions) *PgvectorStore {
	tableName := opts.TableName
	if tableName == "" {
		tableName = "document_chunks"
	}
	dims := opts.Dimensions
	if dims == 0 {
		dims = 1536
	}
	return &PgvectorStore{pool: pool, tableName: tableName, dimensions: dims}
}

// InitSchema creates the extension and table if they don't exist.
func (s *PgvectorStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_source_url ON %s (source_url);
	`, s.tableName, s.dimensions, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces chunks by id.
func (s *PgvectorStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, source_url, title, category, published_at, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			published_at = EXCLUDED.published_at,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, s.tableName)

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk without id (source %s)", chunk.SourceURL)
		}
		_, err := s.pool.Exec(ctx, query,
			chunk.ID,
			chunk.SourceURL,
			chunk.Metadata.Title,
			chunk.Metadata.Category,
			chunk.Metadata.PublishedAt,
			chunk.Text,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity.
func (s *PgvectorStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	query := fmt.Sprintf(`
		SELECT id, source_url, title, category, published_at, content,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, published_at DESC, id
		LIMIT $2
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Chunk.ID,
			&r.Chunk.SourceURL,
			&r.Chunk.Metadata.Title,
			&r.Chunk.Metadata.Category,
			&r.Chunk.Metadata.PublishedAt,
			&r.Chunk.Text,
			&r.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return results, nil
}

// DeleteBySource removes every chunk ingested from the given source.
func (s *PgvectorStore) DeleteBySource(ctx context.Context, sourceURL string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE source_url = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, sourceURL); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", sourceURL, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() {
	s.pool.Close()
}
