// Package store provides the vector stores backing similarity search: an
// in-memory implementation for tests and small corpora, and a
// Postgres/pgvector implementation for production.
package store

import (
	"context"

	"github.com/yazdeszhivu/cityagent/rag"
)

// SearchResult pairs a chunk with its similarity score (higher is closer).
type SearchResult struct {
	Chunk rag.DocumentChunk
	Score float64
}

// VectorStore owns the indexed corpus. The retrieval path is read-only;
// mutation is limited to upsert and delete-by-source.
type VectorStore interface {
	// Upsert inserts or replaces chunks by id.
	Upsert(ctx context.Context, chunks []rag.DocumentChunk) error

	// Search returns the k nearest chunks by cosine similarity, ordered by
	// non-increasing score. Equal scores order by most recent published_at,
	// then by chunk id, so results are deterministic.
	Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)

	// DeleteBySource removes every chunk ingested from the given source.
	DeleteBySource(ctx context.Context, sourceURL string) error
}
