package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yazdeszhivu/cityagent/rag"
)

// MemoryStore is an in-memory vector store with brute-force cosine search.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]rag.DocumentChunk
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]rag.DocumentChunk)}
}

// Upsert inserts or replaces chunks by id.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk without id (source %s)", chunk.SourceURL)
		}
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		results = append(results, SearchResult{
			Chunk: chunk,
			Score: cosineSimilarity(embedding, chunk.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := results[i].Chunk.Metadata.PublishedAt, results[j].Chunk.Metadata.PublishedAt
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteBySource removes every chunk ingested from the given source.
func (s *MemoryStore) DeleteBySource(ctx context.Context, sourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, chunk := range s.chunks {
		if chunk.SourceURL == sourceURL {
			delete(s.chunks, id)
		}
	}
	return nil
}

// Len reports the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
