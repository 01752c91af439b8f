// Package retriever bridges embedding and vector search into the single
// Retrieve call the answer pipeline depends on.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/rag/store"
)

// VectorRetriever embeds the query and searches a vector store for the
// top-k most similar chunks.
type VectorRetriever struct {
	embedder llm.Embedder
	store    store.VectorStore
	topK     int
	logger   log.Logger
}

var _ rag.Retriever = (*VectorRetriever)(nil)

// Options configures a VectorRetriever.
type Options struct {
	Embedder llm.Embedder
	Store    store.VectorStore
	TopK     int // default 5
	Logger   log.Logger
}

// New validates the options and returns a retriever.
func New(opts Options) (*VectorRetriever, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	topK := opts.TopK
	if topK == 0 {
		topK = 5
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}
	logger := opts.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &VectorRetriever{
		embedder: opts.Embedder,
		store:    opts.Store,
		topK:     topK,
		logger:   logger,
	}, nil
}

// Retrieve embeds the query and returns the nearest chunks, most similar
// first. Embedding and search failures come back as a RetrievalError so
// callers can degrade instead of aborting.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]rag.DocumentChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &rag.RetrievalError{Err: fmt.Errorf("empty query")}
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &rag.RetrievalError{Err: fmt.Errorf("embed query: %w", err)}
	}

	results, err := r.store.Search(ctx, embedding, r.topK)
	if err != nil {
		return nil, &rag.RetrievalError{Err: fmt.Errorf("vector search: %w", err)}
	}

	r.logger.Debug("retrieved %d chunks for query %q", len(results), query)

	chunks := make([]rag.DocumentChunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, res.Chunk)
	}
	return chunks, nil
}
