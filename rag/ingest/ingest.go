// Package ingest runs the indexing pipeline: load source documents, split
// them into chunks, embed each chunk and upsert into the vector store.
package ingest

import (
	"context"
	"fmt"

	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
	"github.com/yazdeszhivu/cityagent/rag/loader"
	"github.com/yazdeszhivu/cityagent/rag/splitter"
	"github.com/yazdeszhivu/cityagent/rag/store"
)

// Indexer writes loaded documents into a vector store.
type Indexer struct {
	splitter *splitter.Splitter
	embedder llm.Embedder
	store    store.VectorStore
	logger   log.Logger
}

// Options configures an Indexer.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Embedder     llm.Embedder
	Store        store.VectorStore
	Logger       log.Logger
}

// New validates the options and returns an Indexer.
func New(opts Options) (*Indexer, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	sp, err := splitter.New(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Indexer{splitter: sp, embedder: opts.Embedder, store: opts.Store, logger: logger}, nil
}

// Index loads documents and upserts their chunks. Re-indexing a source first
// drops its previous chunks so removed passages don't linger.
func (i *Indexer) Index(ctx context.Context, l loader.Loader) (int, error) {
	documents, err := l.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}

	total := 0
	for _, doc := range documents {
		chunks := i.splitter.Split(doc.SourceURL, doc.Text, doc.Metadata)
		if len(chunks) == 0 {
			i.logger.Warn("source %s produced no chunks, skipping", doc.SourceURL)
			continue
		}

		for idx := range chunks {
			embedding, err := i.embedder.Embed(ctx, chunks[idx].Text)
			if err != nil {
				return total, fmt.Errorf("embed chunk %s: %w", chunks[idx].ID, err)
			}
			chunks[idx].Embedding = embedding
		}

		if err := i.store.DeleteBySource(ctx, doc.SourceURL); err != nil {
			return total, fmt.Errorf("drop stale chunks for %s: %w", doc.SourceURL, err)
		}
		if err := i.store.Upsert(ctx, chunks); err != nil {
			return total, fmt.Errorf("upsert chunks for %s: %w", doc.SourceURL, err)
		}

		i.logger.Info("indexed %s: %d chunks", doc.SourceURL, len(chunks))
		total += len(chunks)
	}
	return total, nil
}
