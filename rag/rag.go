// Package rag implements the retrieval-augmented answer pipeline: query
// rewriting, similarity retrieval, relevance grading and grounded generation,
// wired as an explicit state graph with a bounded retry loop.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetrieval marks a vector-search failure. Callers degrade to a tool-only
// or direct-answer path instead of aborting the turn.
var ErrRetrieval = errors.New("retrieval failed")

// RetrievalError wraps the underlying embedding or vector-search failure.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return ErrRetrieval }

// Metadata carries the indexed attributes of a chunk.
type Metadata struct {
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
}

// DocumentChunk is a bounded slice of source text stored with its embedding.
// Immutable once indexed.
type DocumentChunk struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

// Retriever returns the chunks most similar to a query, most relevant first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]DocumentChunk, error)
}

// Answer is the pipeline output: the generated text plus the source URLs it
// is grounded on. NoContext reports that no relevant documents survived and
// the text states that limitation instead of citing sources.
type Answer struct {
	Text      string
	Citations []string
	NoContext bool
}
