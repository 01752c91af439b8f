// Package loader turns source material (web pages, text files, fixed
// corpora) into documents ready for splitting and indexing.
package loader

import (
	"context"

	"github.com/yazdeszhivu/cityagent/rag"
)

// Document is a whole source text before chunking.
type Document struct {
	SourceURL string
	Text      string
	Metadata  rag.Metadata
}

// Loader produces documents from some source.
type Loader interface {
	Load(ctx context.Context) ([]Document, error)
}

// StaticLoader serves a fixed list of documents. Used to seed the index in
// tests and local setups.
type StaticLoader struct {
	Documents []Document
}

// NewStaticLoader creates a loader over a fixed document list.
func NewStaticLoader(documents []Document) *StaticLoader {
	return &StaticLoader{Documents: documents}
}

// Load returns the static list of documents.
func (l *StaticLoader) Load(ctx context.Context) ([]Document, error) {
	return l.Documents, nil
}
