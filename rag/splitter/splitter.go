// Package splitter turns source documents into bounded, overlapping chunks
// with deterministic identifiers, so re-ingesting an unchanged source is
// idempotent.
package splitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yazdeszhivu/cityagent/rag"
)

// Splitter splits source text into chunks of ChunkSize runes with
// ChunkOverlap runes shared between consecutive chunks.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// New creates a Splitter. ChunkOverlap must be smaller than ChunkSize.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be within [0, %d)", chunkOverlap, chunkSize)
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Split chunks the text of one source. Chunk boundaries depend only on the
// configuration and the input, and ids are derived from the source URL, the
// chunk index and the chunk text, so the same input always yields the same
// chunks.
func (s *Splitter) Split(sourceURL, text string, meta rag.Metadata) []rag.DocumentChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap

	var chunks []rag.DocumentChunk
	for start, index := 0, 0; ; start, index = start+step, index+1 {
		end := start + s.ChunkSize
		last := false
		if end >= len(runes) {
			end = len(runes)
			last = true
		}

		chunkText := string(runes[start:end])
		chunks = append(chunks, rag.DocumentChunk{
			ID:        chunkID(sourceURL, index, chunkText),
			SourceURL: sourceURL,
			Text:      chunkText,
			Metadata:  meta,
		})

		if last {
			break
		}
	}
	return chunks
}

func chunkID(sourceURL string, index int, text string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", sourceURL, index, text))
	return hex.EncodeToString(h[:16])
}
