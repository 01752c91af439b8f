package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yazdeszhivu/cityagent/rag"
)

// TextLoader loads documents from plain-text files, one document per file.
type TextLoader struct {
	paths    []string
	category string
}

// NewTextLoader creates a loader for the given file paths.
func NewTextLoader(paths []string, category string) *TextLoader {
	return &TextLoader{paths: paths, category: category}
}

// Load reads every file. The file path doubles as the source URL.
func (l *TextLoader) Load(ctx context.Context) ([]Document, error) {
	documents := make([]Document, 0, len(l.paths))
	for _, path := range l.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		documents = append(documents, Document{
			SourceURL: "file://" + filepath.ToSlash(path),
			Text:      string(content),
			Metadata: rag.Metadata{
				Title:       filepath.Base(path),
				Category:    l.category,
				PublishedAt: info.ModTime().UTC(),
			},
		})
	}
	return documents, nil
}
