package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/rag/loader"
	"github.com/yazdeszhivu/cityagent/rag/store"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestIndexSplitsEmbedsAndUpserts(t *testing.T) {
	st := store.NewMemoryStore()
	emb := &fakeEmbedder{}
	ix, err := New(Options{ChunkSize: 800, ChunkOverlap: 200, Embedder: emb, Store: st})
	require.NoError(t, err)

	text := strings.Repeat("а", 1700)
	l := loader.NewStaticLoader([]loader.Document{
		{SourceURL: "https://gu.spb.ru/mfc", Text: text, Metadata: rag.Metadata{Title: "МФЦ"}},
	})

	total, err := ix.Index(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, 3, st.Len())
}

func TestIndexReplacesStaleChunks(t *testing.T) {
	st := store.NewMemoryStore()
	ix, err := New(Options{ChunkSize: 800, ChunkOverlap: 200, Embedder: &fakeEmbedder{}, Store: st})
	require.NoError(t, err)

	long := loader.NewStaticLoader([]loader.Document{
		{SourceURL: "https://gu.spb.ru/mfc", Text: strings.Repeat("а", 1700)},
	})
	_, err = ix.Index(context.Background(), long)
	require.NoError(t, err)
	require.Equal(t, 3, st.Len())

	// The source shrank: re-indexing must not leave old chunks behind.
	short := loader.NewStaticLoader([]loader.Document{
		{SourceURL: "https://gu.spb.ru/mfc", Text: "короткий текст"},
	})
	_, err = ix.Index(context.Background(), short)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
}

func TestIndexSkipsEmptyDocuments(t *testing.T) {
	st := store.NewMemoryStore()
	ix, err := New(Options{ChunkSize: 800, ChunkOverlap: 200, Embedder: &fakeEmbedder{}, Store: st})
	require.NoError(t, err)

	l := loader.NewStaticLoader([]loader.Document{
		{SourceURL: "https://gu.spb.ru/empty", Text: "   "},
	})
	total, err := ix.Index(context.Background(), l)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, st.Len())
}

func TestIndexStopsOnEmbeddingFailure(t *testing.T) {
	st := store.NewMemoryStore()
	ix, err := New(Options{ChunkSize: 800, ChunkOverlap: 200, Embedder: &fakeEmbedder{err: errors.New("quota exceeded")}, Store: st})
	require.NoError(t, err)

	l := loader.NewStaticLoader([]loader.Document{
		{SourceURL: "https://gu.spb.ru/mfc", Text: "запись в МФЦ"},
	})
	_, err = ix.Index(context.Background(), l)
	assert.Error(t, err)
	assert.Zero(t, st.Len())
}

func TestNewValidatesChunking(t *testing.T) {
	_, err := New(Options{ChunkSize: 100, ChunkOverlap: 100, Embedder: &fakeEmbedder{}, Store: store.NewMemoryStore()})
	assert.Error(t, err)
}
