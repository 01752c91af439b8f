package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// promptModel routes canned responses by prompt content, which keeps one fake
// usable across rewrite/grade/generate stages.
type promptModel struct {
	respond func(prompt string) (string, error)
	calls   atomic.Int32
}

func (m *promptModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls.Add(1)
	prompt := ""
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if tc, ok := messages[0].Parts[0].(llms.TextContent); ok {
			prompt = tc.Text
		}
	}
	out, err := m.respond(prompt)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (m *promptModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	out, err := m.respond(prompt)
	return out, err
}

type fakeRetriever struct {
	docs    []DocumentChunk
	err     error
	calls   atomic.Int32
	queries []string
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string) ([]DocumentChunk, error) {
	r.calls.Add(1)
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	return r.docs, nil
}

func chunk(id, url, text string) DocumentChunk {
	return DocumentChunk{ID: id, SourceURL: url, Text: text, Metadata: Metadata{Title: id}}
}

func answeringModel(answer string) *promptModel {
	return &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Переформулируй"):
			return "переформулированный запрос", nil
		case strings.Contains(prompt, "Оцени"):
			return "да", nil
		default:
			return answer, nil
		}
	}}
}

func TestPipeline_GroundedAnswer(t *testing.T) {
	retriever := &fakeRetriever{docs: []DocumentChunk{
		chunk("c1", "https://gu.spb.ru/passport", "Паспорт меняют в МФЦ."),
		chunk("c2", "https://gu.spb.ru/fees", "Госпошлина составляет 300 рублей."),
	}}
	p, err := New(Config{
		Model:              answeringModel("Паспорт можно поменять в МФЦ."),
		Retriever:          retriever,
		UseQueryRewriting:  true,
		UseDocumentGrading: true,
		MaxRetries:         1,
	})
	require.NoError(t, err)

	ans, err := p.Answer(context.Background(), "как поменять паспорт", "")
	require.NoError(t, err)
	assert.Equal(t, "Паспорт можно поменять в МФЦ.", ans.Text)
	assert.Equal(t, []string{"https://gu.spb.ru/passport", "https://gu.spb.ru/fees"}, ans.Citations)
	assert.False(t, ans.NoContext)
	// Retrieval ran against the rewritten query.
	assert.Equal(t, []string{"переформулированный запрос"}, retriever.queries)
}

func TestPipeline_GradingFiltersIrrelevantChunks(t *testing.T) {
	var capturedPrompt string
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Оцени"):
			if strings.Contains(prompt, "про паспорт") {
				return "да", nil
			}
			return "нет", nil
		case strings.Contains(prompt, "городской помощник"):
			capturedPrompt = prompt
			return "ответ", nil
		default:
			return "что-то", nil
		}
	}}

	retriever := &fakeRetriever{docs: []DocumentChunk{
		chunk("c1", "https://gu.spb.ru/a", "фрагмент про паспорт"),
		chunk("c2", "https://gu.spb.ru/b", "фрагмент про мусор"),
	}}
	p, err := New(Config{
		Model:              model,
		Retriever:          retriever,
		UseDocumentGrading: true,
	})
	require.NoError(t, err)

	ans, err := p.Answer(context.Background(), "вопрос", "")
	require.NoError(t, err)
	assert.Contains(t, capturedPrompt, "про паспорт")
	assert.NotContains(t, capturedPrompt, "про мусор")
	assert.Equal(t, []string{"https://gu.spb.ru/a"}, ans.Citations)
}

func TestPipeline_RetryBound(t *testing.T) {
	// Grader rejects everything: the rewrite loop must run exactly
	// MaxRetries times and still terminate in GENERATE.
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Переформулируй"):
			return "шире", nil
		case strings.Contains(prompt, "Оцени"):
			return "нет", nil
		default:
			return "ответ", nil
		}
	}}
	retriever := &fakeRetriever{docs: []DocumentChunk{chunk("c1", "u", "текст")}}

	p, err := New(Config{
		Model:              model,
		Retriever:          retriever,
		UseQueryRewriting:  true,
		UseDocumentGrading: true,
		MaxRetries:         1,
	})
	require.NoError(t, err)

	ans, err := p.Answer(context.Background(), "вопрос", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), retriever.calls.Load(), "initial pass plus exactly one retry")
	assert.True(t, ans.NoContext)
	assert.Equal(t, NoContextAnswer, ans.Text)
	assert.Empty(t, ans.Citations)
}

func TestPipeline_RewriteFailureFallsBackToOriginal(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Переформулируй") {
			return "", errors.New("rewrite model down")
		}
		return "ответ", nil
	}}
	retriever := &fakeRetriever{docs: []DocumentChunk{chunk("c1", "u", "текст")}}

	p, err := New(Config{
		Model:             model,
		Retriever:         retriever,
		UseQueryRewriting: true,
	})
	require.NoError(t, err)

	_, err = p.Answer(context.Background(), "исходный запрос", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"исходный запрос"}, retriever.queries)
}

func TestPipeline_NoDocumentsStatesLimitation(t *testing.T) {
	p, err := New(Config{
		Model:     answeringModel("не должен вызываться"),
		Retriever: &fakeRetriever{},
	})
	require.NoError(t, err)

	ans, err := p.Answer(context.Background(), "вопрос без ответа", "")
	require.NoError(t, err)
	assert.True(t, ans.NoContext)
	assert.Equal(t, NoContextAnswer, ans.Text)
	assert.Empty(t, ans.Citations)
}

func TestPipeline_RetrievalFailureDegrades(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("vector search down")}
	p, err := New(Config{
		Model:     answeringModel("ответ"),
		Retriever: retriever,
	})
	require.NoError(t, err)

	ans, err := p.Answer(context.Background(), "вопрос", "")
	require.NoError(t, err)
	assert.True(t, ans.NoContext)
	assert.Equal(t, int32(2), retriever.calls.Load(), "search retried once before degrading")
}

func TestPipeline_RetrieveForHybrid(t *testing.T) {
	t.Run("returns graded chunks", func(t *testing.T) {
		retriever := &fakeRetriever{docs: []DocumentChunk{chunk("c1", "u", "текст")}}
		p, err := New(Config{
			Model:              answeringModel(""),
			Retriever:          retriever,
			UseDocumentGrading: true,
		})
		require.NoError(t, err)

		docs, err := p.Retrieve(context.Background(), "вопрос")
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("persistent failure is a RetrievalError", func(t *testing.T) {
		retriever := &fakeRetriever{err: errors.New("down")}
		p, err := New(Config{Model: answeringModel(""), Retriever: retriever})
		require.NoError(t, err)

		_, err = p.Retrieve(context.Background(), "вопрос")
		assert.ErrorIs(t, err, ErrRetrieval)
		assert.Equal(t, int32(2), retriever.calls.Load())
	})
}
