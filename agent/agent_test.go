package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/session"
	"github.com/yazdeszhivu/cityagent/tool"
)

// promptModel routes canned responses by prompt content, which keeps one
// fake usable across classify/plan/generate stages.
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

type fakeTool struct {
	name   string
	schema []tool.Arg
	result string
	err    error
	calls  atomic.Int32
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Schema() []tool.Arg  { return f.schema }

func (f *fakeTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeDocs struct {
	docs  []rag.DocumentChunk
	err   error
	calls atomic.Int32
}

func (f *fakeDocs) Retrieve(ctx context.Context, query string) ([]rag.DocumentChunk, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeRAG struct {
	answer rag.Answer
	err    error
}

func (f *fakeRAG) Answer(ctx context.Context, query, history string) (rag.Answer, error) {
	return f.answer, f.err
}

func newSupervisor(t *testing.T, model llms.Model, facility *fakeTool, docs *fakeDocs, ragAnswerer RAGAnswerer) *Supervisor {
	t.Helper()

	catalog, err := tool.NewCatalog(nil, facility)
	require.NoError(t, err)

	hybrid, err := NewHybrid(HybridConfig{Model: model, Catalog: catalog, Retriever: docs})
	require.NoError(t, err)

	if ragAnswerer == nil {
		ragAnswerer = &fakeRAG{answer: rag.Answer{Text: rag.NoContextAnswer, NoContext: true}}
	}

	sup, err := NewSupervisor(SupervisorConfig{
		Model:      model,
		Classifier: NewClassifier(model, 0.6, nil),
		RAG:        ragAnswerer,
		Hybrid:     hybrid,
		Sessions:   session.NewMemoryStore(),
	})
	require.NoError(t, err)
	return sup
}

// Scenario: a passport question naming a district routes to the hybrid path
// and cites the facility the tool found.
func TestSupervisorHybridAnswerCitesFacility(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "классификатор"):
			return `{"category": "mfc", "confidence": 0.9, "reason": "вопрос про МФЦ"}`, nil
		case strings.Contains(prompt, "планировщик"):
			return `[{"tool": "find_facility", "arguments": {"district": "Петроградский"}}]`, nil
		case strings.Contains(prompt, "Данные городских сервисов"):
			return "Паспорт можно поменять в МФЦ Петроградского района на Каменноостровском пр., 55.", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	facility := &fakeTool{
		name:   "find_facility",
		schema: []tool.Arg{{Name: "address"}, {Name: "district"}},
		result: "МФЦ Петроградского района, Каменноостровский пр., 55, часы работы 09:00-21:00",
	}

	sup := newSupervisor(t, model, facility, &fakeDocs{}, nil)

	result, err := sup.Respond(context.Background(), "chat-1", "Где мне поменять паспорт в Петроградском районе?", "")
	require.NoError(t, err)

	assert.Equal(t, RouteHybrid, result.RouteTaken)
	assert.Contains(t, result.FinalAnswer, "Каменноостровском")
	require.NotEmpty(t, result.Citations)
	assert.Equal(t, Citation{Source: "find_facility", Kind: CitationTool}, result.Citations[0])
	assert.False(t, result.Ungrounded)
	assert.Equal(t, int32(1), facility.calls.Load())
}

// Scenario: nothing indexed and no tool data ends in an explicit inability
// answer with empty citations.
func TestSupervisorNothingFound(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "классификатор"):
			return `{"category": "mfc", "confidence": 0.9}`, nil
		case strings.Contains(prompt, "планировщик"):
			return `[{"tool": "find_facility", "arguments": {"address": "неизвестно"}}]`, nil
		}
		return "", errors.New("unexpected prompt")
	}}
	facility := &fakeTool{
		name:   "find_facility",
		schema: []tool.Arg{{Name: "address"}, {Name: "district"}},
		err:    &tool.InvocationError{Tool: "find_facility", Err: errors.New("status 502")},
	}

	sup := newSupervisor(t, model, facility, &fakeDocs{}, nil)

	result, err := sup.Respond(context.Background(), "chat-2", "Несуществующая услуга", "")
	require.NoError(t, err)

	assert.Equal(t, RouteHybrid, result.RouteTaken)
	assert.Contains(t, result.FinalAnswer, "не смог найти")
	assert.Empty(t, result.Citations)
	assert.True(t, result.Ungrounded)
}

// Scenario: the embedding service times out, retrieval degrades, and the
// hybrid path still answers from tool data alone.
func TestSupervisorRetrievalFailureDegradesToToolOnly(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "классификатор"):
			return `{"category": "events", "confidence": 0.8}`, nil
		case strings.Contains(prompt, "планировщик"):
			return `[{"tool": "city_events", "arguments": {"start_date": "2026-09-01", "end_date": "2026-09-07"}}]`, nil
		case strings.Contains(prompt, "Данные городских сервисов"):
			return "В выходные в городе концерт в Мариинском театре.", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	events := &fakeTool{
		name:   "city_events",
		schema: []tool.Arg{{Name: "start_date", Required: true}, {Name: "end_date", Required: true}},
		result: "Концерт в Мариинском театре, 2026-09-03",
	}
	docs := &fakeDocs{err: &rag.RetrievalError{Err: context.DeadlineExceeded}}

	sup := newSupervisor(t, model, events, docs, nil)

	result, err := sup.Respond(context.Background(), "chat-3", "Что происходит в городе на выходных?", "")
	require.NoError(t, err)

	assert.Equal(t, RouteHybrid, result.RouteTaken)
	assert.Contains(t, result.FinalAnswer, "Мариинском")
	require.Len(t, result.Citations, 1)
	assert.Equal(t, CitationTool, result.Citations[0].Kind)
	assert.Equal(t, int32(1), docs.calls.Load())
}

func TestSupervisorRAGRoute(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "классификатор") {
			return `{"category": "rag", "confidence": 0.95}`, nil
		}
		return "", errors.New("unexpected prompt")
	}}
	ragAnswerer := &fakeRAG{answer: rag.Answer{
		Text:      "Для замены паспорта нужны заявление и старый паспорт.",
		Citations: []string{"https://gu.spb.ru/passport"},
	}}

	sup := newSupervisor(t, model, &fakeTool{name: "find_facility"}, &fakeDocs{}, ragAnswerer)

	result, err := sup.Respond(context.Background(), "chat-4", "Какие документы нужны для замены паспорта?", "")
	require.NoError(t, err)

	assert.Equal(t, RouteRAG, result.RouteTaken)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, Citation{Source: "https://gu.spb.ru/passport", Kind: CitationDocument}, result.Citations[0])
	assert.False(t, result.Ungrounded)
}

func TestSupervisorDirectRouteIsUngrounded(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "классификатор"):
			return `{"category": "conversation", "confidence": 0.99}`, nil
		case strings.Contains(prompt, "доброжелательно"):
			return "Здравствуйте! Чем могу помочь?", nil
		}
		return "", errors.New("unexpected prompt")
	}}

	sup := newSupervisor(t, model, &fakeTool{name: "find_facility"}, &fakeDocs{}, nil)

	result, err := sup.Respond(context.Background(), "chat-5", "Привет!", "")
	require.NoError(t, err)

	assert.Equal(t, RouteDirect, result.RouteTaken)
	assert.Equal(t, "Здравствуйте! Чем могу помочь?", result.FinalAnswer)
	assert.Empty(t, result.Citations)
	assert.True(t, result.Ungrounded)
}

func TestSupervisorToxicTurnRefusedWithoutModelCalls(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		return "", errors.New("must not be called")
	}}

	sup := newSupervisor(t, model, &fakeTool{name: "find_facility"}, &fakeDocs{}, nil)

	result, err := sup.Respond(context.Background(), "chat-6", "Тупой бот, ты ничего не умеешь", "")
	require.NoError(t, err)

	assert.Equal(t, RefusalAnswer, result.FinalAnswer)
	assert.Empty(t, result.Citations)
	assert.Zero(t, model.calls.Load())
}

func TestSupervisorTotalFailureYieldsApology(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "классификатор") {
			return `{"category": "conversation", "confidence": 0.99}`, nil
		}
		return "", errors.New("model down")
	}}

	sup := newSupervisor(t, model, &fakeTool{name: "find_facility"}, &fakeDocs{}, nil)

	result, err := sup.Respond(context.Background(), "chat-7", "Привет", "")
	require.NoError(t, err)

	assert.Equal(t, ApologyAnswer, result.FinalAnswer)
	assert.Empty(t, result.Citations)
	assert.True(t, result.Ungrounded)
}

func TestSupervisorAppendsBothMessages(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "классификатор"):
			return `{"category": "conversation", "confidence": 0.99}`, nil
		case strings.Contains(prompt, "доброжелательно"):
			return "Рад помочь!", nil
		}
		return "", errors.New("unexpected prompt")
	}}

	store := session.NewMemoryStore()
	catalog, err := tool.NewCatalog(nil, &fakeTool{name: "find_facility"})
	require.NoError(t, err)
	hybrid, err := NewHybrid(HybridConfig{Model: model, Catalog: catalog, Retriever: &fakeDocs{}})
	require.NoError(t, err)
	sup, err := NewSupervisor(SupervisorConfig{
		Model:      model,
		Classifier: NewClassifier(model, 0.6, nil),
		RAG:        &fakeRAG{},
		Hybrid:     hybrid,
		Sessions:   store,
	})
	require.NoError(t, err)

	_, err = sup.Respond(context.Background(), "chat-8", "Спасибо!", "")
	require.NoError(t, err)

	c, err := store.Get(context.Background(), "chat-8")
	require.NoError(t, err)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, session.RoleUser, c.Messages[0].Role)
	assert.Equal(t, "Спасибо!", c.Messages[0].Content)
	assert.Equal(t, session.RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, "Рад помочь!", c.Messages[1].Content)
}

func TestSupervisorForcedGraphIDs(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "планировщик"):
			return `[]`, nil
		case strings.Contains(prompt, "Данные городских сервисов"):
			return "ответ по документам", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	docs := &fakeDocs{docs: []rag.DocumentChunk{
		{ID: "c-1", SourceURL: "https://gu.spb.ru/mfc", Text: "Запись в МФЦ через портал."},
	}}
	ragAnswerer := &fakeRAG{answer: rag.Answer{Text: "ответ из БЗ", Citations: []string{"https://gu.spb.ru/mfc"}}}

	sup := newSupervisor(t, model, &fakeTool{name: "find_facility"}, docs, ragAnswerer)

	t.Run("rag", func(t *testing.T) {
		result, err := sup.Respond(context.Background(), "chat-9", "Как записаться в МФЦ?", "rag")
		require.NoError(t, err)
		assert.Equal(t, RouteRAG, result.RouteTaken)
		assert.Equal(t, "ответ из БЗ", result.FinalAnswer)
	})

	t.Run("hybrid", func(t *testing.T) {
		result, err := sup.Respond(context.Background(), "chat-10", "Как записаться в МФЦ?", "hybrid")
		require.NoError(t, err)
		assert.Equal(t, RouteHybrid, result.RouteTaken)
		require.Len(t, result.Citations, 1)
		assert.Equal(t, CitationDocument, result.Citations[0].Kind)
	})
}
