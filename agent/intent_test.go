package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRoutesKnownCategories(t *testing.T) {
	cases := []struct {
		category string
		route    Route
	}{
		{"mfc", RouteHybrid},
		{"district", RouteHybrid},
		{"events", RouteHybrid},
		{"sport", RouteHybrid},
		{"rag", RouteRAG},
		{"conversation", RouteDirect},
	}

	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			model := &promptModel{respond: func(prompt string) (string, error) {
				return `{"category": "` + tc.category + `", "confidence": 0.9}`, nil
			}}
			c := NewClassifier(model, 0.6, nil)

			decision := c.Classify(context.Background(), "вопрос", "")
			assert.Equal(t, tc.route, decision.Route)
			assert.Equal(t, tc.category, decision.Category)
		})
	}
}

func TestClassifyLowConfidenceDefaultsToHybrid(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		return `{"category": "rag", "confidence": 0.3}`, nil
	}}
	c := NewClassifier(model, 0.6, nil)

	decision := c.Classify(context.Background(), "непонятный вопрос", "")
	assert.Equal(t, RouteHybrid, decision.Route)
	assert.Equal(t, "rag", decision.Category)
}

func TestClassifyIsDeterministicAboveThreshold(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		return `{"category": "mfc", "confidence": 0.85}`, nil
	}}
	c := NewClassifier(model, 0.6, nil)

	first := c.Classify(context.Background(), "Найди ближайший МФЦ", "")
	for i := 0; i < 5; i++ {
		again := c.Classify(context.Background(), "Найди ближайший МФЦ", "")
		assert.Equal(t, first.Route, again.Route)
		assert.Equal(t, first.Category, again.Category)
	}
}

func TestClassifyKeywordFallbackOnModelFailure(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		return "", errors.New("model down")
	}}
	c := NewClassifier(model, 0.6, nil)

	cases := []struct {
		query    string
		category string
		route    Route
	}{
		{"Где ближайший МФЦ?", "mfc", RouteHybrid},
		{"Что в афише на выходные?", "events", RouteHybrid},
		{"Какие документы нужны для пособия?", "rag", RouteRAG},
		{"Привет, как дела?", "conversation", RouteDirect},
	}
	for _, tc := range cases {
		decision := c.Classify(context.Background(), tc.query, "")
		assert.Equal(t, tc.category, decision.Category, tc.query)
		assert.Equal(t, tc.route, decision.Route, tc.query)
	}
}

func TestClassifyUnusableOutputDefaultsToHybrid(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		return "это не JSON вообще", nil
	}}
	c := NewClassifier(model, 0.6, nil)

	decision := c.Classify(context.Background(), "странный запрос без ключевых слов", "")
	assert.Equal(t, RouteHybrid, decision.Route)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	model := &promptModel{respond: func(prompt string) (string, error) {
		return "```json\n{\"category\": \"rag\", \"confidence\": 0.9}\n```", nil
	}}
	c := NewClassifier(model, 0.6, nil)

	decision := c.Classify(context.Background(), "вопрос", "")
	require.Equal(t, RouteRAG, decision.Route)
}

func TestIsToxic(t *testing.T) {
	toxic := []string{
		"Тупой бот, ты ничего не умеешь",
		"да пошёл ты",
		"СДОХНИ",
	}
	for _, text := range toxic {
		assert.True(t, IsToxic(text), text)
	}

	clean := []string{
		"Где мне поменять паспорт в Петроградском районе?",
		"Привет! Что ты умеешь?",
		"",
		"Когда отключат воду на Думской?",
	}
	for _, text := range clean {
		assert.False(t, IsToxic(text), text)
	}
}
