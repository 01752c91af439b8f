package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
)

// Known categories and their routes.
var categoryRoutes = map[string]Route{
	"mfc":          RouteHybrid,
	"district":     RouteHybrid,
	"events":       RouteHybrid,
	"sport":        RouteHybrid,
	"rag":          RouteRAG,
	"conversation": RouteDirect,
}

// categoryTools maps a classified category to the tools the hybrid path
// should try first.
var categoryTools = map[string][]string{
	"mfc":      {"find_facility"},
	"district": {"district_info"},
	"events":   {"city_events"},
	"sport":    {"sport_events"},
}

// keywordCategories is the deterministic fallback when the classification
// LLM fails or returns something unusable. First match wins.
var keywordCategories = []struct {
	category string
	keywords []string
}{
	{"mfc", []string{"мфц", "многофункциональн"}},
	{"events", []string{"афиша", "мероприят", "концерт", "куда сходить", "выставк"}},
	{"sport", []string{"спорт", "трениров", "секци", "забег"}},
	{"district", []string{"какой район", "информация о районе", "о районе"}},
	{"conversation", []string{"привет", "здравствуй", "спасибо", "как дела", "кто ты", "что ты умеешь"}},
	{"rag", []string{"документ", "как оформить", "как получить", "порядок", "льгот", "паспорт", "пособи"}},
}

// Classifier decides the answer path for a turn: one LLM call constrained
// to the category set, with a keyword fallback.
type Classifier struct {
	model     llms.Model
	threshold float64
	logger    log.Logger
}

// NewClassifier creates a classifier. Confidence below threshold routes to
// the hybrid path regardless of category.
func NewClassifier(model llms.Model, threshold float64, logger log.Logger) *Classifier {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Classifier{model: model, threshold: threshold, logger: logger}
}

type classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classify never fails the turn: an unusable classification is a
// RoutingAmbiguityError internally and defaults to the hybrid route.
func (c *Classifier) Classify(ctx context.Context, query, history string) RouteDecision {
	if history == "" {
		history = "(пусто)"
	}
	prompt := fmt.Sprintf(classifyPrompt, history, query)

	raw, err := llm.Generate(ctx, c.model, prompt)
	if err != nil {
		c.logger.Warn("intent classification failed, using keyword fallback: %v", err)
		return c.fallback(query, "llm error")
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		c.logger.Warn("unusable classification: %v", &RoutingAmbiguityError{Raw: raw})
		return c.fallback(query, "unparseable classification")
	}

	route, ok := categoryRoutes[parsed.Category]
	if !ok {
		c.logger.Warn("unknown category: %v", &RoutingAmbiguityError{Raw: parsed.Category})
		return c.fallback(query, "unknown category "+parsed.Category)
	}

	if parsed.Confidence < c.threshold {
		c.logger.Info("classification confidence %.2f below threshold %.2f, defaulting to hybrid",
			parsed.Confidence, c.threshold)
		return RouteDecision{
			Route:      RouteHybrid,
			Category:   parsed.Category,
			Confidence: parsed.Confidence,
			Reason:     "low confidence",
		}
	}

	c.logger.Debug("classified %q as %s (%.2f)", query, parsed.Category, parsed.Confidence)
	return RouteDecision{
		Route:      route,
		Category:   parsed.Category,
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}
}

// fallback matches keyword lists; with no match the hybrid route covers both
// tools and documents.
func (c *Classifier) fallback(query, reason string) RouteDecision {
	lower := strings.ToLower(query)
	for _, kc := range keywordCategories {
		for _, kw := range kc.keywords {
			if strings.Contains(lower, kw) {
				return RouteDecision{
					Route:      categoryRoutes[kc.category],
					Category:   kc.category,
					Confidence: 0.5,
					Reason:     reason + ", keyword match " + kw,
				}
			}
		}
	}
	return RouteDecision{
		Route:      RouteHybrid,
		Category:   "",
		Confidence: 0,
		Reason:     reason + ", no keyword match",
	}
}

func parseClassification(raw string) (classification, error) {
	var parsed classification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return classification{}, err
	}
	if parsed.Category == "" {
		return classification{}, fmt.Errorf("empty category")
	}
	parsed.Category = strings.ToLower(strings.TrimSpace(parsed.Category))
	return parsed, nil
}

// extractJSON strips markdown code fences models wrap JSON in.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}
	return raw
}
