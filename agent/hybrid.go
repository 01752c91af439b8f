package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/yazdeszhivu/cityagent/graph"
	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/tool"
)

// DocumentRetriever is the slice of the RAG pipeline the hybrid path needs:
// retrieval with grading, without generation.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.DocumentChunk, error)
}

// Hybrid answers a turn from city-data tools and background documents
// fetched in parallel. Tool data takes precedence in the merged context.
type Hybrid struct {
	model    llms.Model
	catalog  *tool.Catalog
	docs     DocumentRetriever
	runnable *graph.Runnable[State]
	logger   log.Logger
}

// HybridConfig configures the hybrid graph.
type HybridConfig struct {
	Model     llms.Model
	Catalog   *tool.Catalog
	Retriever DocumentRetriever
	Logger    log.Logger
}

// NewHybrid builds and compiles the hybrid graph:
// select_tools → (invoke_tools ∥ retrieve_docs) → generate.
func NewHybrid(cfg HybridConfig) (*Hybrid, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("document retriever is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}

	h := &Hybrid{model: cfg.Model, catalog: cfg.Catalog, docs: cfg.Retriever, logger: logger}

	g := graph.NewStateGraph[State]()
	g.SetSchema(graph.NewStructSchema(State{}, mergeStates))
	g.AddNode("select_tools", "plan tool calls for the query", h.selectToolsNode)
	g.AddNode("invoke_tools", "invoke planned tools concurrently", h.invokeToolsNode)
	g.AddNode("retrieve_docs", "fetch background documents", h.retrieveDocsNode)
	g.AddNode("generate", "answer from merged context", h.generateNode)

	g.SetEntryPoint("select_tools")
	g.AddEdge("select_tools", "invoke_tools")
	g.AddEdge("select_tools", "retrieve_docs")
	g.AddEdge("invoke_tools", "generate")
	g.AddEdge("retrieve_docs", "generate")
	g.AddEdge("generate", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	h.runnable = runnable
	return h, nil
}

// Answer runs the hybrid graph for one turn.
func (h *Hybrid) Answer(ctx context.Context, s State) (State, error) {
	return h.runnable.Invoke(ctx, s)
}

// selectToolsNode plans the tool calls. A category hint from the supervisor
// narrows the candidates; otherwise the LLM picks from the whole catalog.
// Planning failure degrades to hinted tools with the raw query as argument.
func (h *Hybrid) selectToolsNode(ctx context.Context, s State) (State, error) {
	prompt := fmt.Sprintf(selectToolsPrompt, h.describeCandidates(s.Decision.Category), s.Turn.UserText)

	raw, err := llm.Generate(ctx, h.model, prompt)
	if err != nil {
		h.logger.Warn("tool planning failed, using hinted tools: %v", err)
		return State{ToolPlan: h.hintedPlan(s)}, nil
	}

	var plan []ToolInvocation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &plan); err != nil {
		h.logger.Warn("unusable tool plan %q, using hinted tools", raw)
		return State{ToolPlan: h.hintedPlan(s)}, nil
	}

	// Unknown tool names in the plan are dropped, not invoked blindly.
	valid := plan[:0]
	for _, p := range plan {
		if _, ok := h.catalog.Get(p.Tool); ok {
			valid = append(valid, p)
		} else {
			h.logger.Warn("planner selected unknown tool %q, dropping", p.Tool)
		}
	}
	return State{ToolPlan: valid}, nil
}

func (h *Hybrid) describeCandidates(category string) string {
	hints := categoryTools[category]
	if len(hints) == 0 {
		return h.catalog.Describe()
	}
	var b strings.Builder
	for _, name := range hints {
		if t, ok := h.catalog.Get(name); ok {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		}
	}
	if b.Len() == 0 {
		return h.catalog.Describe()
	}
	return b.String()
}

func (h *Hybrid) hintedPlan(s State) []ToolInvocation {
	var plan []ToolInvocation
	for _, name := range categoryTools[s.Decision.Category] {
		if _, ok := h.catalog.Get(name); !ok {
			continue
		}
		args := map[string]string{}
		if name == "find_facility" {
			args["address"] = s.Turn.UserText
		}
		if name == "district_info" {
			args["district"] = s.Turn.UserText
		}
		plan = append(plan, ToolInvocation{Tool: name, Arguments: args})
	}
	return plan
}

// invokeToolsNode issues the planned calls concurrently and joins them.
// Individual failures are recorded on the call, never fatal for the turn.
func (h *Hybrid) invokeToolsNode(ctx context.Context, s State) (State, error) {
	if len(s.ToolPlan) == 0 {
		return State{}, nil
	}

	calls := make([]tool.Call, len(s.ToolPlan))
	var wg sync.WaitGroup
	for i, p := range s.ToolPlan {
		wg.Add(1)
		go func(i int, p ToolInvocation) {
			defer wg.Done()
			calls[i] = h.catalog.Invoke(ctx, p.Tool, p.Arguments)
		}(i, p)
	}
	wg.Wait()

	return State{ToolCalls: calls}, nil
}

// retrieveDocsNode fetches graded background documents. Retrieval failure
// degrades to a tool-only answer.
func (h *Hybrid) retrieveDocsNode(ctx context.Context, s State) (State, error) {
	docs, err := h.docs.Retrieve(ctx, s.Turn.UserText)
	if err != nil {
		h.logger.Warn("document retrieval failed, continuing with tool data only: %v", err)
		return State{Metadata: map[string]string{"retrieval": "failed"}}, nil
	}
	return State{RetrievedDocs: docs}, nil
}

// generateNode merges tool results and documents, tool data first, and
// produces the cited answer. With nothing to cite it answers that the
// information was not found.
func (h *Hybrid) generateNode(ctx context.Context, s State) (State, error) {
	var toolContext, docContext strings.Builder
	var citations []Citation

	for _, call := range s.ToolCalls {
		if call.Err != nil || strings.TrimSpace(call.Result) == "" {
			continue
		}
		fmt.Fprintf(&toolContext, "[%s]\n%s\n", call.Tool, call.Result)
		citations = append(citations, Citation{Source: call.Tool, Kind: CitationTool})
	}

	seen := make(map[string]bool)
	for _, doc := range s.RetrievedDocs {
		fmt.Fprintf(&docContext, "[Источник: %s]\n%s\n", doc.SourceURL, doc.Text)
		if !seen[doc.SourceURL] {
			seen[doc.SourceURL] = true
			citations = append(citations, Citation{Source: doc.SourceURL, Kind: CitationDocument})
		}
	}

	if toolContext.Len() == 0 && docContext.Len() == 0 {
		return State{FinalAnswer: NoDataAnswer, Ungrounded: true}, nil
	}

	toolText := toolContext.String()
	if toolText == "" {
		toolText = "(нет)"
	}
	docText := docContext.String()
	if docText == "" {
		docText = "(нет)"
	}
	history := s.History
	if history == "" {
		history = "(пусто)"
	}

	prompt := fmt.Sprintf(hybridGeneratePrompt, toolText, docText, history, s.Turn.UserText)
	answer, err := llm.Generate(ctx, h.model, prompt)
	if err != nil {
		return State{}, err
	}

	return State{FinalAnswer: answer, Citations: citations}, nil
}
