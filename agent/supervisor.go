package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/yazdeszhivu/cityagent/graph"
	"github.com/yazdeszhivu/cityagent/llm"
	"github.com/yazdeszhivu/cityagent/log"
	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/session"
)

// RAGAnswerer is the slice of the RAG pipeline the supervisor needs.
type RAGAnswerer interface {
	Answer(ctx context.Context, query, history string) (rag.Answer, error)
}

// Supervisor routes each turn through toxicity screening and intent
// classification to the best-fit answer path, and owns session reads and
// appends. One classification per turn, no cycles.
type Supervisor struct {
	model         llms.Model
	classifier    *Classifier
	rag           RAGAnswerer
	hybrid        *Hybrid
	sessions      session.Store
	historyWindow int
	runnable      *graph.Runnable[State]
	logger        log.Logger
}

// SupervisorConfig configures the supervisor graph.
type SupervisorConfig struct {
	Model         llms.Model
	Classifier    *Classifier
	RAG           RAGAnswerer
	Hybrid        *Hybrid
	Sessions      session.Store
	HistoryWindow int // messages of context per turn, default 6
	Logger        log.Logger
}

// NewSupervisor builds and compiles the supervisor graph.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.RAG == nil {
		return nil, fmt.Errorf("rag pipeline is required")
	}
	if cfg.Hybrid == nil {
		return nil, fmt.Errorf("hybrid graph is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow < 1 {
		historyWindow = 6
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}

	s := &Supervisor{
		model:         cfg.Model,
		classifier:    cfg.Classifier,
		rag:           cfg.RAG,
		hybrid:        cfg.Hybrid,
		sessions:      cfg.Sessions,
		historyWindow: historyWindow,
		logger:        logger,
	}

	g := graph.NewStateGraph[State]()
	g.SetSchema(graph.NewStructSchema(State{}, mergeStates))
	g.AddNode("screen", "toxicity screen before any model call", s.screenNode)
	g.AddNode("classify", "intent classification", s.classifyNode)
	g.AddNode("answer_rag", "retrieval-augmented answer", s.answerRAGNode)
	g.AddNode("answer_hybrid", "tools plus documents answer", s.answerHybridNode)
	g.AddNode("answer_direct", "direct conversational answer", s.answerDirectNode)
	g.AddNode("finalize", "enforce the output contract", s.finalizeNode)

	g.SetEntryPoint("screen")
	g.AddConditionalEdge("screen", []string{"classify", "finalize"}, s.afterScreen)
	g.AddConditionalEdge("classify", []string{"answer_rag", "answer_hybrid", "answer_direct"}, s.afterClassify)
	g.AddEdge("answer_rag", "finalize")
	g.AddEdge("answer_hybrid", "finalize")
	g.AddEdge("answer_direct", "finalize")
	g.AddEdge("finalize", graph.END)

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	s.runnable = runnable
	return s, nil
}

// Respond handles one turn: read session context, run the requested graph
// and append both messages. graphID selects "supervisor" (default), "rag" or
// "hybrid". A total failure returns the fixed apology, never an error to the
// end user.
func (s *Supervisor) Respond(ctx context.Context, sessionID, userText, graphID string) (Result, error) {
	conversation, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	state := State{
		Turn: Turn{
			SessionID: sessionID,
			UserText:  userText,
			Timestamp: time.Now().UTC(),
		},
		History: formatHistory(conversation.Window(s.historyWindow)),
	}

	result := s.run(ctx, state, graphID)

	if err := s.sessions.Append(ctx, sessionID,
		session.NewMessage(session.RoleUser, userText),
		session.NewMessage(session.RoleAssistant, result.FinalAnswer),
	); err != nil {
		return Result{}, fmt.Errorf("append session %s: %w", sessionID, err)
	}
	return result, nil
}

func (s *Supervisor) run(ctx context.Context, state State, graphID string) Result {
	switch graphID {
	case "rag":
		return s.runRAG(ctx, state)
	case "hybrid":
		state.Route = RouteHybrid
		final, err := s.hybrid.Answer(ctx, state)
		if err != nil {
			s.logger.Error("hybrid graph failed: %v", err)
			return apology(RouteHybrid)
		}
		return toResult(final, RouteHybrid)
	default:
		final, err := s.runnable.Invoke(ctx, state)
		if err != nil {
			s.logger.Error("supervisor graph failed: %v", err)
			route := final.Route
			if route == "" {
				route = RouteDirect
			}
			return apology(route)
		}
		return toResult(final, final.Route)
	}
}

func (s *Supervisor) runRAG(ctx context.Context, state State) Result {
	answer, err := s.rag.Answer(ctx, state.Turn.UserText, state.History)
	if err != nil {
		s.logger.Error("rag graph failed: %v", err)
		return apology(RouteRAG)
	}
	return Result{
		FinalAnswer: answer.Text,
		Citations:   documentCitations(answer.Citations),
		RouteTaken:  RouteRAG,
		Ungrounded:  answer.NoContext,
	}
}

// screenNode short-circuits flagged turns with the fixed refusal. No
// downstream model or tool call runs for them.
func (s *Supervisor) screenNode(ctx context.Context, st State) (State, error) {
	if IsToxic(st.Turn.UserText) {
		s.logger.Warn("toxicity screen flagged session %s", st.Turn.SessionID)
		return State{
			FinalAnswer: RefusalAnswer,
			Ungrounded:  true,
			Route:       RouteDirect,
			Metadata:    map[string]string{"screen": "refused"},
		}, nil
	}
	return State{}, nil
}

func (s *Supervisor) afterScreen(ctx context.Context, st State) string {
	if st.FinalAnswer != "" {
		return "finalize"
	}
	return "classify"
}

func (s *Supervisor) classifyNode(ctx context.Context, st State) (State, error) {
	decision := s.classifier.Classify(ctx, st.Turn.UserText, st.History)
	s.logger.Info("routed session %s to %s (category %q, confidence %.2f)",
		st.Turn.SessionID, decision.Route, decision.Category, decision.Confidence)
	return State{Decision: decision, Route: decision.Route}, nil
}

func (s *Supervisor) afterClassify(ctx context.Context, st State) string {
	switch st.Route {
	case RouteRAG:
		return "answer_rag"
	case RouteDirect:
		return "answer_direct"
	default:
		return "answer_hybrid"
	}
}

func (s *Supervisor) answerRAGNode(ctx context.Context, st State) (State, error) {
	answer, err := s.rag.Answer(ctx, st.Turn.UserText, st.History)
	if err != nil {
		return State{}, err
	}
	return State{
		FinalAnswer: answer.Text,
		Citations:   documentCitations(answer.Citations),
		Ungrounded:  answer.NoContext,
	}, nil
}

func (s *Supervisor) answerHybridNode(ctx context.Context, st State) (State, error) {
	final, err := s.hybrid.Answer(ctx, st)
	if err != nil {
		return State{}, err
	}
	return State{
		ToolCalls:     final.ToolCalls,
		RetrievedDocs: final.RetrievedDocs,
		FinalAnswer:   final.FinalAnswer,
		Citations:     final.Citations,
		Ungrounded:    final.Ungrounded,
	}, nil
}

func (s *Supervisor) answerDirectNode(ctx context.Context, st State) (State, error) {
	history := st.History
	if history == "" {
		history = "(пусто)"
	}
	answer, err := llm.Generate(ctx, s.model, fmt.Sprintf(directPrompt, history, st.Turn.UserText))
	if err != nil {
		return State{}, err
	}
	// Direct answers cite nothing and are flagged as general information.
	return State{FinalAnswer: answer, Ungrounded: true}, nil
}

// finalizeNode enforces the output contract: the answer is never empty, and
// an answer without citations is explicitly ungrounded.
func (s *Supervisor) finalizeNode(ctx context.Context, st State) (State, error) {
	update := State{}
	if strings.TrimSpace(st.FinalAnswer) == "" {
		update.FinalAnswer = ApologyAnswer
		update.Ungrounded = true
	}
	if len(st.Citations) == 0 {
		update.Ungrounded = true
	}
	return update, nil
}

func formatHistory(messages []session.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func documentCitations(sources []string) []Citation {
	citations := make([]Citation, 0, len(sources))
	for _, src := range sources {
		citations = append(citations, Citation{Source: src, Kind: CitationDocument})
	}
	return citations
}

func toResult(st State, route Route) Result {
	result := Result{
		FinalAnswer: st.FinalAnswer,
		Citations:   st.Citations,
		RouteTaken:  route,
		Ungrounded:  st.Ungrounded,
	}
	if strings.TrimSpace(result.FinalAnswer) == "" {
		result.FinalAnswer = ApologyAnswer
		result.Ungrounded = true
	}
	if result.Citations == nil {
		result.Citations = []Citation{}
	}
	return result
}

func apology(route Route) Result {
	return Result{
		FinalAnswer: ApologyAnswer,
		Citations:   []Citation{},
		RouteTaken:  route,
		Ungrounded:  true,
	}
}
