// Package agent orchestrates a turn: intent classification, routing to the
// RAG, hybrid or direct answer path, and assembly of the final cited answer.
package agent

import (
	"time"

	"github.com/yazdeszhivu/cityagent/rag"
	"github.com/yazdeszhivu/cityagent/tool"
)

// Route names the answer path chosen for a turn.
type Route string

const (
	RouteRAG    Route = "RAG"
	RouteHybrid Route = "HYBRID"
	RouteDirect Route = "DIRECT"
)

// Citation kinds.
const (
	CitationDocument = "document"
	CitationTool     = "tool"
)

// Turn is one inbound user message. Immutable.
type Turn struct {
	SessionID string
	UserText  string
	Timestamp time.Time
}

// Citation backs a claim in the final answer: a document source URL or a
// tool name.
type Citation struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
}

// RouteDecision is the classification outcome.
type RouteDecision struct {
	Route      Route
	Category   string
	Confidence float64
	Reason     string
}

// Result is the output contract of a turn. FinalAnswer is never empty; a
// turn with no citations is flagged ungrounded.
type Result struct {
	FinalAnswer string
	Citations   []Citation
	RouteTaken  Route
	Ungrounded  bool
}

// State is the per-turn working memory passed between graph nodes. Owned by
// a single run; nodes return updated copies.
type State struct {
	Turn    Turn
	History string

	Decision RouteDecision
	Route    Route

	ToolPlan      []ToolInvocation
	ToolCalls     []tool.Call
	RetrievedDocs []rag.DocumentChunk

	FinalAnswer string
	Citations   []Citation
	Ungrounded  bool

	Metadata map[string]string
}

// ToolInvocation is one planned tool call.
type ToolInvocation struct {
	Tool      string            `json:"tool"`
	Arguments map[string]string `json:"arguments"`
}

// mergeStates folds a node's partial update into the accumulated state.
// Nodes return only the fields they own; list fields from parallel branches
// are appended, scalars keep the last non-zero value.
func mergeStates(current, update State) (State, error) {
	out := current

	if update.Turn.UserText != "" {
		out.Turn = update.Turn
	}
	if update.History != "" {
		out.History = update.History
	}
	if update.Route != "" {
		out.Route = update.Route
	}
	if update.Decision.Category != "" {
		out.Decision = update.Decision
	}
	if len(update.ToolPlan) > 0 {
		out.ToolPlan = update.ToolPlan
	}
	if len(update.ToolCalls) > 0 {
		out.ToolCalls = append(out.ToolCalls, update.ToolCalls...)
	}
	if len(update.RetrievedDocs) > 0 {
		out.RetrievedDocs = append(out.RetrievedDocs, update.RetrievedDocs...)
	}
	if update.FinalAnswer != "" {
		out.FinalAnswer = update.FinalAnswer
	}
	if len(update.Citations) > 0 {
		out.Citations = update.Citations
	}
	out.Ungrounded = out.Ungrounded || update.Ungrounded
	if len(update.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]string, len(update.Metadata))
		}
		for k, v := range update.Metadata {
			out.Metadata[k] = v
		}
	}
	return out, nil
}
