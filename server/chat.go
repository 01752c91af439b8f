package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yazdeszhivu/cityagent/agent"
)

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
	GraphID string `json:"graph_id,omitempty"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	Reply     string           `json:"reply"`
	Citations []agent.Citation `json:"citations"`
	Route     string           `json:"route"`
}

var knownGraphIDs = map[string]bool{
	"":           true,
	"supervisor": true,
	"rag":        true,
	"hybrid":     true,
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.ChatID) == "" {
		writeError(w, http.StatusBadRequest, "missing_chat_id", "chat_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}
	if !knownGraphIDs[req.GraphID] {
		writeError(w, http.StatusBadRequest, "unknown_graph_id", "graph_id must be supervisor, rag or hybrid")
		return
	}

	result, err := s.orchestrator.Respond(r.Context(), req.ChatID, req.Message, req.GraphID)
	if err != nil {
		s.logger.Error("chat turn failed for %s: %v", req.ChatID, err)
		writeError(w, http.StatusInternalServerError, "turn_failed", "failed to process the message")
		return
	}

	citations := result.Citations
	if citations == nil {
		citations = []agent.Citation{}
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:     result.FinalAnswer,
		Citations: citations,
		Route:     string(result.RouteTaken),
	})
}
