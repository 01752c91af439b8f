// Package server exposes the chat API over HTTP:
//
//	POST /chat    — answer one turn
//	GET  /healthz — liveness probe
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/yazdeszhivu/cityagent/agent"
	"github.com/yazdeszhivu/cityagent/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout covers the whole turn: classification, retrieval, tools
	// and generation.
	WriteTimeout = 120 * time.Second

	// IdleTimeout for keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Orchestrator answers one turn. Implemented by agent.Supervisor.
type Orchestrator interface {
	Respond(ctx context.Context, sessionID, userText, graphID string) (agent.Result, error)
}

// Server is the HTTP front of the assistant.
type Server struct {
	mux          *http.ServeMux
	orchestrator Orchestrator
	logger       log.Logger
}

// NewServer registers all routes.
func NewServer(orchestrator Orchestrator, logger log.Logger) *Server {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	s := &Server{
		mux:          http.NewServeMux(),
		orchestrator: orchestrator,
		logger:       logger,
	}
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s
}

// Handler returns the routed handler with middleware applied, recovery
// outermost.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, s.recoveryMiddleware, s.loggingMiddleware)
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
