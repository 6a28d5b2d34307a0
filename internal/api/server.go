// Package api exposes the HTTP interface for the crawler agent.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// Server wires HTTP handlers to the frontier and metrics.
type Server struct {
	router   chi.Router
	frontier rfp.Frontier
	tools    interface{ Names() []string }
	logger   *zap.Logger
}

// NewServer constructs a Server with routes.
func NewServer(frontier rfp.Frontier, tools interface{ Names() []string }, logger *zap.Logger) *Server {
	s := &Server{
		frontier: frontier,
		tools:    tools,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/frontier/size", s.frontierSize)
		r.Get("/tools", s.toolNames)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) frontierSize(w http.ResponseWriter, r *http.Request) {
	size, err := s.frontier.Size(r.Context())
	if err != nil {
		s.logger.Error("frontier size failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "frontier unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"size": size})
}

func (s *Server) toolNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.Names()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
