package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/contractreview/internal/config"
	"github.com/dgallion1/contractreview/internal/history"
	"github.com/dgallion1/contractreview/internal/llm"
	"github.com/dgallion1/contractreview/internal/pipeline"
)

// LLMInfo exposes the model backend for the stats endpoint.
type LLMInfo interface {
	Backend() llm.Backend
	Stats() *llm.Stats
}

// Server is the HTTP API server for contract reviews.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	history      *history.Manager
	llm          LLMInfo
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. hist and model may be nil.
func NewServer(orch *pipeline.Orchestrator, hist *history.Manager, model LLMInfo, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		history:      hist,
		llm:          model,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/reviews", s.handleSubmitReview)
		r.Post("/api/reviews/batch", s.handleBatchReview)
		r.Get("/api/reviews/{jobID}", s.handleReviewStatus)
		r.Get("/api/reviews/{jobID}/report", s.handleReviewReport)

		r.Get("/api/history", s.handleListHistory)
		r.Get("/api/history/stats", s.handleHistoryStats)
		r.Get("/api/history/{id}", s.handleGetHistory)
		r.Delete("/api/history/{id}", s.handleDeleteHistory)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"model_type":  s.cfg.ModelType,
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
