// Package httpserver provides the HTTP REST API for the intent workflow
// service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/approval"
	"github.com/dvernon0786/Infin8Content-sub005/internal/database"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/gate"
	"github.com/dvernon0786/Infin8Content-sub005/internal/linking"
	"github.com/dvernon0786/Infin8Content-sub005/internal/queue"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"

	"github.com/google/uuid"
)

// ArticleQueuer runs the article fan-out for a workflow.
type ArticleQueuer interface {
	Queue(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) (*queue.Result, error)
}

// ArticleLinker runs the article fan-in for a workflow.
type ArticleLinker interface {
	Link(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) (*linking.Result, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	db         *database.DB
	logger     zerolog.Logger

	workflows repository.WorkflowRepository
	keywords  repository.KeywordUnitRepository

	competitorGate gate.Validator
	longtailGate   gate.Validator
	subtopicGate   gate.Validator

	seedApproval     approval.Processor
	subtopicApproval approval.Processor
	humanApproval    approval.Processor

	queuer ArticleQueuer
	linker ArticleLinker
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps bundles the collaborators the server routes requests to.
type Deps struct {
	DB        *database.DB
	Workflows repository.WorkflowRepository
	Keywords  repository.KeywordUnitRepository

	CompetitorGate gate.Validator
	LongtailGate   gate.Validator
	SubtopicGate   gate.Validator

	SeedApproval     approval.Processor
	SubtopicApproval approval.Processor
	HumanApproval    approval.Processor

	Queuer ArticleQueuer
	Linker ArticleLinker
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		db:               deps.DB,
		workflows:        deps.Workflows,
		keywords:         deps.Keywords,
		competitorGate:   deps.CompetitorGate,
		longtailGate:     deps.LongtailGate,
		subtopicGate:     deps.SubtopicGate,
		seedApproval:     deps.SeedApproval,
		subtopicApproval: deps.SubtopicApproval,
		humanApproval:    deps.HumanApproval,
		queuer:           deps.Queuer,
		linker:           deps.Linker,
		logger:           logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1/orgs/{orgID}/workflows", func(r chi.Router) {
		r.Use(actorContextMiddleware)

		r.Post("/", s.createWorkflow)
		r.Get("/", s.listWorkflows)

		r.Route("/{workflowID}", func(r chi.Router) {
			r.Get("/", s.getWorkflow)
			r.Post("/advance", s.advanceWorkflow)

			r.Get("/gates/competitor", s.gateHandler(s.competitorGate))
			r.Get("/gates/longtail-clustering", s.gateHandler(s.longtailGate))
			r.Get("/gates/subtopic-approval", s.gateHandler(s.subtopicGate))

			r.Post("/approvals/seed", s.seedApprovalHandler)
			r.Post("/approvals/subtopic", s.subtopicApprovalHandler)
			r.Post("/approvals/human", s.humanApprovalHandler)

			r.Post("/articles/queue", s.queueArticles)
			r.Post("/articles/link", s.linkArticles)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
