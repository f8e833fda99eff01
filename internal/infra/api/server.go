package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/usecase"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes the operation polling API.
type Server struct {
	facade  usecase.OrchestratorFacade
	auth    *AuthManager
	checks  map[string]HealthCheck
	timeout time.Duration
	log     *zerolog.Logger
}

func NewServer(facade usecase.OrchestratorFacade, auth *AuthManager, checks map[string]HealthCheck, timeout time.Duration, logger *zerolog.Logger) *Server {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{facade: facade, auth: auth, checks: checks, timeout: timeout, log: &l}
}

// Handler returns the routed API wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Post("/sessions/{sessionID}/questions", s.handleStart(model.OperationTypeQuestionGeneration))
		r.Post("/sessions/{sessionID}/feedback", s.handleStart(model.OperationTypeFeedbackAnalysis))

		r.Route("/operations/{operationID}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Post("/retry", s.handleRetry)
			r.Get("/lineage", s.handleLineage)
		})
	})

	return Chain(r,
		Recover(s.log),
		TraceID(),
		RequestLog(s.log),
		Timeout(s.timeout),
	)
}
