// Package api exposes the engine's contract over HTTP: the scenario and
// response surface the review UI consumes, the rule base editor, and the
// research tools.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/evidence"
	"github.com/summitlab/crux/internal/research"
	"github.com/summitlab/crux/internal/review"
	"github.com/summitlab/crux/internal/rules"
	"github.com/summitlab/crux/internal/scenariogen"
	"github.com/summitlab/crux/internal/store"
)

// Engine is the response/queue surface the handlers call.
type Engine interface {
	SaveResponse(ctx context.Context, in review.ResponseInput) (*review.Response, error)
	MyResponse(ctx context.Context, scenarioID, expertID uuid.UUID) (*review.Response, error)
	PeerReviewQueue(ctx context.Context, expertID uuid.UUID) ([]review.Scenario, error)
	ReviewProgress(ctx context.Context) (map[uuid.UUID]int, error)
}

// ScenarioStore is the scenario surface the handlers call.
type ScenarioStore interface {
	ListScenarios(ctx context.Context, status *review.Status, limit int) ([]review.Scenario, error)
	GetScenariosByIDs(ctx context.Context, ids []uuid.UUID) ([]review.Scenario, error)
	CreateScenario(ctx context.Context, in store.ScenarioInput) (*review.Scenario, error)
	UpdateScenarioStatus(ctx context.Context, id uuid.UUID, status review.Status) error
	Revisions(ctx context.Context, scenarioID, expertID uuid.UUID) ([]review.Response, error)
}

// RuleStore is the rule base and evidence surface.
type RuleStore interface {
	ListRules(ctx context.Context, isActive *bool) ([]rules.Rule, error)
	CreateRule(ctx context.Context, in rules.Input, changedBy, reason string, citationKeys []string) (*rules.Rule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, patch rules.Patch, changedBy, reason string) (*rules.Rule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool, changedBy, reason string) (*rules.Rule, error)
	AuditLog(ctx context.Context, ruleID uuid.UUID) ([]rules.AuditEntry, error)
	GetReferences(ctx context.Context, citationKeys []string) ([]evidence.Reference, error)
	ReferencesForRule(ctx context.Context, ruleID uuid.UUID) ([]evidence.Reference, error)
}

// Researcher runs literature searches and promotions.
type Researcher interface {
	Search(ctx context.Context, topic string) (*research.Result, error)
	Promote(ctx context.Context, pr research.ProposedRule, finding research.Finding, addedBy string) (*rules.Rule, error)
}

// Generator batches AI scenarios.
type Generator interface {
	Generate(ctx context.Context, count int) (*scenariogen.Result, error)
}

// Deps collects the server's collaborators.
type Deps struct {
	Engine     Engine
	Scenarios  ScenarioStore
	Rules      RuleStore
	Researcher Researcher
	Generator  Generator
	Logger     *slog.Logger
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Get("/scenarios", s.listScenarios)
		r.Post("/scenarios", s.createScenario)
		r.Post("/scenarios/by-ids", s.scenariosByIDs)
		r.Post("/scenarios/generate", s.generateScenarios)
		r.Patch("/scenarios/{id}/status", s.updateScenarioStatus)
		r.Get("/scenarios/{id}/response", s.myResponse)
		r.Put("/scenarios/{id}/response", s.saveResponse)
		r.Get("/scenarios/{id}/response/history", s.responseHistory)

		r.Get("/peer-review", s.peerReviewQueue)
		r.Get("/progress", s.reviewProgress)

		r.Get("/rules", s.listRules)
		r.Post("/rules", s.createRule)
		r.Patch("/rules/{id}", s.updateRule)
		r.Post("/rules/{id}/active", s.setRuleActive)
		r.Get("/rules/{id}/audit", s.auditLog)
		r.Get("/rules/{id}/references", s.referencesForRule)
		r.Get("/references", s.references)

		r.Post("/research/search", s.researchSearch)
		r.Post("/research/promote", s.promoteRule)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// BearerAuthMiddleware guards the API with a static bearer token. An empty
// configured token disables the check for local development.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeError(w, http.StatusUnauthorized, errors.New("missing or invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeMappedError translates the domain error taxonomy onto HTTP statuses.
func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrValidation), errors.Is(err, rules.ErrInvalid):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, review.ErrInvalidTransition), errors.Is(err, store.ErrCompletionRevoked):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

func expertIDParam(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("expert_id")
	if raw == "" {
		return uuid.Nil, errors.New("expert_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid expert_id: %w", err)
	}
	return id, nil
}
