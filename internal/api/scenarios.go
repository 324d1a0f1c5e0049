package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/review"
	"github.com/summitlab/crux/internal/store"
)

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	var status *review.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := review.Status(raw)
		if !review.ValidStatus(st) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", raw))
			return
		}
		status = &st
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	scenarios, err := s.deps.Scenarios.ListScenarios(r.Context(), status, limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

// createScenarioRequest mirrors the scenario wire shape so the UI can
// round-trip what the read endpoints emit.
type createScenarioRequest struct {
	Description      string                    `json:"description"`
	Baseline         review.BaselineSnapshot   `json:"baseline_snapshot"`
	PreSession       review.PreSessionSnapshot `json:"pre_session_snapshot"`
	Difficulty       review.Difficulty         `json:"difficulty_level"`
	EdgeCaseTags     []string                  `json:"edge_case_tags"`
	AIRecommendation string                    `json:"ai_recommendation"`
	AIReasoning      string                    `json:"ai_reasoning"`
}

func (s *Server) createScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, errors.New("description is required"))
		return
	}

	scenario, err := s.deps.Scenarios.CreateScenario(r.Context(), store.ScenarioInput{
		Description:      req.Description,
		Baseline:         req.Baseline,
		PreSession:       req.PreSession,
		Difficulty:       req.Difficulty,
		EdgeCaseTags:     req.EdgeCaseTags,
		AIRecommendation: req.AIRecommendation,
		AIReasoning:      req.AIReasoning,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scenario)
}

func (s *Server) scenariosByIDs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	scenarios, err := s.deps.Scenarios.GetScenariosByIDs(r.Context(), req.IDs)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

func (s *Server) generateScenarios(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	result, err := s.deps.Generator.Generate(r.Context(), req.Count)
	if err != nil {
		if errors.Is(err, review.ErrValidation) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		// Upstream generation failures are the AI service's fault, not ours.
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) updateScenarioStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Status review.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.deps.Scenarios.UpdateScenarioStatus(r.Context(), id, req.Status); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}
