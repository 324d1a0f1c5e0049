package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/summitlab/crux/internal/research"
	"github.com/summitlab/crux/internal/rules"
	"github.com/summitlab/crux/internal/store"
)

func (s *Server) researchSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.deps.Researcher.Search(r.Context(), req.Topic)
	if err != nil {
		if errors.Is(err, rules.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type promoteRequest struct {
	Rule    research.ProposedRule `json:"rule"`
	Finding research.Finding      `json:"finding"`
	AddedBy string                `json:"added_by"`
}

func (s *Server) promoteRule(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	rule, err := s.deps.Researcher.Promote(r.Context(), req.Rule, req.Finding, req.AddedBy)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyAdded) {
			// Idempotent success so the research UI can retry freely.
			writeJSON(w, http.StatusOK, map[string]any{"status": "already_added"})
			return
		}
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "added", "rule": rule})
}
