package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/summitlab/crux/internal/rules"
)

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	var isActive *bool
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid is_active %q", raw))
			return
		}
		isActive = &b
	}

	list, err := s.deps.Rules.ListRules(r.Context(), isActive)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": list, "count": len(list)})
}

type createRuleRequest struct {
	Rule         rules.Input `json:"rule"`
	ChangedBy    string      `json:"changed_by"`
	Reason       string      `json:"reason"`
	CitationKeys []string    `json:"citation_keys,omitempty"`
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	rule, err := s.deps.Rules.CreateRule(r.Context(), req.Rule, req.ChangedBy, req.Reason, req.CitationKeys)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

type updateRuleRequest struct {
	Patch     rules.Patch `json:"patch"`
	ChangedBy string      `json:"changed_by"`
	Reason    string      `json:"reason"`
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	rule, err := s.deps.Rules.UpdateRule(r.Context(), id, req.Patch, req.ChangedBy, req.Reason)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type setActiveRequest struct {
	IsActive  bool   `json:"is_active"`
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
}

func (s *Server) setRuleActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	rule, err := s.deps.Rules.SetRuleActive(r.Context(), id, req.IsActive, req.ChangedBy, req.Reason)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) auditLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := s.deps.Rules.AuditLog(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) referencesForRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	refs, err := s.deps.Rules.ReferencesForRule(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"references": refs, "count": len(refs)})
}

func (s *Server) references(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("keys")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("keys is required"))
		return
	}
	keys := strings.Split(raw, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}

	refs, err := s.deps.Rules.GetReferences(r.Context(), keys)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"references": refs, "count": len(refs)})
}
