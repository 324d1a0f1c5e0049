package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/summitlab/crux/internal/review"
)

func (s *Server) saveResponse(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var in review.ResponseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	// The path is authoritative for the scenario being answered.
	in.ScenarioID = scenarioID

	resp, err := s.deps.Engine.SaveResponse(r.Context(), in)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) myResponse(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	expertID, err := expertIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.deps.Engine.MyResponse(r.Context(), scenarioID, expertID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) responseHistory(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	expertID, err := expertIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	revisions, err := s.deps.Scenarios.Revisions(r.Context(), scenarioID, expertID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions, "count": len(revisions)})
}

func (s *Server) peerReviewQueue(w http.ResponseWriter, r *http.Request) {
	expertID, err := expertIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	scenarios, err := s.deps.Engine.PeerReviewQueue(r.Context(), expertID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios, "count": len(scenarios)})
}

func (s *Server) reviewProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.deps.Engine.ReviewProgress(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": progress})
}
