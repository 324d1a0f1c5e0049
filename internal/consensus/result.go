package consensus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/review"
)

// ResultEvent is what the external consensus job reports once it has
// reconciled the independent judgments on a scenario.
type ResultEvent struct {
	ScenarioID     string  `json:"scenario_id"`
	Outcome        string  `json:"outcome"` // consensus_reached | disputed | needs_discussion
	AgreementScore float64 `json:"agreement_score"`
	ExpertCount    int     `json:"expert_count"`
}

// StatusUpdater is the slice of the scenario store the handler needs.
type StatusUpdater interface {
	UpdateScenarioStatus(ctx context.Context, id uuid.UUID, status review.Status) error
}

// ResultHandler applies consensus outcomes to scenario status.
type ResultHandler struct {
	store  StatusUpdater
	logger *slog.Logger
}

func NewResultHandler(store StatusUpdater, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{store: store, logger: logger}
}

// outcomeStatus maps job outcomes onto the scenario lifecycle. Anything
// else is an event we don't understand and must not act on.
var outcomeStatus = map[string]review.Status{
	"consensus_reached": review.StatusConsensusReached,
	"disputed":          review.StatusDisputed,
	"needs_discussion":  review.StatusNeedsDiscussion,
}

// HandleResult is the NATS handler for crux.scenario.consensus.result.
func (h *ResultHandler) HandleResult(subject string, data []byte) {
	ctx := context.Background()

	var evt ResultEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		h.logger.Error("failed to parse consensus result", "error", err)
		return
	}

	id, err := uuid.Parse(evt.ScenarioID)
	if err != nil {
		h.logger.Error("invalid scenario id in consensus result", "scenario_id", evt.ScenarioID, "error", err)
		return
	}

	status, ok := outcomeStatus[evt.Outcome]
	if !ok {
		h.logger.Warn("unknown consensus outcome", "scenario_id", evt.ScenarioID, "outcome", evt.Outcome)
		return
	}

	if err := h.store.UpdateScenarioStatus(ctx, id, status); err != nil {
		h.logger.Error("failed to apply consensus outcome",
			"scenario_id", evt.ScenarioID,
			"outcome", evt.Outcome,
			"error", err,
		)
		return
	}

	h.logger.Info("consensus outcome applied",
		"scenario_id", evt.ScenarioID,
		"outcome", evt.Outcome,
		"agreement_score", evt.AgreementScore,
		"experts", evt.ExpertCount,
	)
}
