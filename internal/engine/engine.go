// Package engine orchestrates the elicitation flow: response saves, the
// scenario lifecycle they drive, the consensus trigger, and the
// peer-review queue.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/assign"
	"github.com/summitlab/crux/internal/review"
)

// Store is the slice of the persistence layer the engine drives.
type Store interface {
	GetScenario(ctx context.Context, id uuid.UUID) (*review.Scenario, error)
	GetScenariosByIDs(ctx context.Context, ids []uuid.UUID) ([]review.Scenario, error)
	UpdateScenarioStatus(ctx context.Context, id uuid.UUID, status review.Status) error
	InsertResponseRevision(ctx context.Context, in review.ResponseInput) (*review.Response, error)
	LatestResponse(ctx context.Context, scenarioID, expertID uuid.UUID) (*review.Response, error)
	ListCompleteResponses(ctx context.Context) ([]review.Response, error)
}

// Trigger hands a freshly completed scenario to the consensus job.
type Trigger interface {
	Fire(scenarioID, expertID string) error
}

type Engine struct {
	store   Store
	trigger Trigger
	logger  *slog.Logger
}

func New(store Store, trigger Trigger, logger *slog.Logger) *Engine {
	return &Engine{store: store, trigger: trigger, logger: logger}
}

// SaveResponse validates and persists one response revision, then applies
// the save's side effects in order: first response moves the scenario out
// of pending, a complete save fires the consensus trigger. Side-effect
// failures after the revision is durable are logged, never surfaced — the
// save has succeeded and the next save or a re-trigger will catch up.
func (e *Engine) SaveResponse(ctx context.Context, in review.ResponseInput) (*review.Response, error) {
	if err := review.ValidateResponse(in); err != nil {
		return nil, err
	}

	sc, err := e.store.GetScenario(ctx, in.ScenarioID)
	if err != nil {
		return nil, err
	}
	if sc.Status == review.StatusArchived {
		return nil, fmt.Errorf("%w: scenario %s is archived", review.ErrInvalidTransition, sc.ID)
	}

	resp, err := e.store.InsertResponseRevision(ctx, in)
	if err != nil {
		return nil, err
	}

	e.logger.Info("response saved",
		"scenario_id", resp.ScenarioID,
		"expert_id", resp.ExpertID,
		"revision", resp.Revision,
		"complete", resp.IsComplete,
	)

	if sc.Status == review.StatusPending {
		if err := e.store.UpdateScenarioStatus(ctx, sc.ID, review.StatusInReview); err != nil {
			e.logger.Error("failed to advance scenario to in_review",
				"scenario_id", sc.ID,
				"error", err,
			)
		}
	}

	if resp.IsComplete {
		// Fire-and-forget; the trigger logs its own failures.
		_ = e.trigger.Fire(resp.ScenarioID.String(), resp.ExpertID.String())
	}

	return resp, nil
}

// MyResponse returns the expert's latest revision for a scenario, or nil
// when they have not started one.
func (e *Engine) MyResponse(ctx context.Context, scenarioID, expertID uuid.UUID) (*review.Response, error) {
	return e.store.LatestResponse(ctx, scenarioID, expertID)
}

// PeerReviewQueue returns the scenarios that need a second independent
// opinion from this expert, recomputed from complete responses on every
// call. Archived scenarios never surface.
func (e *Engine) PeerReviewQueue(ctx context.Context, expertID uuid.UUID) ([]review.Scenario, error) {
	complete, err := e.store.ListCompleteResponses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list complete responses: %w", err)
	}

	ids := assign.SecondReviewCandidates(complete, expertID)
	if len(ids) == 0 {
		return nil, nil
	}

	scenarios, err := e.store.GetScenariosByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch queue scenarios: %w", err)
	}

	out := scenarios[:0]
	for _, sc := range scenarios {
		if sc.Status != review.StatusArchived {
			out = append(out, sc)
		}
	}
	return out, nil
}

// ReviewProgress reports how many distinct experts have completed each
// scenario, for the elicitation dashboard.
func (e *Engine) ReviewProgress(ctx context.Context) (map[uuid.UUID]int, error) {
	complete, err := e.store.ListCompleteResponses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list complete responses: %w", err)
	}
	return assign.ReviewCounts(complete), nil
}
