package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/summitlab/crux/internal/review"
)

const responseColumns = `
	id, scenario_id, expert_id, revision, recommended_session_type,
	session_type_confidence, treatment_recommendations, counterfactuals,
	key_drivers, interaction_effects, session_structure, reasoning,
	predicted_quality_optimal, prediction_confidence, is_complete,
	response_seconds, created_at`

// InsertResponseRevision appends the next revision for the
// (scenario, expert) pair. Revisions are append-only: a re-save never
// overwrites history, it supersedes it. If the pair's latest revision is
// complete and the new one is a draft, the insert is rejected with
// ErrCompletionRevoked.
//
// The FOR UPDATE lock serializes saves only once a first revision exists;
// two concurrent first saves race to insert revision 1. The schema's unique
// index on (scenario_id, expert_id, revision) makes the loser fail, which a
// retry resolves.
func (s *Store) InsertResponseRevision(ctx context.Context, in review.ResponseInput) (*review.Response, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		latestRevision int
		latestComplete bool
	)
	err = tx.QueryRow(ctx, `
		SELECT revision, is_complete FROM expert_responses
		WHERE scenario_id = $1 AND expert_id = $2
		ORDER BY revision DESC LIMIT 1
		FOR UPDATE`,
		in.ScenarioID, in.ExpertID,
	).Scan(&latestRevision, &latestComplete)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock latest revision: %w", err)
	}

	if latestComplete && !in.IsComplete {
		return nil, fmt.Errorf("scenario %s expert %s: %w", in.ScenarioID, in.ExpertID, ErrCompletionRevoked)
	}

	resp := review.Response{
		ID:                      uuid.New(),
		ScenarioID:              in.ScenarioID,
		ExpertID:                in.ExpertID,
		Revision:                latestRevision + 1,
		RecommendedSessionType:  in.RecommendedSessionType,
		SessionTypeConfidence:   in.SessionTypeConfidence,
		Treatments:              in.Treatments,
		Counterfactuals:         in.Counterfactuals,
		KeyDrivers:              in.KeyDrivers,
		InteractionEffects:      in.InteractionEffects,
		SessionStructure:        in.SessionStructure,
		Reasoning:               in.Reasoning,
		PredictedQualityOptimal: in.PredictedQualityOptimal,
		PredictionConfidence:    in.PredictionConfidence,
		IsComplete:              in.IsComplete,
		ResponseSeconds:         in.ResponseSeconds,
	}

	treatments, err := json.Marshal(in.Treatments)
	if err != nil {
		return nil, fmt.Errorf("marshal treatments: %w", err)
	}
	counterfactuals, err := json.Marshal(in.Counterfactuals)
	if err != nil {
		return nil, fmt.Errorf("marshal counterfactuals: %w", err)
	}
	keyDrivers, err := json.Marshal(in.KeyDrivers)
	if err != nil {
		return nil, fmt.Errorf("marshal key drivers: %w", err)
	}
	interactions, err := json.Marshal(in.InteractionEffects)
	if err != nil {
		return nil, fmt.Errorf("marshal interaction effects: %w", err)
	}
	var structure []byte
	if in.SessionStructure != nil {
		structure, err = json.Marshal(in.SessionStructure)
		if err != nil {
			return nil, fmt.Errorf("marshal session structure: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO expert_responses (id, scenario_id, expert_id, revision, recommended_session_type,
			session_type_confidence, treatment_recommendations, counterfactuals, key_drivers,
			interaction_effects, session_structure, reasoning, predicted_quality_optimal,
			prediction_confidence, is_complete, response_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		RETURNING created_at`,
		resp.ID, resp.ScenarioID, resp.ExpertID, resp.Revision, resp.RecommendedSessionType,
		resp.SessionTypeConfidence, treatments, counterfactuals, keyDrivers,
		interactions, structure, resp.Reasoning, resp.PredictedQualityOptimal,
		resp.PredictionConfidence, resp.IsComplete, resp.ResponseSeconds,
	)
	if err := row.Scan(&resp.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert response revision: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &resp, nil
}

// LatestResponse returns the expert's current judgment for a scenario, or
// ErrNotFound when they have not started one.
func (s *Store) LatestResponse(ctx context.Context, scenarioID, expertID uuid.UUID) (*review.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+responseColumns+` FROM expert_responses
		WHERE scenario_id = $1 AND expert_id = $2
		ORDER BY revision DESC LIMIT 1`,
		scenarioID, expertID,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest response: %w", err)
	}
	defer rows.Close()

	responses, err := scanResponses(rows)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, fmt.Errorf("response for scenario %s expert %s: %w", scenarioID, expertID, ErrNotFound)
	}
	return &responses[0], nil
}

// ListCompleteResponses returns the latest revision per (scenario, expert)
// pair, filtered to complete ones. This is the input to peer-review
// assignment and the consensus job.
func (s *Store) ListCompleteResponses(ctx context.Context) ([]review.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+responseColumns+` FROM (
			SELECT DISTINCT ON (scenario_id, expert_id) *
			FROM expert_responses
			ORDER BY scenario_id, expert_id, revision DESC
		) latest
		WHERE is_complete`,
	)
	if err != nil {
		return nil, fmt.Errorf("query complete responses: %w", err)
	}
	defer rows.Close()

	return scanResponses(rows)
}

// Revisions returns every saved revision for the pair, oldest first — the
// "what did this expert believe, and when" audit view.
func (s *Store) Revisions(ctx context.Context, scenarioID, expertID uuid.UUID) ([]review.Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+responseColumns+` FROM expert_responses
		WHERE scenario_id = $1 AND expert_id = $2
		ORDER BY revision ASC`,
		scenarioID, expertID,
	)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	return scanResponses(rows)
}

func scanResponses(rows pgx.Rows) ([]review.Response, error) {
	var out []review.Response
	for rows.Next() {
		var (
			r               review.Response
			treatments      []byte
			counterfactuals []byte
			keyDrivers      []byte
			interactions    []byte
			structure       []byte
		)
		err := rows.Scan(&r.ID, &r.ScenarioID, &r.ExpertID, &r.Revision, &r.RecommendedSessionType,
			&r.SessionTypeConfidence, &treatments, &counterfactuals, &keyDrivers,
			&interactions, &structure, &r.Reasoning, &r.PredictedQualityOptimal,
			&r.PredictionConfidence, &r.IsComplete, &r.ResponseSeconds, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if err := json.Unmarshal(treatments, &r.Treatments); err != nil {
			return nil, fmt.Errorf("unmarshal treatments: %w", err)
		}
		if err := json.Unmarshal(counterfactuals, &r.Counterfactuals); err != nil {
			return nil, fmt.Errorf("unmarshal counterfactuals: %w", err)
		}
		if err := json.Unmarshal(keyDrivers, &r.KeyDrivers); err != nil {
			return nil, fmt.Errorf("unmarshal key drivers: %w", err)
		}
		if err := json.Unmarshal(interactions, &r.InteractionEffects); err != nil {
			return nil, fmt.Errorf("unmarshal interaction effects: %w", err)
		}
		if len(structure) > 0 {
			r.SessionStructure = &review.SessionStructure{}
			if err := json.Unmarshal(structure, r.SessionStructure); err != nil {
				return nil, fmt.Errorf("unmarshal session structure: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}
