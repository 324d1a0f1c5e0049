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

const scenarioColumns = `
	id, description, baseline_snapshot, pre_session_snapshot, status,
	difficulty_level, edge_case_tags, ai_recommendation, ai_reasoning,
	generation_batch, created_at`

// ScenarioInput is the creation payload. Status is always pending on
// creation; callers cannot pick a lifecycle state.
type ScenarioInput struct {
	Description      string
	Baseline         review.BaselineSnapshot
	PreSession       review.PreSessionSnapshot
	Difficulty       review.Difficulty
	EdgeCaseTags     []string
	AIRecommendation string
	AIReasoning      string
	GenerationBatch  uuid.UUID // uuid.Nil for manual authoring
}

// ListScenarios returns scenarios, optionally filtered by status, newest
// first. A zero limit means no cap.
func (s *Store) ListScenarios(ctx context.Context, status *review.Status, limit int) ([]review.Scenario, error) {
	query := `SELECT` + scenarioColumns + ` FROM scenarios`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	return scanScenarios(rows)
}

// GetScenario fetches a single scenario by id.
func (s *Store) GetScenario(ctx context.Context, id uuid.UUID) (*review.Scenario, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+scenarioColumns+` FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query scenario: %w", err)
	}
	defer rows.Close()

	scenarios, err := scanScenarios(rows)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	return &scenarios[0], nil
}

// GetScenariosByIDs fetches the scenarios for the given ids. Missing ids
// are silently absent from the result.
func (s *Store) GetScenariosByIDs(ctx context.Context, ids []uuid.UUID) ([]review.Scenario, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT`+scenarioColumns+` FROM scenarios WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query scenarios by ids: %w", err)
	}
	defer rows.Close()

	return scanScenarios(rows)
}

// CreateScenario persists one manually authored or AI-generated scenario
// with status pending.
func (s *Store) CreateScenario(ctx context.Context, in ScenarioInput) (*review.Scenario, error) {
	scenarios, err := s.CreateScenarioBatch(ctx, []ScenarioInput{in})
	if err != nil {
		return nil, err
	}
	return &scenarios[0], nil
}

// CreateScenarioBatch persists a set of scenarios in one transaction.
// All-or-nothing: a failed or abandoned generation leaves no partial rows.
func (s *Store) CreateScenarioBatch(ctx context.Context, inputs []ScenarioInput) ([]review.Scenario, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	out := make([]review.Scenario, 0, len(inputs))
	for _, in := range inputs {
		if !review.ValidDifficulty(in.Difficulty) {
			return nil, fmt.Errorf("%w: unknown difficulty %q", review.ErrValidation, in.Difficulty)
		}

		baseline, err := json.Marshal(in.Baseline)
		if err != nil {
			return nil, fmt.Errorf("marshal baseline: %w", err)
		}
		preSession, err := json.Marshal(in.PreSession)
		if err != nil {
			return nil, fmt.Errorf("marshal pre-session snapshot: %w", err)
		}

		var batch uuid.NullUUID
		if in.GenerationBatch != uuid.Nil {
			batch = uuid.NullUUID{UUID: in.GenerationBatch, Valid: true}
		}

		sc := review.Scenario{
			ID:               uuid.New(),
			Description:      in.Description,
			Baseline:         in.Baseline,
			PreSession:       in.PreSession,
			Status:           review.StatusPending,
			Difficulty:       in.Difficulty,
			EdgeCaseTags:     in.EdgeCaseTags,
			AIRecommendation: in.AIRecommendation,
			AIReasoning:      in.AIReasoning,
		}
		if batch.Valid {
			sc.GenerationBatch = &batch.UUID
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO scenarios (id, description, baseline_snapshot, pre_session_snapshot, status,
				difficulty_level, edge_case_tags, ai_recommendation, ai_reasoning, generation_batch, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			RETURNING created_at`,
			sc.ID, sc.Description, baseline, preSession, string(sc.Status),
			string(sc.Difficulty), sc.EdgeCaseTags, sc.AIRecommendation, sc.AIReasoning, batch,
		)
		if err := row.Scan(&sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert scenario: %w", err)
		}
		out = append(out, sc)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// UpdateScenarioStatus advances a scenario's lifecycle. The transition is
// validated against the current row under lock; backwards moves are
// rejected with review.ErrInvalidTransition.
func (s *Store) UpdateScenarioStatus(ctx context.Context, id uuid.UUID, status review.Status) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM scenarios WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock scenario: %w", err)
	}

	if err := review.ValidateTransition(review.Status(current), status); err != nil {
		return err
	}
	if review.Status(current) == status {
		return nil // no-op, skip the write
	}

	if _, err := tx.Exec(ctx, `UPDATE scenarios SET status = $1 WHERE id = $2`, string(status), id); err != nil {
		return fmt.Errorf("update scenario status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanScenarios(rows pgx.Rows) ([]review.Scenario, error) {
	var out []review.Scenario
	for rows.Next() {
		var (
			sc         review.Scenario
			baseline   []byte
			preSession []byte
			status     string
			difficulty string
			batch      uuid.NullUUID
		)
		err := rows.Scan(&sc.ID, &sc.Description, &baseline, &preSession, &status,
			&difficulty, &sc.EdgeCaseTags, &sc.AIRecommendation, &sc.AIReasoning,
			&batch, &sc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		if err := json.Unmarshal(baseline, &sc.Baseline); err != nil {
			return nil, fmt.Errorf("unmarshal baseline: %w", err)
		}
		if err := json.Unmarshal(preSession, &sc.PreSession); err != nil {
			return nil, fmt.Errorf("unmarshal pre-session snapshot: %w", err)
		}
		sc.Status = review.Status(status)
		sc.Difficulty = review.Difficulty(difficulty)
		if batch.Valid {
			sc.GenerationBatch = &batch.UUID
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return out, nil
}
