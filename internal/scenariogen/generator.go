// Package scenariogen batches synthetic readiness scenarios out of the
// external AI backend and persists them for expert review.
package scenariogen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/bus"
	"github.com/summitlab/crux/internal/review"
	"github.com/summitlab/crux/internal/store"
)

// MaxBatchSize caps one generation call. The backend degrades past this.
const MaxBatchSize = 25

// generated mirrors the backend's scenario payload.
type generated struct {
	Description      string                    `json:"description"`
	Baseline         review.BaselineSnapshot   `json:"baseline_snapshot"`
	PreSession       review.PreSessionSnapshot `json:"pre_session_snapshot"`
	Difficulty       review.Difficulty         `json:"difficulty_level"`
	EdgeCaseTags     []string                  `json:"edge_case_tags"`
	AIRecommendation string                    `json:"ai_recommendation"`
	AIReasoning      string                    `json:"ai_reasoning"`
}

type generateResponse struct {
	Scenarios []generated `json:"scenarios"`
}

// Result reports one persisted generation batch.
type Result struct {
	ScenariosGenerated int       `json:"scenarios_generated"`
	GenerationBatch    uuid.UUID `json:"generation_batch"`
}

// Caller is the slice of the AI client the generator needs.
type Caller interface {
	Call(ctx context.Context, path string, payload, out any) error
}

// ScenarioCreator is the slice of the store the generator needs.
type ScenarioCreator interface {
	CreateScenarioBatch(ctx context.Context, inputs []store.ScenarioInput) ([]review.Scenario, error)
}

// Publisher announces persisted batches; best-effort.
type Publisher interface {
	Publish(subject string, data any) error
}

type Generator struct {
	ai     Caller
	store  ScenarioCreator
	bus    Publisher
	logger *slog.Logger
}

func New(ai Caller, store ScenarioCreator, bus Publisher, logger *slog.Logger) *Generator {
	return &Generator{ai: ai, store: store, bus: bus, logger: logger}
}

// Generate asks the backend for count scenarios and persists them in one
// transaction under a fresh batch id. A failed or cancelled generation
// writes nothing.
func (g *Generator) Generate(ctx context.Context, count int) (*Result, error) {
	if count < 1 || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: count %d out of [1,%d]", review.ErrValidation, count, MaxBatchSize)
	}

	g.logger.Info("scenario generation starting", "count", count)

	var resp generateResponse
	if err := g.ai.Call(ctx, "/v1/scenarios/generate", map[string]int{"count": count}, &resp); err != nil {
		return nil, fmt.Errorf("generate scenarios: %w", err)
	}
	if len(resp.Scenarios) == 0 {
		return nil, fmt.Errorf("backend returned no scenarios")
	}

	batch := uuid.New()
	inputs := make([]store.ScenarioInput, 0, len(resp.Scenarios))
	for i, gen := range resp.Scenarios {
		if gen.Description == "" {
			return nil, fmt.Errorf("generated scenario %d has no description", i)
		}
		difficulty := gen.Difficulty
		if !review.ValidDifficulty(difficulty) {
			difficulty = review.DifficultyCommon
		}
		inputs = append(inputs, store.ScenarioInput{
			Description:      gen.Description,
			Baseline:         gen.Baseline,
			PreSession:       gen.PreSession,
			Difficulty:       difficulty,
			EdgeCaseTags:     gen.EdgeCaseTags,
			AIRecommendation: gen.AIRecommendation,
			AIReasoning:      gen.AIReasoning,
			GenerationBatch:  batch,
		})
	}

	scenarios, err := g.store.CreateScenarioBatch(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("persist generated scenarios: %w", err)
	}

	if g.bus != nil {
		if err := g.bus.Publish(bus.SubjectScenarioGenerated, map[string]any{
			"generation_batch": batch.String(),
			"count":            len(scenarios),
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			g.logger.Warn("failed to publish generation event", "batch", batch, "error", err)
		}
	}

	g.logger.Info("scenario generation complete", "batch", batch, "count", len(scenarios))
	return &Result{ScenariosGenerated: len(scenarios), GenerationBatch: batch}, nil
}
