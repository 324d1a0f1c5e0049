package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrValidation marks a response rejected locally, before any store write.
var ErrValidation = errors.New("validation failed")

// MinReasoningLen is the floor on reasoning text for a complete response.
// Drafts may carry less.
const MinReasoningLen = 40

// MaxDriverRank caps how many key drivers an expert ranks.
const MaxDriverRank = 3

// ValidateResponse checks a response input. Drafts get structural checks
// only; a save with IsComplete set must pass the full completion bar.
func ValidateResponse(in ResponseInput) error {
	if in.ScenarioID == uuid.Nil {
		return fmt.Errorf("%w: scenario_id is required", ErrValidation)
	}
	if in.ExpertID == uuid.Nil {
		return fmt.Errorf("%w: expert_id is required", ErrValidation)
	}

	for variable, tr := range in.Treatments {
		if variable == "" {
			return fmt.Errorf("%w: treatment variable name is empty", ErrValidation)
		}
		if !validImportance(tr.Importance) {
			return fmt.Errorf("%w: treatment %q has unknown importance %q", ErrValidation, variable, tr.Importance)
		}
	}

	for i, kd := range in.KeyDrivers {
		if kd.Rank < 1 || kd.Rank > MaxDriverRank {
			return fmt.Errorf("%w: key driver %d has rank %d, want 1-%d", ErrValidation, i, kd.Rank, MaxDriverRank)
		}
		if kd.Direction != DirectionPositive && kd.Direction != DirectionNegative {
			return fmt.Errorf("%w: key driver %d has unknown direction %q", ErrValidation, i, kd.Direction)
		}
	}
	if err := uniqueRanks(in.KeyDrivers); err != nil {
		return err
	}

	for i, cf := range in.Counterfactuals {
		if cf.Variable == "" {
			return fmt.Errorf("%w: counterfactual %d has no variable", ErrValidation, i)
		}
		if cf.Confidence < 0 || cf.Confidence > 1 {
			return fmt.Errorf("%w: counterfactual %d confidence %.2f out of [0,1]", ErrValidation, i, cf.Confidence)
		}
	}

	if in.SessionTypeConfidence < 0 || in.SessionTypeConfidence > 1 {
		return fmt.Errorf("%w: session_type_confidence %.2f out of [0,1]", ErrValidation, in.SessionTypeConfidence)
	}
	if in.PredictionConfidence < 0 || in.PredictionConfidence > 1 {
		return fmt.Errorf("%w: prediction_confidence %.2f out of [0,1]", ErrValidation, in.PredictionConfidence)
	}
	if in.ResponseSeconds < 0 {
		return fmt.Errorf("%w: response_seconds is negative", ErrValidation)
	}

	if !in.IsComplete {
		return nil
	}
	return validateComplete(in)
}

// validateComplete is the completion bar: every judgment dimension the
// consensus job consumes must be present and in range.
func validateComplete(in ResponseInput) error {
	if in.RecommendedSessionType == "" {
		return fmt.Errorf("%w: complete response needs a recommended session type", ErrValidation)
	}
	if len(strings.TrimSpace(in.Reasoning)) < MinReasoningLen {
		return fmt.Errorf("%w: reasoning must be at least %d characters", ErrValidation, MinReasoningLen)
	}
	if in.PredictedQualityOptimal < 1 || in.PredictedQualityOptimal > 10 {
		return fmt.Errorf("%w: predicted_quality_optimal %.1f out of [1,10]", ErrValidation, in.PredictedQualityOptimal)
	}
	if len(in.KeyDrivers) == 0 {
		return fmt.Errorf("%w: complete response needs at least one key driver", ErrValidation)
	}
	if in.SessionStructure != nil {
		ss := in.SessionStructure
		if ss.WarmupMinutes < 0 || ss.MainMinutes < 0 || ss.CooldownMinutes < 0 {
			return fmt.Errorf("%w: session structure has negative duration", ErrValidation)
		}
	}
	return nil
}

func uniqueRanks(drivers []KeyDriver) error {
	seen := map[int]bool{}
	for _, kd := range drivers {
		if seen[kd.Rank] {
			return fmt.Errorf("%w: duplicate key driver rank %d", ErrValidation, kd.Rank)
		}
		seen[kd.Rank] = true
	}
	return nil
}

func validImportance(imp Importance) bool {
	switch imp {
	case ImportanceCritical, ImportanceHelpful, ImportanceNeutral, ImportanceAvoid:
		return true
	}
	return false
}
