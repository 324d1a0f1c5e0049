// Package review defines the scenario and expert-response domain model for
// the scenario review engine. Stores persist these types; the engine and API
// layers pass them around unchanged.
package review

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is a scenario's lifecycle state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInReview         Status = "in_review"
	StatusConsensusReached Status = "consensus_reached"
	StatusDisputed         Status = "disputed"
	StatusNeedsDiscussion  Status = "needs_discussion"
	StatusArchived         Status = "archived"
)

// Difficulty is an editorial tag set at authoring time, never derived.
type Difficulty string

const (
	DifficultyCommon   Difficulty = "common"
	DifficultyEdgeCase Difficulty = "edge_case"
	DifficultyExtreme  Difficulty = "extreme"
)

// Importance grades how much a treatment recommendation matters.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHelpful  Importance = "helpful"
	ImportanceNeutral  Importance = "neutral"
	ImportanceAvoid    Importance = "avoid"
)

// Direction is the effect direction of a key driver.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// BaselineSnapshot holds the climber-profile facts frozen at scenario
// creation. Immutable once the scenario exists.
type BaselineSnapshot struct {
	ExperienceYears   float64  `json:"experience_years"`
	BoulderGrade      string   `json:"boulder_grade"`
	SportGrade        string   `json:"sport_grade"`
	TrainingDaysWeek  int      `json:"training_days_week"`
	InjuryHistory     []string `json:"injury_history"`
	PsychBaseline     string   `json:"psych_baseline"`
}

// PreSessionSnapshot is the situational state the experts judge. Known
// fields are typed; anything else the authoring source sent is preserved
// in Extra and displayed generically downstream.
type PreSessionSnapshot struct {
	Environment       string  `json:"environment"`
	SleepHours        float64 `json:"sleep_hours"`
	SleepQuality      string  `json:"sleep_quality"`
	Soreness          string  `json:"soreness"`
	StressLevel       string  `json:"stress_level"`
	Motivation        string  `json:"motivation"`
	SessionIntent     string  `json:"session_intent"`
	DaysSinceSession  int     `json:"days_since_session"`

	Extra []ExtraAttribute `json:"-"`
}

// ExtraAttribute is a pre-session key the schema does not know about.
// Entries are kept in deterministic (sorted by key) order.
type ExtraAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// snapshot known-key set, kept in sync with the typed fields above.
var knownSnapshotKeys = map[string]bool{
	"environment":        true,
	"sleep_hours":        true,
	"sleep_quality":      true,
	"soreness":           true,
	"stress_level":       true,
	"motivation":         true,
	"session_intent":     true,
	"days_since_session": true,
}

// MarshalJSON folds Extra attributes back into the flat snapshot object so
// the wire shape stays a single key/value map.
func (s PreSessionSnapshot) MarshalJSON() ([]byte, error) {
	type alias PreSessionSnapshot
	base, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for _, attr := range s.Extra {
		if knownSnapshotKeys[attr.Key] {
			continue
		}
		raw, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		m[attr.Key] = raw
	}
	return json.Marshal(m)
}

// UnmarshalJSON captures unknown keys into Extra instead of dropping them.
// Unknown values that are not strings are kept as their compact JSON text.
func (s *PreSessionSnapshot) UnmarshalJSON(data []byte) error {
	type alias PreSessionSnapshot
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = PreSessionSnapshot(a)
	s.Extra = nil

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !knownSnapshotKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var v string
		if err := json.Unmarshal(m[k], &v); err != nil {
			v = string(m[k])
		}
		s.Extra = append(s.Extra, ExtraAttribute{Key: k, Value: v})
	}
	return nil
}

// Scenario is one synthetic readiness case presented to experts.
type Scenario struct {
	ID              uuid.UUID          `json:"id"`
	Description     string             `json:"description"`
	Baseline        BaselineSnapshot   `json:"baseline_snapshot"`
	PreSession      PreSessionSnapshot `json:"pre_session_snapshot"`
	Status          Status             `json:"status"`
	Difficulty      Difficulty         `json:"difficulty_level"`
	EdgeCaseTags    []string           `json:"edge_case_tags"`
	AIRecommendation string            `json:"ai_recommendation,omitempty"`
	AIReasoning     string             `json:"ai_reasoning,omitempty"`
	GenerationBatch *uuid.UUID         `json:"generation_batch,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// TreatmentRecommendation is one treatment variable's recommended value.
type TreatmentRecommendation struct {
	Value      string     `json:"value"`
	Importance Importance `json:"importance"`
}

// Counterfactual is an expert's judgment of how the outcome shifts if one
// input variable took a different value.
type Counterfactual struct {
	Variable               string  `json:"variable"`
	ActualValue            string  `json:"actual_value"`
	HypotheticalValue      string  `json:"hypothetical_value"`
	ExpectedOutcomeDelta   float64 `json:"expected_outcome_delta"`
	Confidence             float64 `json:"confidence"`
	WouldChangeSessionType bool    `json:"would_change_session_type"`
}

// KeyDriver is a ranked most-influential variable, rank 1 strongest.
type KeyDriver struct {
	Rank      int       `json:"rank"`
	Variable  string    `json:"variable"`
	Direction Direction `json:"direction"`
}

// InteractionEffect describes two variables whose combination matters more
// than either alone.
type InteractionEffect struct {
	VariablePair   [2]string `json:"variable_pair"`
	Description    string    `json:"description"`
	CombinedImpact string    `json:"combined_impact"`
}

// SessionStructure is an optional concrete session plan.
type SessionStructure struct {
	WarmupMinutes   int      `json:"warmup_minutes"`
	MainMinutes     int      `json:"main_minutes"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	Activities      []string `json:"activities"`
}

// Response is one revision of an expert's structured judgment about one
// scenario. Revisions are append-only; the latest revision per
// (scenario, expert) is the expert's current judgment.
type Response struct {
	ID                      uuid.UUID                          `json:"id"`
	ScenarioID              uuid.UUID                          `json:"scenario_id"`
	ExpertID                uuid.UUID                          `json:"expert_id"`
	Revision                int                                `json:"revision"`
	RecommendedSessionType  string                             `json:"recommended_session_type"`
	SessionTypeConfidence   float64                            `json:"session_type_confidence"`
	Treatments              map[string]TreatmentRecommendation `json:"treatment_recommendations"`
	Counterfactuals         []Counterfactual                   `json:"counterfactuals"`
	KeyDrivers              []KeyDriver                        `json:"key_drivers"`
	InteractionEffects      []InteractionEffect                `json:"interaction_effects"`
	SessionStructure        *SessionStructure                  `json:"session_structure,omitempty"`
	Reasoning               string                             `json:"reasoning"`
	PredictedQualityOptimal float64                            `json:"predicted_quality_optimal"`
	PredictionConfidence    float64                            `json:"prediction_confidence"`
	IsComplete              bool                               `json:"is_complete"`
	ResponseSeconds         int                                `json:"response_seconds"`
	CreatedAt               time.Time                          `json:"created_at"`
}

// ResponseInput is the save payload for a response revision. The store
// assigns ID, Revision and CreatedAt.
type ResponseInput struct {
	ScenarioID              uuid.UUID                          `json:"scenario_id"`
	ExpertID                uuid.UUID                          `json:"expert_id"`
	RecommendedSessionType  string                             `json:"recommended_session_type"`
	SessionTypeConfidence   float64                            `json:"session_type_confidence"`
	Treatments              map[string]TreatmentRecommendation `json:"treatment_recommendations"`
	Counterfactuals         []Counterfactual                   `json:"counterfactuals"`
	KeyDrivers              []KeyDriver                        `json:"key_drivers"`
	InteractionEffects      []InteractionEffect                `json:"interaction_effects"`
	SessionStructure        *SessionStructure                  `json:"session_structure,omitempty"`
	Reasoning               string                             `json:"reasoning"`
	PredictedQualityOptimal float64                            `json:"predicted_quality_optimal"`
	PredictionConfidence    float64                            `json:"prediction_confidence"`
	IsComplete              bool                               `json:"is_complete"`
	ResponseSeconds         int                                `json:"response_seconds"`
}
