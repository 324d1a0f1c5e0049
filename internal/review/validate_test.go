package review

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func completeInput() ResponseInput {
	return ResponseInput{
		ScenarioID:             uuid.New(),
		ExpertID:               uuid.New(),
		RecommendedSessionType: "low_intensity_volume",
		SessionTypeConfidence:  0.8,
		Treatments: map[string]TreatmentRecommendation{
			"intensity": {Value: "reduce", Importance: ImportanceCritical},
			"hangboard": {Value: "skip", Importance: ImportanceAvoid},
		},
		KeyDrivers: []KeyDriver{
			{Rank: 1, Variable: "sleep_hours", Direction: DirectionNegative},
			{Rank: 2, Variable: "finger_soreness", Direction: DirectionNegative},
		},
		Reasoning: strings.Repeat("Poor sleep plus residual soreness caps intensity. ", 3),
		PredictedQualityOptimal: 6.5,
		PredictionConfidence:    0.7,
		IsComplete:              true,
		ResponseSeconds:         420,
	}
}

func TestValidateResponse_CompleteOK(t *testing.T) {
	if err := ValidateResponse(completeInput()); err != nil {
		t.Fatalf("expected valid complete response, got %v", err)
	}
}

func TestValidateResponse_CompletionBar(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ResponseInput)
	}{
		{"missing scenario id", func(in *ResponseInput) { in.ScenarioID = uuid.Nil }},
		{"missing expert id", func(in *ResponseInput) { in.ExpertID = uuid.Nil }},
		{"missing session type", func(in *ResponseInput) { in.RecommendedSessionType = "" }},
		{"trivial reasoning", func(in *ResponseInput) { in.Reasoning = "seems fine" }},
		{"whitespace-padded reasoning", func(in *ResponseInput) {
			in.Reasoning = "short" + strings.Repeat(" ", MinReasoningLen)
		}},
		{"quality below floor", func(in *ResponseInput) { in.PredictedQualityOptimal = 0.5 }},
		{"quality above ceiling", func(in *ResponseInput) { in.PredictedQualityOptimal = 10.5 }},
		{"no key drivers", func(in *ResponseInput) { in.KeyDrivers = nil }},
		{"driver rank zero", func(in *ResponseInput) { in.KeyDrivers[0].Rank = 0 }},
		{"driver rank too high", func(in *ResponseInput) { in.KeyDrivers[0].Rank = MaxDriverRank + 1 }},
		{"duplicate driver rank", func(in *ResponseInput) { in.KeyDrivers[1].Rank = 1 }},
		{"bad driver direction", func(in *ResponseInput) { in.KeyDrivers[0].Direction = "sideways" }},
		{"bad treatment importance", func(in *ResponseInput) {
			in.Treatments["intensity"] = TreatmentRecommendation{Value: "reduce", Importance: "vital"}
		}},
		{"confidence above one", func(in *ResponseInput) { in.SessionTypeConfidence = 1.2 }},
		{"negative prediction confidence", func(in *ResponseInput) { in.PredictionConfidence = -0.1 }},
		{"counterfactual missing variable", func(in *ResponseInput) {
			in.Counterfactuals = []Counterfactual{{ActualValue: "6h", HypotheticalValue: "8h", Confidence: 0.5}}
		}},
		{"counterfactual confidence out of range", func(in *ResponseInput) {
			in.Counterfactuals = []Counterfactual{{Variable: "sleep_hours", Confidence: 1.5}}
		}},
		{"negative response duration", func(in *ResponseInput) { in.ResponseSeconds = -1 }},
		{"negative warmup duration", func(in *ResponseInput) {
			in.SessionStructure = &SessionStructure{WarmupMinutes: -5}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := completeInput()
			tt.mutate(&in)
			err := ValidateResponse(in)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateResponse_DraftIsLenient(t *testing.T) {
	in := ResponseInput{
		ScenarioID: uuid.New(),
		ExpertID:   uuid.New(),
		Reasoning:  "wip",
		IsComplete: false,
	}
	if err := ValidateResponse(in); err != nil {
		t.Fatalf("expected draft to pass with partial fields, got %v", err)
	}
}

func TestValidateResponse_DraftStillChecksEnums(t *testing.T) {
	in := ResponseInput{
		ScenarioID: uuid.New(),
		ExpertID:   uuid.New(),
		KeyDrivers: []KeyDriver{{Rank: 1, Variable: "stress", Direction: "diagonal"}},
	}
	if err := ValidateResponse(in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad enum in draft, got %v", err)
	}
}
