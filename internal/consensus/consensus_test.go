package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/bus"
	"github.com/summitlab/crux/internal/review"
)

type fakePublisher struct {
	published []struct {
		subject string
		data    any
	}
	err error
}

func (f *fakePublisher) Publish(subject string, data any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, struct {
		subject string
		data    any
	}{subject, data})
	return nil
}

type fakeUpdater struct {
	calls []struct {
		id     uuid.UUID
		status review.Status
	}
	err error
}

func (f *fakeUpdater) UpdateScenarioStatus(_ context.Context, id uuid.UUID, status review.Status) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, struct {
		id     uuid.UUID
		status review.Status
	}{id, status})
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrigger_Fire(t *testing.T) {
	pub := &fakePublisher{}
	trig := NewTrigger(pub, discard())

	scenarioID := uuid.New().String()
	expertID := uuid.New().String()
	if err := trig.Fire(scenarioID, expertID); err != nil {
		t.Fatalf("Fire failed: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	if pub.published[0].subject != bus.SubjectConsensusReady {
		t.Errorf("expected subject %s, got %s", bus.SubjectConsensusReady, pub.published[0].subject)
	}
	evt, ok := pub.published[0].data.(ReadyEvent)
	if !ok {
		t.Fatalf("expected ReadyEvent payload, got %T", pub.published[0].data)
	}
	if evt.ScenarioID != scenarioID {
		t.Errorf("expected scenario id %s, got %s", scenarioID, evt.ScenarioID)
	}
	if evt.TriggeredBy != expertID {
		t.Errorf("expected triggered_by %s, got %s", expertID, evt.TriggeredBy)
	}
}

func TestTrigger_FireReturnsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	trig := NewTrigger(pub, discard())

	if err := trig.Fire(uuid.New().String(), uuid.New().String()); err == nil {
		t.Fatal("expected publish error to surface to caller for logging")
	}
}

func TestResultHandler_AppliesOutcome(t *testing.T) {
	tests := []struct {
		outcome string
		want    review.Status
	}{
		{"consensus_reached", review.StatusConsensusReached},
		{"disputed", review.StatusDisputed},
		{"needs_discussion", review.StatusNeedsDiscussion},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			store := &fakeUpdater{}
			h := NewResultHandler(store, discard())

			id := uuid.New()
			data, _ := json.Marshal(ResultEvent{
				ScenarioID:     id.String(),
				Outcome:        tt.outcome,
				AgreementScore: 0.82,
				ExpertCount:    2,
			})
			h.HandleResult(bus.SubjectConsensusResult, data)

			if len(store.calls) != 1 {
				t.Fatalf("expected 1 status update, got %d", len(store.calls))
			}
			if store.calls[0].id != id {
				t.Errorf("expected scenario %s, got %s", id, store.calls[0].id)
			}
			if store.calls[0].status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, store.calls[0].status)
			}
		})
	}
}

func TestResultHandler_IgnoresBadEvents(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"malformed json", []byte(`{not json`)},
		{"bad scenario id", mustMarshal(ResultEvent{ScenarioID: "not-a-uuid", Outcome: "disputed"})},
		{"unknown outcome", mustMarshal(ResultEvent{ScenarioID: uuid.New().String(), Outcome: "shrug"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUpdater{}
			h := NewResultHandler(store, discard())
			h.HandleResult(bus.SubjectConsensusResult, tt.data)
			if len(store.calls) != 0 {
				t.Errorf("expected no status updates, got %d", len(store.calls))
			}
		})
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
