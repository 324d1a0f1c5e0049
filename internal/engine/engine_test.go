package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/review"
)

// memStore is an in-memory stand-in for the Postgres store with the same
// revision and latch semantics.
type memStore struct {
	scenarios map[uuid.UUID]*review.Scenario
	responses map[uuid.UUID]map[uuid.UUID][]review.Response // scenario -> expert -> revisions

	statusErr error
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		scenarios: map[uuid.UUID]*review.Scenario{},
		responses: map[uuid.UUID]map[uuid.UUID][]review.Response{},
	}
}

func (m *memStore) addScenario(status review.Status) uuid.UUID {
	id := uuid.New()
	m.scenarios[id] = &review.Scenario{ID: id, Status: status}
	return id
}

func (m *memStore) GetScenario(_ context.Context, id uuid.UUID) (*review.Scenario, error) {
	sc, ok := m.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: not found", id)
	}
	cp := *sc
	return &cp, nil
}

func (m *memStore) GetScenariosByIDs(_ context.Context, ids []uuid.UUID) ([]review.Scenario, error) {
	var out []review.Scenario
	for _, id := range ids {
		if sc, ok := m.scenarios[id]; ok {
			out = append(out, *sc)
		}
	}
	return out, nil
}

func (m *memStore) UpdateScenarioStatus(_ context.Context, id uuid.UUID, status review.Status) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	sc, ok := m.scenarios[id]
	if !ok {
		return fmt.Errorf("scenario %s: not found", id)
	}
	if err := review.ValidateTransition(sc.Status, status); err != nil {
		return err
	}
	sc.Status = status
	return nil
}

func (m *memStore) InsertResponseRevision(_ context.Context, in review.ResponseInput) (*review.Response, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	byExpert, ok := m.responses[in.ScenarioID]
	if !ok {
		byExpert = map[uuid.UUID][]review.Response{}
		m.responses[in.ScenarioID] = byExpert
	}
	revs := byExpert[in.ExpertID]
	if len(revs) > 0 && revs[len(revs)-1].IsComplete && !in.IsComplete {
		return nil, errors.New("cannot revoke a completed response")
	}
	resp := review.Response{
		ID:         uuid.New(),
		ScenarioID: in.ScenarioID,
		ExpertID:   in.ExpertID,
		Revision:   len(revs) + 1,
		Reasoning:  in.Reasoning,
		IsComplete: in.IsComplete,
	}
	byExpert[in.ExpertID] = append(revs, resp)
	return &resp, nil
}

func (m *memStore) LatestResponse(_ context.Context, scenarioID, expertID uuid.UUID) (*review.Response, error) {
	revs := m.responses[scenarioID][expertID]
	if len(revs) == 0 {
		return nil, fmt.Errorf("response: not found")
	}
	cp := revs[len(revs)-1]
	return &cp, nil
}

func (m *memStore) ListCompleteResponses(_ context.Context) ([]review.Response, error) {
	var out []review.Response
	for _, byExpert := range m.responses {
		for _, revs := range byExpert {
			latest := revs[len(revs)-1]
			if latest.IsComplete {
				out = append(out, latest)
			}
		}
	}
	return out, nil
}

type fakeTrigger struct {
	fired []string
	err   error
}

func (f *fakeTrigger) Fire(scenarioID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.fired = append(f.fired, scenarioID)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func input(scenarioID, expertID uuid.UUID, complete bool) review.ResponseInput {
	return review.ResponseInput{
		ScenarioID:             scenarioID,
		ExpertID:               expertID,
		RecommendedSessionType: "technique_volume",
		SessionTypeConfidence:  0.8,
		KeyDrivers: []review.KeyDriver{
			{Rank: 1, Variable: "sleep_hours", Direction: review.DirectionNegative},
		},
		Reasoning:               strings.Repeat("Short sleep argues for reduced loading today. ", 2),
		PredictedQualityOptimal: 6,
		PredictionConfidence:    0.7,
		IsComplete:              complete,
	}
}

func TestSaveResponse_CompleteFlow(t *testing.T) {
	st := newMemStore()
	trig := &fakeTrigger{}
	eng := New(st, trig, discard())
	ctx := context.Background()

	scenarioID := st.addScenario(review.StatusPending)
	expertA := uuid.New()
	expertB := uuid.New()

	// Expert A completes: status advances, trigger fires once, scenario
	// shows up in B's queue but not A's.
	resp, err := eng.SaveResponse(ctx, input(scenarioID, expertA, true))
	if err != nil {
		t.Fatalf("SaveResponse failed: %v", err)
	}
	if resp.Revision != 1 {
		t.Errorf("expected revision 1, got %d", resp.Revision)
	}
	if st.scenarios[scenarioID].Status != review.StatusInReview {
		t.Errorf("expected in_review, got %s", st.scenarios[scenarioID].Status)
	}
	if len(trig.fired) != 1 || trig.fired[0] != scenarioID.String() {
		t.Fatalf("expected one trigger for %s, got %v", scenarioID, trig.fired)
	}

	queueB, err := eng.PeerReviewQueue(ctx, expertB)
	if err != nil {
		t.Fatalf("PeerReviewQueue failed: %v", err)
	}
	if len(queueB) != 1 || queueB[0].ID != scenarioID {
		t.Errorf("expected scenario in B's queue, got %v", queueB)
	}
	queueA, err := eng.PeerReviewQueue(ctx, expertA)
	if err != nil {
		t.Fatalf("PeerReviewQueue failed: %v", err)
	}
	if len(queueA) != 0 {
		t.Errorf("expected empty queue for A, got %v", queueA)
	}

	// Expert B completes: queues drain for everyone, trigger fires again.
	if _, err := eng.SaveResponse(ctx, input(scenarioID, expertB, true)); err != nil {
		t.Fatalf("second SaveResponse failed: %v", err)
	}
	if len(trig.fired) != 2 {
		t.Errorf("expected second trigger, got %d", len(trig.fired))
	}
	for _, expert := range []uuid.UUID{expertA, expertB, uuid.New()} {
		queue, err := eng.PeerReviewQueue(ctx, expert)
		if err != nil {
			t.Fatalf("PeerReviewQueue failed: %v", err)
		}
		if len(queue) != 0 {
			t.Errorf("expected drained queue for %s, got %v", expert, queue)
		}
	}
}

func TestSaveResponse_DraftFlow(t *testing.T) {
	st := newMemStore()
	trig := &fakeTrigger{}
	eng := New(st, trig, discard())
	ctx := context.Background()

	scenarioID := st.addScenario(review.StatusPending)
	expert := uuid.New()

	if _, err := eng.SaveResponse(ctx, input(scenarioID, expert, false)); err != nil {
		t.Fatalf("draft save failed: %v", err)
	}

	// Draft still moves the scenario out of pending...
	if st.scenarios[scenarioID].Status != review.StatusInReview {
		t.Errorf("expected in_review after draft, got %s", st.scenarios[scenarioID].Status)
	}
	// ...but fires no trigger and surfaces in nobody's queue.
	if len(trig.fired) != 0 {
		t.Errorf("expected no trigger for draft, got %v", trig.fired)
	}
	queue, err := eng.PeerReviewQueue(ctx, uuid.New())
	if err != nil {
		t.Fatalf("PeerReviewQueue failed: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("draft-only scenario should surface to nobody, got %v", queue)
	}
}

func TestSaveResponse_ValidationRejectedBeforeStore(t *testing.T) {
	st := newMemStore()
	trig := &fakeTrigger{}
	eng := New(st, trig, discard())

	scenarioID := st.addScenario(review.StatusPending)
	in := input(scenarioID, uuid.New(), true)
	in.Reasoning = "too short"

	_, err := eng.SaveResponse(context.Background(), in)
	if !errors.Is(err, review.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(st.responses) != 0 {
		t.Error("expected no store write on validation failure")
	}
	if len(trig.fired) != 0 {
		t.Error("expected no trigger on validation failure")
	}
}

func TestSaveResponse_ArchivedScenarioRejected(t *testing.T) {
	st := newMemStore()
	eng := New(st, &fakeTrigger{}, discard())

	scenarioID := st.addScenario(review.StatusArchived)
	_, err := eng.SaveResponse(context.Background(), input(scenarioID, uuid.New(), true))
	if !errors.Is(err, review.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for archived scenario, got %v", err)
	}
}

func TestSaveResponse_TriggerFailureDoesNotFailSave(t *testing.T) {
	st := newMemStore()
	trig := &fakeTrigger{err: errors.New("nats down")}
	eng := New(st, trig, discard())

	scenarioID := st.addScenario(review.StatusPending)
	resp, err := eng.SaveResponse(context.Background(), input(scenarioID, uuid.New(), true))
	if err != nil {
		t.Fatalf("expected save to succeed despite trigger failure, got %v", err)
	}
	if resp == nil || resp.Revision != 1 {
		t.Errorf("expected persisted revision 1, got %+v", resp)
	}
}

func TestSaveResponse_StatusAdvanceFailureDoesNotFailSave(t *testing.T) {
	st := newMemStore()
	st.statusErr = errors.New("db hiccup")
	eng := New(st, &fakeTrigger{}, discard())

	scenarioID := st.addScenario(review.StatusPending)
	if _, err := eng.SaveResponse(context.Background(), input(scenarioID, uuid.New(), false)); err != nil {
		t.Fatalf("expected save to succeed despite status failure, got %v", err)
	}
}

func TestSaveResponse_SecondSaveSupersedes(t *testing.T) {
	st := newMemStore()
	trig := &fakeTrigger{}
	eng := New(st, trig, discard())
	ctx := context.Background()

	scenarioID := st.addScenario(review.StatusPending)
	expert := uuid.New()

	if _, err := eng.SaveResponse(ctx, input(scenarioID, expert, false)); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	second, err := eng.SaveResponse(ctx, input(scenarioID, expert, true))
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if second.Revision != 2 {
		t.Errorf("expected revision 2, got %d", second.Revision)
	}

	latest, err := eng.MyResponse(ctx, scenarioID, expert)
	if err != nil {
		t.Fatalf("MyResponse failed: %v", err)
	}
	if latest.Revision != 2 || !latest.IsComplete {
		t.Errorf("expected latest complete revision 2, got %+v", latest)
	}
}

func TestPeerReviewQueue_ArchivedScenarioHidden(t *testing.T) {
	st := newMemStore()
	eng := New(st, &fakeTrigger{}, discard())
	ctx := context.Background()

	scenarioID := st.addScenario(review.StatusPending)
	expertA := uuid.New()

	if _, err := eng.SaveResponse(ctx, input(scenarioID, expertA, true)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	st.scenarios[scenarioID].Status = review.StatusArchived

	queue, err := eng.PeerReviewQueue(ctx, uuid.New())
	if err != nil {
		t.Fatalf("PeerReviewQueue failed: %v", err)
	}
	if len(queue) != 0 {
		t.Errorf("archived scenario should not surface, got %v", queue)
	}
}

func TestReviewProgress(t *testing.T) {
	st := newMemStore()
	eng := New(st, &fakeTrigger{}, discard())
	ctx := context.Background()

	scenarioID := st.addScenario(review.StatusPending)
	if _, err := eng.SaveResponse(ctx, input(scenarioID, uuid.New(), true)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := eng.SaveResponse(ctx, input(scenarioID, uuid.New(), true)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	progress, err := eng.ReviewProgress(ctx)
	if err != nil {
		t.Fatalf("ReviewProgress failed: %v", err)
	}
	if progress[scenarioID] != 2 {
		t.Errorf("expected 2 experts, got %d", progress[scenarioID])
	}
}
