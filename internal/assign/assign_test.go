package assign

import (
	"testing"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/review"
)

func complete(scenario, expert uuid.UUID) review.Response {
	return review.Response{ScenarioID: scenario, ExpertID: expert, IsComplete: true}
}

func TestSecondReviewCandidates(t *testing.T) {
	expertA := uuid.New()
	expertB := uuid.New()
	expertC := uuid.New()

	s1 := uuid.New() // completed by A only
	s2 := uuid.New() // completed by A and B
	s3 := uuid.New() // completed by B only
	// s4 has no complete responses at all
	s4 := uuid.New()
	_ = s4

	responses := []review.Response{
		complete(s1, expertA),
		complete(s2, expertA),
		complete(s2, expertB),
		complete(s3, expertB),
	}

	tests := []struct {
		name   string
		expert uuid.UUID
		want   map[uuid.UUID]bool
	}{
		{"expert A skips own scenario", expertA, map[uuid.UUID]bool{s3: true}},
		{"expert B skips own scenario", expertB, map[uuid.UUID]bool{s1: true}},
		{"expert C sees both singles", expertC, map[uuid.UUID]bool{s1: true, s3: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SecondReviewCandidates(responses, tt.expert)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d candidates, got %d: %v", len(tt.want), len(got), got)
			}
			for _, id := range got {
				if !tt.want[id] {
					t.Errorf("unexpected candidate %s", id)
				}
			}
		})
	}
}

func TestSecondReviewCandidates_SecondCompletionRemovesScenario(t *testing.T) {
	expertA := uuid.New()
	expertB := uuid.New()
	expertC := uuid.New()
	s := uuid.New()

	one := []review.Response{complete(s, expertA)}
	if got := SecondReviewCandidates(one, expertB); len(got) != 1 || got[0] != s {
		t.Fatalf("expected scenario surfaced to B after first completion, got %v", got)
	}

	two := append(one, complete(s, expertB))
	for _, e := range []uuid.UUID{expertA, expertB, expertC} {
		if got := SecondReviewCandidates(two, e); len(got) != 0 {
			t.Errorf("expected empty queue for %s after second completion, got %v", e, got)
		}
	}
}

func TestSecondReviewCandidates_DraftsDoNotCount(t *testing.T) {
	expertA := uuid.New()
	expertB := uuid.New()
	s := uuid.New()

	responses := []review.Response{
		{ScenarioID: s, ExpertID: expertA, IsComplete: false},
	}
	if got := SecondReviewCandidates(responses, expertB); len(got) != 0 {
		t.Errorf("draft-only scenario should surface to nobody, got %v", got)
	}
}

func TestSecondReviewCandidates_RevisionsAreOneExpert(t *testing.T) {
	expertA := uuid.New()
	expertB := uuid.New()
	s := uuid.New()

	// Two complete revisions by the same expert are still one opinion.
	responses := []review.Response{
		{ScenarioID: s, ExpertID: expertA, Revision: 1, IsComplete: true},
		{ScenarioID: s, ExpertID: expertA, Revision: 2, IsComplete: true},
	}
	got := SecondReviewCandidates(responses, expertB)
	if len(got) != 1 || got[0] != s {
		t.Fatalf("expected scenario to still need a second opinion, got %v", got)
	}
	if got := SecondReviewCandidates(responses, expertA); len(got) != 0 {
		t.Errorf("expected nothing for the original expert, got %v", got)
	}
}

func TestReviewCounts(t *testing.T) {
	expertA := uuid.New()
	expertB := uuid.New()
	s1 := uuid.New()
	s2 := uuid.New()

	responses := []review.Response{
		complete(s1, expertA),
		complete(s1, expertB),
		complete(s2, expertB),
	}
	counts := ReviewCounts(responses)
	if counts[s1] != 2 {
		t.Errorf("expected 2 experts on s1, got %d", counts[s1])
	}
	if counts[s2] != 1 {
		t.Errorf("expected 1 expert on s2, got %d", counts[s2])
	}
}
