package review

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"pending to in_review", StatusPending, StatusInReview, false},
		{"in_review to consensus", StatusInReview, StatusConsensusReached, false},
		{"in_review to disputed", StatusInReview, StatusDisputed, false},
		{"in_review to needs_discussion", StatusInReview, StatusNeedsDiscussion, false},
		{"disputed to consensus on re-run", StatusDisputed, StatusConsensusReached, false},
		{"needs_discussion to disputed", StatusNeedsDiscussion, StatusDisputed, false},
		{"same status is a no-op", StatusInReview, StatusInReview, false},
		{"archive from pending", StatusPending, StatusArchived, false},
		{"archive from consensus", StatusConsensusReached, StatusArchived, false},
		{"back to pending rejected", StatusInReview, StatusPending, true},
		{"consensus back to in_review rejected", StatusConsensusReached, StatusInReview, true},
		{"disputed back to pending rejected", StatusDisputed, StatusPending, true},
		{"leaving archived rejected", StatusArchived, StatusInReview, true},
		{"unknown target rejected", StatusPending, Status("on_hold"), true},
		{"unknown source rejected", Status("bogus"), StatusInReview, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %s -> %s, got nil", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %s -> %s: %v", tt.from, tt.to, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{
		StatusPending, StatusInReview, StatusConsensusReached,
		StatusDisputed, StatusNeedsDiscussion, StatusArchived,
	} {
		if !ValidStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if ValidStatus(Status("resolved")) {
		t.Error("expected 'resolved' to be invalid")
	}
}
