package review

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change would move a
// scenario backwards in its lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// statusRank orders the lifecycle. Transitions may only hold rank or move
// forward; the three consensus outcomes share a rank so a re-run can move a
// scenario between them (disputed to consensus_reached and so on).
var statusRank = map[Status]int{
	StatusPending:          0,
	StatusInReview:         1,
	StatusConsensusReached: 2,
	StatusDisputed:         2,
	StatusNeedsDiscussion:  2,
	StatusArchived:         3,
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := statusRank[s]
	return ok
}

// ValidateTransition checks a proposed status change. Archived is reachable
// from any state and terminal; everything else is forward-only.
func ValidateTransition(from, to Status) error {
	if !ValidStatus(from) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from == StatusArchived {
		return fmt.Errorf("%w: scenario is archived", ErrInvalidTransition)
	}
	if to == StatusArchived {
		return nil
	}
	if from == to {
		return nil
	}
	if statusRank[to] < statusRank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	// Same rank: only the outcome trio may move laterally.
	if statusRank[to] == statusRank[from] && statusRank[to] != 2 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidDifficulty reports whether d is one of the editorial difficulty tags.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyCommon, DifficultyEdgeCase, DifficultyExtreme:
		return true
	}
	return false
}
