// Package assign derives peer-review work queues from the set of complete
// expert responses. Nothing here is persisted: the queue is recomputed from
// store state on every call, so staleness can only double-surface a
// scenario, never corrupt data.
package assign

import (
	"sort"

	"github.com/google/uuid"

	"github.com/summitlab/crux/internal/review"
)

// SecondReviewCandidates returns the scenario ids that need a second
// independent opinion from the given expert: exactly one distinct expert
// has completed the scenario, and it was not this one. Scenarios with zero
// complete responses have not started; scenarios with two or more already
// have their second opinion and belong to consensus from here.
func SecondReviewCandidates(completeResponses []review.Response, expertID uuid.UUID) []uuid.UUID {
	experts := expertsByScenario(completeResponses)

	var out []uuid.UUID
	for scenarioID, set := range experts {
		if len(set) != 1 {
			continue
		}
		if set[expertID] {
			continue
		}
		out = append(out, scenarioID)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ReviewCounts returns how many distinct experts completed each scenario.
// Used by dashboards to show elicitation progress.
func ReviewCounts(completeResponses []review.Response) map[uuid.UUID]int {
	experts := expertsByScenario(completeResponses)
	counts := make(map[uuid.UUID]int, len(experts))
	for scenarioID, set := range experts {
		counts[scenarioID] = len(set)
	}
	return counts
}

func expertsByScenario(responses []review.Response) map[uuid.UUID]map[uuid.UUID]bool {
	experts := map[uuid.UUID]map[uuid.UUID]bool{}
	for _, r := range responses {
		if !r.IsComplete {
			continue
		}
		set, ok := experts[r.ScenarioID]
		if !ok {
			set = map[uuid.UUID]bool{}
			experts[r.ScenarioID] = set
		}
		set[r.ExpertID] = true
	}
	return experts
}
