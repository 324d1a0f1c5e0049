// Package consensus connects the engine to the external consensus and
// prior-extraction job. The engine never computes consensus itself: it
// publishes "ready" events after complete saves and applies the outcomes
// the job reports back.
package consensus

import (
	"log/slog"
	"time"

	"github.com/summitlab/crux/internal/bus"
)

// ReadyEvent is the fire-and-forget payload announcing that a scenario has
// a new complete response. The consensus job deduplicates repeat triggers
// for the same scenario on its side.
type ReadyEvent struct {
	ScenarioID  string `json:"scenario_id"`
	TriggeredBy string `json:"triggered_by"` // expert id of the completing save
	Timestamp   string `json:"timestamp"`
}

// Publisher is the slice of the bus client the trigger needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Trigger publishes consensus-ready events.
type Trigger struct {
	bus    Publisher
	logger *slog.Logger
}

func NewTrigger(bus Publisher, logger *slog.Logger) *Trigger {
	return &Trigger{bus: bus, logger: logger}
}

// Fire announces the scenario to the consensus job. Best-effort: callers
// must treat a returned error as log-only, never as a save failure.
func (t *Trigger) Fire(scenarioID, expertID string) error {
	err := t.bus.Publish(bus.SubjectConsensusReady, ReadyEvent{
		ScenarioID:  scenarioID,
		TriggeredBy: expertID,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.logger.Error("consensus trigger publish failed",
			"scenario_id", scenarioID,
			"error", err,
		)
		return err
	}
	t.logger.Info("consensus trigger fired", "scenario_id", scenarioID)
	return nil
}
