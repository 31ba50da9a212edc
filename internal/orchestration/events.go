package orchestration

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// TransitionEvent describes one accepted lifecycle transition.
type TransitionEvent struct {
	RunID uuid.UUID    `json:"run_id"`
	From  types.Status `json:"from"`
	To    types.Status `json:"to"`
	At    time.Time    `json:"at"`
}

// Sink consumes transition events. Emission is fire-and-forget: a sink must
// never block or fail a transition.
type Sink interface {
	Emit(event TransitionEvent)
}

// LogSink writes transition events to the process log.
type LogSink struct{}

// Emit logs the event.
func (LogSink) Emit(event TransitionEvent) {
	log.Printf("run %s: %s -> %s", event.RunID, event.From, event.To)
}

// NopSink discards all events.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(TransitionEvent) {}
