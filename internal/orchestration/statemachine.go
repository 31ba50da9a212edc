package orchestration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// TransitionTable maps each status to the set of statuses it may move to.
// The table is data, not code branches: the machine is generic over whatever
// graph it is given, and tests can assert each edge exhaustively.
type TransitionTable map[types.Status][]types.Status

// DefaultTransitions is the canonical run lifecycle graph. Any state with an
// edge to cancelled is considered cancellable; failed's only outgoing edge
// is the writeup retry.
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		types.StatusQueued:             {types.StatusRunning, types.StatusCancelled},
		types.StatusRunning:            {types.StatusAnalyzing, types.StatusFailed, types.StatusCancelled},
		types.StatusAnalyzing:          {types.StatusAwaitingValidation, types.StatusFailed, types.StatusCancelled},
		types.StatusAwaitingValidation: {types.StatusHumanValidated, types.StatusFailed, types.StatusCancelled},
		types.StatusHumanValidated:     {types.StatusWriteup, types.StatusCancelled},
		types.StatusWriteup:            {types.StatusCompleted, types.StatusFailed, types.StatusCancelled},
		types.StatusFailed:             {types.StatusWriteup},
		types.StatusCompleted:          nil,
		types.StatusCancelled:          nil,
	}
}

// Allows reports whether the table contains the edge from -> to.
func (t TransitionTable) Allows(from, to types.Status) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether the cancel-requested flag may be set while a
// run is in the given status.
func (t TransitionTable) Cancellable(from types.Status) bool {
	return t.Allows(from, types.StatusCancelled)
}

// Merge adds extra edges to the table, skipping duplicates. It supports
// deployment-specific retry edges without touching the core algorithm.
func (t TransitionTable) Merge(extra TransitionTable) TransitionTable {
	for from, tos := range extra {
		for _, to := range tos {
			if !t.Allows(from, to) {
				t[from] = append(t[from], to)
			}
		}
	}
	return t
}

// StateMachine validates and applies lifecycle transitions for runs. All
// writes go through the store's compare-and-swap update, so two concurrent
// transition requests for the same run resolve to exactly one winner per
// version increment.
type StateMachine struct {
	store RunStore
	table TransitionTable
	sink  Sink
	now   func() time.Time
}

// NewStateMachine creates a state machine over the given table. A nil sink
// discards events.
func NewStateMachine(store RunStore, table TransitionTable, sink Sink) *StateMachine {
	if table == nil {
		table = DefaultTransitions()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &StateMachine{
		store: store,
		table: table,
		sink:  sink,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Table returns the transition table the machine was built with.
func (m *StateMachine) Table() TransitionTable {
	return m.table
}

// Transition moves the run from fromExpected to to, guarded by
// expectedVersion. On success it returns the updated run and emits a
// transition event. Entering running stamps the slot assignment; leaving
// running clears it, which is what frees a concurrency slot.
func (m *StateMachine) Transition(ctx context.Context, runID uuid.UUID, fromExpected, to types.Status, expectedVersion int64) (*types.Run, error) {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != fromExpected || !m.table.Allows(run.Status, to) {
		return nil, &InvalidTransitionError{RunID: runID, From: run.Status, To: to}
	}
	if run.Version != expectedVersion {
		return nil, &ConcurrentModificationError{RunID: runID, ExpectedVersion: expectedVersion}
	}

	now := m.now()
	updated := run.Clone()
	updated.Status = to
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = now
	if to == types.StatusRunning {
		updated.SlotAssignedAt = &now
	} else if run.Status == types.StatusRunning {
		updated.SlotAssignedAt = nil
	}

	if err := m.store.UpdateRun(ctx, updated, expectedVersion); err != nil {
		return nil, err
	}

	m.sink.Emit(TransitionEvent{RunID: runID, From: run.Status, To: to, At: now})
	return updated, nil
}
