// Package orchestration implements the run orchestration core: the run
// lifecycle state machine, the slot-limited admission controller, the
// idempotency guard for externally triggered mutations, and the validation
// gate that turns verdicts into transitions.
package orchestration

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// InvalidTransitionError indicates the requested edge is not in the
// transition table. It is never retried; the run is left unmutated.
type InvalidTransitionError struct {
	RunID uuid.UUID
	From  types.Status
	To    types.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for run %s: %s -> %s", e.RunID, e.From, e.To)
}

// ConcurrentModificationError indicates a versioned write lost a race with
// another writer. The caller must re-read the run and may retry.
type ConcurrentModificationError struct {
	RunID           uuid.UUID
	ExpectedVersion int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of run %s: expected version %d", e.RunID, e.ExpectedVersion)
}

// DuplicateInFlightError indicates an idempotency reservation lost the race
// and the winner did not publish a result within the wait window. The caller
// should retry later rather than re-execute.
type DuplicateInFlightError struct {
	Key string
}

func (e *DuplicateInFlightError) Error() string {
	return fmt.Sprintf("duplicate operation in flight for key %q", e.Key)
}

// DuplicateVerdictError indicates the run already holds a verdict of a kind
// that permits only one record per run.
type DuplicateVerdictError struct {
	RunID uuid.UUID
	Kind  string
}

func (e *DuplicateVerdictError) Error() string {
	return fmt.Sprintf("run %s already has a %s verdict", e.RunID, e.Kind)
}

// NotFoundError indicates the referenced run or validation does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// StorageError indicates the durable store was unreachable or failed.
// It is propagated unchanged; falling back to in-memory behavior would
// break the exactly-once and capacity invariants.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}
