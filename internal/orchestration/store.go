package orchestration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// RunStore is the durable store for runs. All coordination across concurrent
// callers (and across processes) goes through its atomic primitives: the
// versioned update and the status-guarded flag set. Implementations must
// return *NotFoundError for missing runs and *ConcurrentModificationError
// for version mismatches, wrapping any other failure in *StorageError.
type RunStore interface {
	// CreateRun persists a new run at version 0.
	CreateRun(ctx context.Context, run *types.Run) error

	// GetRun returns the current stored run.
	GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error)

	// UpdateRun writes the run if and only if the stored version equals
	// expectedVersion (compare-and-swap). run.Version carries the new value.
	UpdateRun(ctx context.Context, run *types.Run, expectedVersion int64) error

	// SetCancelRequested sets the cancel flag if the run's current status is
	// in allowed. It does not bump the version; the flag is not a status
	// mutation. Returns the updated run.
	SetCancelRequested(ctx context.Context, id uuid.UUID, allowed []types.Status) (*types.Run, error)

	// ListQueuedOldestFirst returns up to limit queued runs ordered by
	// creation time ascending.
	ListQueuedOldestFirst(ctx context.Context, limit int) ([]types.Run, error)

	// CountRunning returns the number of runs currently occupying a slot.
	CountRunning(ctx context.Context) (int, error)

	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *types.Status, limit int) ([]types.Run, error)
}

// ValidationStore persists append-only validation records.
type ValidationStore interface {
	CreateValidation(ctx context.Context, v *types.Validation) error

	// ListValidations returns all records for a run, oldest first.
	ListValidations(ctx context.Context, runID uuid.UUID) ([]types.Validation, error)
}

// KeyStore provides the idempotency key-value operations with TTL and
// create-if-absent semantics.
type KeyStore interface {
	// ReserveKey atomically creates a pending record for key unless a live
	// one already exists. Returns true when this caller won the reservation.
	// An expired record does not block a new reservation.
	ReserveKey(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// CompleteKey stores the result for a previously reserved key.
	CompleteKey(ctx context.Context, key string, result []byte) error

	// GetKey returns the live record for key, or nil when absent or expired.
	GetKey(ctx context.Context, key string) (*types.IdempotencyRecord, error)

	// ReleaseKey deletes a pending, uncompleted reservation for key. A
	// completed record is left intact.
	ReleaseKey(ctx context.Context, key string) error
}

// Store bundles the persistence collaborators the core consumes.
type Store interface {
	RunStore
	ValidationStore
	KeyStore
}
