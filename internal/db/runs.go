package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// -----------------------------------------------------------------------------
// Run Methods
// -----------------------------------------------------------------------------

const runColumns = `id, hypothesis_id, status, slot_assigned_at, cancel_requested, version, created_at, updated_at`

// CreateRun persists a new run record at version 0
func (db *DB) CreateRun(ctx context.Context, run *types.Run) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (id, hypothesis_id, status, slot_assigned_at, cancel_requested, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.HypothesisID, string(run.Status), run.SlotAssignedAt,
		run.CancelRequested, run.Version, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return &orchestration.StorageError{Op: "create run", Cause: err}
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &orchestration.NotFoundError{Kind: "run", ID: id.String()}
		}
		return nil, &orchestration.StorageError{Op: "get run", Cause: err}
	}
	return run, nil
}

// UpdateRun writes the run guarded by the stored version. The WHERE clause
// on version is the compare-and-swap: zero rows affected means either the
// run is gone or another writer won this version increment.
func (db *DB) UpdateRun(ctx context.Context, run *types.Run, expectedVersion int64) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, slot_assigned_at = $2, cancel_requested = $3, version = $4, updated_at = $5
		 WHERE id = $6 AND version = $7`,
		string(run.Status), run.SlotAssignedAt, run.CancelRequested,
		run.Version, run.UpdatedAt, run.ID, expectedVersion,
	)
	if err != nil {
		return &orchestration.StorageError{Op: "update run", Cause: err}
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, run.ID).Scan(&exists); err != nil {
		return &orchestration.StorageError{Op: "update run", Cause: err}
	}
	if !exists {
		return &orchestration.NotFoundError{Kind: "run", ID: run.ID.String()}
	}
	return &orchestration.ConcurrentModificationError{RunID: run.ID, ExpectedVersion: expectedVersion}
}

// SetCancelRequested sets the cancel flag while the run's status is in
// allowed. The flag set is status-guarded but unversioned; it is not a
// status mutation.
func (db *DB) SetCancelRequested(ctx context.Context, id uuid.UUID, allowed []types.Status) (*types.Run, error) {
	statuses := make([]string, 0, len(allowed))
	for _, status := range allowed {
		statuses = append(statuses, string(status))
	}

	run, err := scanRun(db.pool.QueryRow(ctx,
		`UPDATE runs
		 SET cancel_requested = TRUE, updated_at = NOW()
		 WHERE id = $1 AND status = ANY($2)
		 RETURNING `+runColumns,
		id, statuses,
	))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, &orchestration.StorageError{Op: "set cancel requested", Cause: err}
	}

	// Nothing matched: distinguish a missing run from a non-cancellable one.
	current, getErr := db.GetRun(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &orchestration.InvalidTransitionError{RunID: id, From: current.Status, To: types.StatusCancelled}
}

// ListQueuedOldestFirst returns up to limit queued runs in FIFO order
func (db *DB) ListQueuedOldestFirst(ctx context.Context, limit int) ([]types.Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+`
		 FROM runs
		 WHERE status = $1
		 ORDER BY created_at, id
		 LIMIT $2`,
		string(types.StatusQueued), limit,
	)
	if err != nil {
		return nil, &orchestration.StorageError{Op: "list queued runs", Cause: err}
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, &orchestration.StorageError{Op: "scan queued run", Cause: err}
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, &orchestration.StorageError{Op: "list queued runs", Cause: err}
	}
	return runs, nil
}

// CountRunning returns the number of runs currently occupying a slot
func (db *DB) CountRunning(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM runs WHERE status = $1 AND slot_assigned_at IS NOT NULL`,
		string(types.StatusRunning),
	).Scan(&count)
	if err != nil {
		return 0, &orchestration.StorageError{Op: "count running", Cause: err}
	}
	return count, nil
}

// ListRuns returns runs filtered by optional status, newest first
func (db *DB) ListRuns(ctx context.Context, status *types.Status, limit int) ([]types.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		if status != nil {
			query += ` LIMIT $2`
		} else {
			query += ` LIMIT $1`
		}
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &orchestration.StorageError{Op: "list runs", Cause: err}
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, &orchestration.StorageError{Op: "scan run", Cause: err}
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, &orchestration.StorageError{Op: "list runs", Cause: err}
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*types.Run, error) {
	var run types.Run
	var status string
	var slotAssignedAt *time.Time
	if err := row.Scan(&run.ID, &run.HypothesisID, &status, &slotAssignedAt,
		&run.CancelRequested, &run.Version, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Status = types.Status(status)
	run.SlotAssignedAt = slotAssignedAt
	return &run, nil
}
