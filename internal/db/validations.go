package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// uniqueViolation is the PostgreSQL error code for a unique index conflict.
const uniqueViolation = "23505"

// -----------------------------------------------------------------------------
// Validation Methods
// -----------------------------------------------------------------------------

// CreateValidation appends a validation record. Records are append-only and
// never mutated. The partial unique index on (run_id) WHERE kind = 'auto'
// enforces the single-auto-verdict rule at the store.
func (db *DB) CreateValidation(ctx context.Context, v *types.Validation) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO validations (id, run_id, kind, verdict, notes, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.RunID, v.Kind, v.Verdict, v.Notes, v.CreatedBy, v.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &orchestration.DuplicateVerdictError{RunID: v.RunID, Kind: v.Kind}
		}
		return &orchestration.StorageError{Op: "create validation", Cause: err}
	}
	return nil
}

// ListValidations returns all validation records for a run, oldest first
func (db *DB) ListValidations(ctx context.Context, runID uuid.UUID) ([]types.Validation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, kind, verdict, notes, created_by, created_at
		 FROM validations
		 WHERE run_id = $1
		 ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, &orchestration.StorageError{Op: "list validations", Cause: err}
	}
	defer rows.Close()

	var validations []types.Validation
	for rows.Next() {
		var v types.Validation
		if err := rows.Scan(&v.ID, &v.RunID, &v.Kind, &v.Verdict, &v.Notes, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, &orchestration.StorageError{Op: "scan validation", Cause: err}
		}
		validations = append(validations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &orchestration.StorageError{Op: "list validations", Cause: err}
	}
	return validations, nil
}
