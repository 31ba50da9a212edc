package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// -----------------------------------------------------------------------------
// Idempotency Key Methods
// -----------------------------------------------------------------------------

// ReserveKey atomically creates a pending record for key unless a live one
// exists. The ON CONFLICT DO NOTHING insert is the create-if-absent gate:
// exactly one concurrent caller observes an affected row.
func (db *DB) ReserveKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// Expired records do not block a fresh reservation.
	if _, err := db.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND expires_at <= NOW()`, key); err != nil {
		return false, &orchestration.StorageError{Op: "expire idempotency key", Cause: err}
	}

	tag, err := db.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, completed, created_at, expires_at)
		 VALUES ($1, FALSE, NOW(), NOW() + $2)
		 ON CONFLICT (key) DO NOTHING`,
		key, ttl,
	)
	if err != nil {
		return false, &orchestration.StorageError{Op: "reserve idempotency key", Cause: err}
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteKey stores the result of the first successful execution under key.
func (db *DB) CompleteKey(ctx context.Context, key string, result []byte) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE idempotency_keys SET result = $1, completed = TRUE WHERE key = $2`,
		result, key,
	)
	if err != nil {
		return &orchestration.StorageError{Op: "complete idempotency key", Cause: err}
	}
	if tag.RowsAffected() == 0 {
		return &orchestration.NotFoundError{Kind: "idempotency key", ID: key}
	}
	return nil
}

// ReleaseKey drops a pending reservation so a retry can reserve the key
// again. Completed records are never touched.
func (db *DB) ReleaseKey(ctx context.Context, key string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND completed = FALSE`,
		key,
	)
	if err != nil {
		return &orchestration.StorageError{Op: "release idempotency key", Cause: err}
	}
	return nil
}

// GetKey returns the live record for key, or nil when absent or expired.
func (db *DB) GetKey(ctx context.Context, key string) (*types.IdempotencyRecord, error) {
	var record types.IdempotencyRecord
	err := db.pool.QueryRow(ctx,
		`SELECT key, result, completed, created_at, expires_at
		 FROM idempotency_keys
		 WHERE key = $1 AND expires_at > NOW()`,
		key,
	).Scan(&record.Key, &record.Result, &record.Completed, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &orchestration.StorageError{Op: "get idempotency key", Cause: err}
	}
	return &record, nil
}
