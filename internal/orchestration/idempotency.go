package orchestration

import (
	"context"
	"time"
)

// Backoff schedule for callers that lost an idempotency reservation and are
// waiting for the winner's result to appear.
const (
	waitInitialBackoff = 20 * time.Millisecond
	waitMaxAttempts    = 8
)

// Operation produces the serialized outcome of one logical mutating call.
type Operation func(ctx context.Context) ([]byte, error)

// IdempotencyGuard deduplicates state-mutating calls by key: exactly one
// execution of the operation per key per TTL window, no matter how many
// concurrent callers present the same key.
type IdempotencyGuard struct {
	keys    KeyStore
	backoff time.Duration
	retries int
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewIdempotencyGuard creates a guard over the given key store.
func NewIdempotencyGuard(keys KeyStore) *IdempotencyGuard {
	return &IdempotencyGuard{
		keys:    keys,
		backoff: waitInitialBackoff,
		retries: waitMaxAttempts,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs op at most once per key per TTL window.
//
// The first caller to reserve the key executes op, stores its result, and
// returns it. When op fails the reservation is released so a retry with the
// same key can execute again immediately instead of waiting out the TTL.
// Any caller that finds a completed record gets the stored result back
// without re-executing. A caller that loses the reservation race waits with
// bounded backoff for the winner's result; if the winner never publishes
// within the window, it returns *DuplicateInFlightError rather than risk a
// double execution.
func (g *IdempotencyGuard) Execute(ctx context.Context, key string, ttl time.Duration, op Operation) ([]byte, error) {
	record, err := g.keys.GetKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Completed {
		return record.Result, nil
	}

	if record == nil {
		won, err := g.keys.ReserveKey(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if won {
			result, err := op(ctx)
			if err != nil {
				// The guarded operation made no state change, so the
				// reservation can be dropped rather than held to TTL. If
				// the release itself fails, expiry still unblocks retries.
				_ = g.keys.ReleaseKey(ctx, key)
				return nil, err
			}
			if err := g.keys.CompleteKey(ctx, key, result); err != nil {
				return nil, err
			}
			return result, nil
		}
	}

	// Another caller holds the reservation; wait for its result.
	backoff := g.backoff
	for attempt := 0; attempt < g.retries; attempt++ {
		if err := g.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2

		record, err := g.keys.GetKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Completed {
			return record.Result, nil
		}
	}
	return nil, &DuplicateInFlightError{Key: key}
}
