package types

import (
	"time"

	"github.com/google/uuid"
)

// Validation kind constants
const (
	ValidationKindAuto  = "auto"
	ValidationKindHuman = "human"
)

// Verdict constants
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Validation is an append-only pass/fail judgment attached to a run.
// Records are never mutated; the evaluation keeps at most one auto verdict
// and the latest human verdict per run.
type Validation struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Kind      string    `json:"kind"`
	Verdict   string    `json:"verdict"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// IdempotencyRecord stores the outcome of the first execution of a keyed
// operation. A record is valid only until ExpiresAt; a repeated key after
// expiry is treated as a new operation.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Result    []byte    `json:"result,omitempty"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
