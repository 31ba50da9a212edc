// Package types defines the shared domain types for the run orchestration core.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run. The set is closed; transitions
// between statuses are governed by the orchestration transition table.
type Status string

// Run status constants
const (
	StatusQueued             Status = "queued"
	StatusRunning            Status = "running"
	StatusAnalyzing          Status = "analyzing"
	StatusAwaitingValidation Status = "awaiting_validation"
	StatusHumanValidated     Status = "human_validated"
	StatusFailed             Status = "failed"
	StatusWriteup            Status = "writeup"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// AllStatuses lists every defined run status.
var AllStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusAnalyzing,
	StatusAwaitingValidation,
	StatusHumanValidated,
	StatusFailed,
	StatusWriteup,
	StatusCompleted,
	StatusCancelled,
}

// IsTerminal reports whether the status is terminal. Terminal runs are
// retained for audit and never mutated again, with the single exception of
// the failed -> writeup retry edge.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is one of the defined constants.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Run represents one execution of the research pipeline for a hypothesis.
type Run struct {
	ID              uuid.UUID  `json:"id"`
	HypothesisID    uuid.UUID  `json:"hypothesis_id"`
	Status          Status     `json:"status"`
	SlotAssignedAt  *time.Time `json:"slot_assigned_at,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the run.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	if r.SlotAssignedAt != nil {
		at := *r.SlotAssignedAt
		out.SlotAssignedAt = &at
	}
	return &out
}
