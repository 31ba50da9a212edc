package orchestration

import (
	"context"
	"errors"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// candidateBatch bounds how many queued runs one admission attempt will
// consider before giving up under contention.
const candidateBatch = 16

// AdmissionController decides which queued runs may start, enforcing the
// global concurrency ceiling. Occupancy is always recomputed from stored
// state immediately before each attempt, and the versioned transition is the
// single atomic gate that awards a slot, so the ceiling holds even with
// multiple controller instances running against the same store.
type AdmissionController struct {
	store   RunStore
	machine *StateMachine
	slots   int
}

// NewAdmissionController creates a controller with the given slot ceiling.
func NewAdmissionController(store RunStore, machine *StateMachine, totalSlots int) *AdmissionController {
	return &AdmissionController{store: store, machine: machine, slots: totalSlots}
}

// TotalSlots returns the configured concurrency ceiling.
func (c *AdmissionController) TotalSlots() int {
	return c.slots
}

// TryAdmit promotes the oldest queued run to running if a slot is free.
// It returns (nil, nil) when at capacity or when no run is queued; that is
// backpressure, not an error. When another controller instance races for the
// same candidate, the next-oldest one is tried instead, so admission makes
// progress under contention.
func (c *AdmissionController) TryAdmit(ctx context.Context) (*types.Run, error) {
	queued, err := c.store.ListQueuedOldestFirst(ctx, candidateBatch)
	if err != nil {
		return nil, err
	}

	for _, candidate := range queued {
		// Recompute occupancy before every attempt: a rival admitter may
		// have filled the last slot while this one was losing a candidate.
		occupied, err := c.store.CountRunning(ctx)
		if err != nil {
			return nil, err
		}
		if occupied >= c.slots {
			return nil, nil
		}

		admitted, err := c.machine.Transition(ctx, candidate.ID, types.StatusQueued, types.StatusRunning, candidate.Version)
		if err == nil {
			return admitted, nil
		}

		var conflict *ConcurrentModificationError
		var invalid *InvalidTransitionError
		if errors.As(err, &conflict) || errors.As(err, &invalid) {
			// Lost the candidate to another admitter or to a cancel; move on.
			continue
		}
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			continue
		}
		return nil, err
	}
	return nil, nil
}
