// Package scheduler runs the periodic admission loop that promotes queued
// runs into free concurrency slots.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// Admitter is the slice of the orchestration service the scheduler needs.
type Admitter interface {
	AdmitNext(ctx context.Context) (*types.Run, error)
}

// Loop polls the admission controller at a fixed interval. Each tick drains
// admissions until the controller reports no capacity or an empty queue, so
// freed slots are refilled within one interval. Multiple loops (across
// processes) are safe to run concurrently; the store's versioned transition
// keeps the ceiling intact.
type Loop struct {
	admitter Admitter
	interval time.Duration
}

// NewLoop creates a scheduler loop.
func NewLoop(admitter Admitter, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Loop{admitter: admitter, interval: interval}
}

// Run polls until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.Tick(ctx); err != nil {
			// Transient store failures should not kill the loop.
			log.Printf("admission tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick drains admissions once.
func (l *Loop) Tick(ctx context.Context) error {
	for {
		admitted, err := l.admitter.AdmitNext(ctx)
		if err != nil {
			return err
		}
		if admitted == nil {
			return nil
		}
		log.Printf("admitted run %s (hypothesis %s)", admitted.ID, admitted.HypothesisID)
	}
}
