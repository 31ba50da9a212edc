package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// DefaultIdempotencyTTL bounds how long a retried operation key stays live.
const DefaultIdempotencyTTL = 5 * time.Minute

// Service is the facade the external surfaces (HTTP handlers, CLI, the
// admission scheduler) call into. It wires the state machine, admission
// controller, validation gate, and idempotency guard over one store.
type Service struct {
	store     Store
	machine   *StateMachine
	admission *AdmissionController
	gate      *ValidationGate
	guard     *IdempotencyGuard
	ttl       time.Duration
	now       func() time.Time
}

// ServiceConfig holds the tunables for building a Service.
type ServiceConfig struct {
	TotalSlots       int
	IdempotencyTTL   time.Duration
	ExtraTransitions TransitionTable
	Sink             Sink
}

// NewService builds the orchestration core over the given store.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.TotalSlots <= 0 {
		cfg.TotalSlots = 1
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}
	table := DefaultTransitions().Merge(cfg.ExtraTransitions)
	machine := NewStateMachine(store, table, cfg.Sink)
	return &Service{
		store:     store,
		machine:   machine,
		admission: NewAdmissionController(store, machine, cfg.TotalSlots),
		gate:      NewValidationGate(store, machine),
		guard:     NewIdempotencyGuard(store),
		ttl:       cfg.IdempotencyTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Machine exposes the state machine, mainly for tests and the scheduler.
func (s *Service) Machine() *StateMachine {
	return s.machine
}

// Submit creates a new queued run for the hypothesis at version 0.
func (s *Service) Submit(ctx context.Context, hypothesisID uuid.UUID) (*types.Run, error) {
	now := s.now()
	run := &types.Run{
		ID:           uuid.New(),
		HypothesisID: hypothesisID,
		Status:       types.StatusQueued,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun returns the current stored run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	return s.store.GetRun(ctx, id)
}

// Cancel records cancellation intent. The flag is only settable pre-terminal
// and never interrupts work by itself; the executing worker observes it
// cooperatively. A queued run additionally moves straight to cancelled,
// bypassing admission.
func (s *Service) Cancel(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	cancellable := make([]types.Status, 0, len(types.AllStatuses))
	for _, status := range types.AllStatuses {
		if s.machine.Table().Cancellable(status) {
			cancellable = append(cancellable, status)
		}
	}
	run, err := s.store.SetCancelRequested(ctx, runID, cancellable)
	if err != nil {
		return nil, err
	}
	if run.Status != types.StatusQueued {
		return run, nil
	}

	cancelled, err := s.machine.Transition(ctx, runID, types.StatusQueued, types.StatusCancelled, run.Version)
	if err == nil {
		return cancelled, nil
	}
	// The run left queued between the flag set and the transition; the flag
	// is recorded, which is all cancel promises for a non-queued run.
	var conflict *ConcurrentModificationError
	var invalid *InvalidTransitionError
	if errors.As(err, &conflict) || errors.As(err, &invalid) {
		return s.store.GetRun(ctx, runID)
	}
	return nil, err
}

// RetryWriteup moves a failed run back onto the writeup edge. The call is
// idempotency-guarded on the run ID so duplicate clicks and network retries
// within the TTL window apply the transition exactly once.
func (s *Service) RetryWriteup(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	key := retryWriteupKey(runID)
	payload, err := s.guard.Execute(ctx, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		updated, err := s.machine.Transition(ctx, runID, types.StatusFailed, types.StatusWriteup, run.Version)
		if err != nil {
			return nil, err
		}
		return json.Marshal(updated)
	})
	if err != nil {
		return nil, err
	}

	var run types.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("failed to decode stored retry result: %w", err)
	}
	return &run, nil
}

// ListValidations returns the verdict history for a run, oldest first.
func (s *Service) ListValidations(ctx context.Context, runID uuid.UUID) ([]types.Validation, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListValidations(ctx, runID)
}

// SubmitValidation records a verdict and applies any transition it gates.
func (s *Service) SubmitValidation(ctx context.Context, input VerdictInput) (*types.Validation, error) {
	if _, err := s.store.GetRun(ctx, input.RunID); err != nil {
		return nil, err
	}
	return s.gate.ApplyVerdict(ctx, input)
}

// AdmitNext promotes the oldest queued run if a slot is free. A nil run with
// a nil error means no admission happened (at capacity or queue empty).
func (s *Service) AdmitNext(ctx context.Context) (*types.Run, error) {
	return s.admission.TryAdmit(ctx)
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Service) ListRuns(ctx context.Context, status *types.Status, limit int) ([]types.Run, error) {
	return s.store.ListRuns(ctx, status, limit)
}

func retryWriteupKey(runID uuid.UUID) string {
	return runID.String() + ":retry-writeup"
}
