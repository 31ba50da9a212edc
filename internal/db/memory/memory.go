// Package memory provides an in-memory implementation of the orchestration
// store interfaces, useful for unit tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// Store keeps runs, validations, and idempotency keys in process memory.
// The mutex stands in for the durable store's atomic primitives: every
// compare-and-swap and create-if-absent happens under it.
type Store struct {
	mu          sync.Mutex
	runs        map[uuid.UUID]*types.Run
	validations []types.Validation
	keys        map[string]*types.IdempotencyRecord
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		runs: make(map[uuid.UUID]*types.Run),
		keys: make(map[string]*types.IdempotencyRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's time source. Tests use it to control key
// expiry without sleeping.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreateRun persists a new run.
func (s *Store) CreateRun(_ context.Context, run *types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// GetRun returns a copy of the stored run.
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, &orchestration.NotFoundError{Kind: "run", ID: id.String()}
	}
	return run.Clone(), nil
}

// UpdateRun writes the run if the stored version matches expectedVersion.
func (s *Store) UpdateRun(_ context.Context, run *types.Run, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return &orchestration.NotFoundError{Kind: "run", ID: run.ID.String()}
	}
	if stored.Version != expectedVersion {
		return &orchestration.ConcurrentModificationError{RunID: run.ID, ExpectedVersion: expectedVersion}
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// SetCancelRequested sets the cancel flag while the run is in an allowed
// status. The version is left untouched.
func (s *Store) SetCancelRequested(_ context.Context, id uuid.UUID, allowed []types.Status) (*types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, &orchestration.NotFoundError{Kind: "run", ID: id.String()}
	}
	permitted := false
	for _, status := range allowed {
		if run.Status == status {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, &orchestration.InvalidTransitionError{RunID: id, From: run.Status, To: types.StatusCancelled}
	}
	run.CancelRequested = true
	run.UpdatedAt = s.now()
	return run.Clone(), nil
}

// ListQueuedOldestFirst returns up to limit queued runs, oldest first.
func (s *Store) ListQueuedOldestFirst(_ context.Context, limit int) ([]types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := make([]types.Run, 0)
	for _, run := range s.runs {
		if run.Status == types.StatusQueued {
			queued = append(queued, *run.Clone())
		}
	}
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].ID.String() < queued[j].ID.String()
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	if limit > 0 && len(queued) > limit {
		queued = queued[:limit]
	}
	return queued, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Store) ListRuns(_ context.Context, status *types.Status, limit int) ([]types.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Run, 0)
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, *run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountRunning returns the number of runs occupying a slot.
func (s *Store) CountRunning(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, run := range s.runs {
		if run.Status == types.StatusRunning && run.SlotAssignedAt != nil {
			count++
		}
	}
	return count, nil
}

// CreateValidation appends a validation record. A run holds at most one auto
// verdict; human verdicts may repeat.
func (s *Store) CreateValidation(_ context.Context, v *types.Validation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Kind == types.ValidationKindAuto {
		for _, existing := range s.validations {
			if existing.RunID == v.RunID && existing.Kind == types.ValidationKindAuto {
				return &orchestration.DuplicateVerdictError{RunID: v.RunID, Kind: v.Kind}
			}
		}
	}
	s.validations = append(s.validations, *v)
	return nil
}

// ListValidations returns all validation records for a run, oldest first.
func (s *Store) ListValidations(_ context.Context, runID uuid.UUID) ([]types.Validation, error) {
	return s.Validations(runID), nil
}

// Validations returns a snapshot of all validation records for a run.
func (s *Store) Validations(runID uuid.UUID) []types.Validation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Validation, 0)
	for _, v := range s.validations {
		if v.RunID == runID {
			out = append(out, v)
		}
	}
	return out
}

// ReserveKey creates a pending record for key unless a live one exists.
func (s *Store) ReserveKey(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if record, ok := s.keys[key]; ok && record.ExpiresAt.After(now) {
		return false, nil
	}
	s.keys[key] = &types.IdempotencyRecord{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

// CompleteKey stores the result for a reserved key.
func (s *Store) CompleteKey(_ context.Context, key string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.keys[key]
	if !ok {
		return &orchestration.NotFoundError{Kind: "idempotency key", ID: key}
	}
	record.Result = append([]byte(nil), result...)
	record.Completed = true
	return nil
}

// ReleaseKey drops a pending reservation; completed records stay.
func (s *Store) ReleaseKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.keys[key]; ok && !record.Completed {
		delete(s.keys, key)
	}
	return nil
}

// GetKey returns the live record for key, or nil when absent or expired.
func (s *Store) GetKey(_ context.Context, key string) (*types.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.keys[key]
	if !ok || !record.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	out := *record
	out.Result = append([]byte(nil), record.Result...)
	return &out, nil
}
