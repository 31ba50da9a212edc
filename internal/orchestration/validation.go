package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// ValidationGate records verdicts and triggers the matching lifecycle
// transition. Records are append-only and are persisted regardless of
// whether the verdict moves the run forward.
type ValidationGate struct {
	store   ValidationStore
	machine *StateMachine
	now     func() time.Time
}

// NewValidationGate creates a gate over the given store and machine.
func NewValidationGate(store ValidationStore, machine *StateMachine) *ValidationGate {
	return &ValidationGate{
		store:   store,
		machine: machine,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// VerdictInput describes one verdict submission.
type VerdictInput struct {
	RunID           uuid.UUID
	Kind            string
	Verdict         string
	Notes           string
	ReviewerID      uuid.UUID
	ExpectedVersion int64
}

// ApplyVerdict persists the validation record and, for a passing human
// verdict, advances the run from awaiting_validation to human_validated.
// Failing verdicts are record-only: retrying the writeup is an explicit
// separate operation. Auto verdicts never trigger a transition; they gate
// downstream human review.
func (g *ValidationGate) ApplyVerdict(ctx context.Context, input VerdictInput) (*types.Validation, error) {
	if input.Kind != types.ValidationKindAuto && input.Kind != types.ValidationKindHuman {
		return nil, fmt.Errorf("invalid validation kind: %q", input.Kind)
	}
	if input.Verdict != types.VerdictPass && input.Verdict != types.VerdictFail {
		return nil, fmt.Errorf("invalid verdict: %q", input.Verdict)
	}

	record := &types.Validation{
		ID:        uuid.New(),
		RunID:     input.RunID,
		Kind:      input.Kind,
		Verdict:   input.Verdict,
		Notes:     input.Notes,
		CreatedBy: input.ReviewerID,
		CreatedAt: g.now(),
	}
	if err := g.store.CreateValidation(ctx, record); err != nil {
		return nil, err
	}

	if input.Kind == types.ValidationKindHuman && input.Verdict == types.VerdictPass {
		if _, err := g.machine.Transition(ctx, input.RunID, types.StatusAwaitingValidation, types.StatusHumanValidated, input.ExpectedVersion); err != nil {
			return nil, err
		}
	}
	return record, nil
}
