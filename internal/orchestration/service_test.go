package orchestration_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-labs/hypothesis-runner/internal/db/memory"
	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

func newService(store *memory.Store, slots int) *orchestration.Service {
	return orchestration.NewService(store, orchestration.ServiceConfig{TotalSlots: slots})
}

func TestSubmit_CreatesQueuedRunAtVersionZero(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)
	hypothesis := uuid.New()

	run, err := svc.Submit(context.Background(), hypothesis)
	require.NoError(t, err)
	assert.Equal(t, hypothesis, run.HypothesisID)
	assert.Equal(t, types.StatusQueued, run.Status)
	assert.Equal(t, int64(0), run.Version)
	assert.Nil(t, run.SlotAssignedAt)
	assert.False(t, run.CancelRequested)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)
}

func TestGetRun_Missing(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	_, err := svc.GetRun(context.Background(), uuid.New())
	var notFound *orchestration.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "run", notFound.Kind)
}

func TestCancel_QueuedRunCancelsSynchronously(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	run, err := svc.Submit(context.Background(), uuid.New())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)
	assert.True(t, cancelled.CancelRequested)
	assert.Equal(t, run.Version+1, cancelled.Version)

	// A cancelled run never gets admitted.
	admitted, err := svc.AdmitNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, admitted)
}

func TestCancel_RunningRunSetsFlagOnly(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	run, err := svc.Submit(context.Background(), uuid.New())
	require.NoError(t, err)
	admitted, err := svc.AdmitNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, admitted)

	flagged, err := svc.Cancel(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, flagged.Status)
	assert.True(t, flagged.CancelRequested)
	// Setting the flag is not a status mutation.
	assert.Equal(t, admitted.Version, flagged.Version)
	assert.NotNil(t, flagged.SlotAssignedAt)
}

func TestCancel_TerminalRunIsRejected(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	run, err := svc.Submit(context.Background(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), run.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), run.ID)
	var invalid *orchestration.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, types.StatusCancelled, invalid.From)
}

func TestCancel_MissingRun(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	_, err := svc.Cancel(context.Background(), uuid.New())
	var notFound *orchestration.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRetryWriteup_MovesFailedRunToWriteup(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)
	failed := seedRun(t, store, types.StatusFailed, 3)

	run, err := svc.RetryWriteup(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWriteup, run.Status)
	assert.Equal(t, int64(4), run.Version)
}

func TestRetryWriteup_DuplicateCallsApplyOnce(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)
	failed := seedRun(t, store, types.StatusFailed, 0)

	first, err := svc.RetryWriteup(context.Background(), failed.ID)
	require.NoError(t, err)

	// The second call inside the TTL window returns the stored outcome
	// instead of attempting the transition again.
	second, err := svc.RetryWriteup(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.Status, second.Status)

	stored, err := svc.GetRun(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRetryWriteup_NonFailedRunIsRejected(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)
	run := seedRun(t, store, types.StatusCompleted, 5)

	_, err := svc.RetryWriteup(context.Background(), run.ID)
	var invalid *orchestration.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, types.StatusCompleted, invalid.From)
}

func TestSubmitValidation_MissingRun(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	_, err := svc.SubmitValidation(context.Background(), orchestration.VerdictInput{
		RunID:   uuid.New(),
		Kind:    types.ValidationKindHuman,
		Verdict: types.VerdictPass,
	})
	var notFound *orchestration.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSubmitValidation_HumanPassFullPath(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)
	run := seedRun(t, store, types.StatusAwaitingValidation, 2)

	record, err := svc.SubmitValidation(context.Background(), orchestration.VerdictInput{
		RunID:           run.ID,
		Kind:            types.ValidationKindHuman,
		Verdict:         types.VerdictPass,
		ReviewerID:      uuid.New(),
		ExpectedVersion: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, run.ID, record.RunID)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusHumanValidated, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
}

func TestListValidations_HistoryOldestFirst(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)
	run := seedRun(t, store, types.StatusAwaitingValidation, 0)

	_, err := svc.SubmitValidation(context.Background(), orchestration.VerdictInput{
		RunID:   run.ID,
		Kind:    types.ValidationKindAuto,
		Verdict: types.VerdictPass,
	})
	require.NoError(t, err)
	_, err = svc.SubmitValidation(context.Background(), orchestration.VerdictInput{
		RunID:   run.ID,
		Kind:    types.ValidationKindHuman,
		Verdict: types.VerdictFail,
	})
	require.NoError(t, err)

	history, err := svc.ListValidations(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.ValidationKindAuto, history[0].Kind)
	assert.Equal(t, types.ValidationKindHuman, history[1].Kind)

	_, err = svc.ListValidations(context.Background(), uuid.New())
	var notFound *orchestration.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNewService_ExtraTransitionsAreMerged(t *testing.T) {
	store := memory.NewStore()
	svc := orchestration.NewService(store, orchestration.ServiceConfig{
		TotalSlots: 2,
		ExtraTransitions: orchestration.TransitionTable{
			types.StatusFailed: {types.StatusQueued},
		},
	})

	failed := seedRun(t, store, types.StatusFailed, 0)
	requeued, err := svc.Machine().Transition(context.Background(), failed.ID, types.StatusFailed, types.StatusQueued, 0)
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, requeued.Status)

	// The default edges still hold.
	assert.True(t, svc.Machine().Table().Allows(types.StatusFailed, types.StatusWriteup))
}

func TestListRuns_FilterAndOrder(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store, 2)

	first, err := svc.Submit(context.Background(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), first.ID)
	require.NoError(t, err)

	queued := types.StatusQueued
	runs, err := svc.ListRuns(context.Background(), &queued, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEqual(t, first.ID, runs[0].ID)

	all, err := svc.ListRuns(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
