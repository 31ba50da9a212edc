package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

func validationRequest(t *testing.T, s *Server, runID uuid.UUID, reviewerID uuid.UUID, payload types.SubmitValidationRequest) *http.Request {
	t.Helper()
	token, err := s.jwtService.GenerateToken(reviewerID)
	require.NoError(t, err)

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/runs/"+runID.String()+"/validations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleSubmitValidation_HumanPassAdvancesRun(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 3)
	reviewer := uuid.New()

	req := validationRequest(t, s, run.ID, reviewer, types.SubmitValidationRequest{
		Kind:            types.ValidationKindHuman,
		Verdict:         types.VerdictPass,
		Notes:           "reproduced the effect",
		ExpectedVersion: 3,
	})
	w := serveRouted(s, req)

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, run.ID.String(), resp["run_id"])
	// The reviewer identity comes from the token, not the payload.
	assert.Equal(t, reviewer.String(), resp["created_by"])

	stored, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusHumanValidated, stored.Status)
	assert.Equal(t, int64(4), stored.Version)
}

func TestHandleSubmitValidation_AutoFailIsRecordOnly(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 0)

	req := validationRequest(t, s, run.ID, uuid.New(), types.SubmitValidationRequest{
		Kind:    types.ValidationKindAuto,
		Verdict: types.VerdictFail,
	})
	w := serveRouted(s, req)

	require.Equal(t, http.StatusCreated, w.Code)

	stored, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAwaitingValidation, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
	assert.Len(t, store.Validations(run.ID), 1)
}

func TestHandleSubmitValidation_StaleVersionConflict(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 2)

	req := validationRequest(t, s, run.ID, uuid.New(), types.SubmitValidationRequest{
		Kind:            types.ValidationKindHuman,
		Verdict:         types.VerdictPass,
		ExpectedVersion: 7,
	})
	w := serveRouted(s, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleSubmitValidation_RunNotFound(t *testing.T) {
	s, _ := setupTestServer(t)

	req := validationRequest(t, s, uuid.New(), uuid.New(), types.SubmitValidationRequest{
		Kind:    types.ValidationKindHuman,
		Verdict: types.VerdictPass,
	})
	w := serveRouted(s, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSubmitValidation_InvalidPayload(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 0)

	tests := []struct {
		name    string
		payload types.SubmitValidationRequest
	}{
		{"missing kind", types.SubmitValidationRequest{Verdict: types.VerdictPass}},
		{"unknown kind", types.SubmitValidationRequest{Kind: "manual", Verdict: types.VerdictPass}},
		{"unknown verdict", types.SubmitValidationRequest{Kind: types.ValidationKindHuman, Verdict: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validationRequest(t, s, run.ID, uuid.New(), tt.payload)
			w := serveRouted(s, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, store.Validations(run.ID))
}

func TestHandleSubmitValidation_SecondAutoVerdictConflicts(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 0)

	payload := types.SubmitValidationRequest{Kind: types.ValidationKindAuto, Verdict: types.VerdictPass}
	first := serveRouted(s, validationRequest(t, s, run.ID, uuid.New(), payload))
	require.Equal(t, http.StatusCreated, first.Code)

	second := serveRouted(s, validationRequest(t, s, run.ID, uuid.New(), payload))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Len(t, store.Validations(run.ID), 1)
}

func TestHandleListValidations(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 0)

	req := validationRequest(t, s, run.ID, uuid.New(), types.SubmitValidationRequest{
		Kind:    types.ValidationKindAuto,
		Verdict: types.VerdictPass,
	})
	require.Equal(t, http.StatusCreated, serveRouted(s, req).Code)

	// Reading the history needs no token.
	w := serveRouted(s, httptest.NewRequest(http.MethodGet, "/runs/"+run.ID.String()+"/validations", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, float64(1), resp["count"])
}

func TestHandleListValidations_RunNotFound(t *testing.T) {
	s, _ := setupTestServer(t)

	w := serveRouted(s, httptest.NewRequest(http.MethodGet, "/runs/"+uuid.New().String()+"/validations", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSubmitValidation_InvalidToken(t *testing.T) {
	s, store := setupTestServer(t)
	run := seedStoredRun(t, store, types.StatusAwaitingValidation, 0)

	body, _ := json.Marshal(types.SubmitValidationRequest{
		Kind:    types.ValidationKindHuman,
		Verdict: types.VerdictPass,
	})
	req := httptest.NewRequest(http.MethodPost, "/runs/"+run.ID.String()+"/validations", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w := serveRouted(s, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, store.Validations(run.ID))
}
