package server

import (
	"encoding/json"
	"net/http"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/server/middleware"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// handleSubmitValidation records a verdict for a run. The reviewer identity
// comes from the validated token, never from the payload. A passing human
// verdict advances the run; everything else is record-only.
func (s *Server) handleSubmitValidation(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}

	reviewerID, err := middleware.GetReviewerID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req types.SubmitValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	validation, err := s.orchestrator.SubmitValidation(r.Context(), orchestration.VerdictInput{
		RunID:           runID,
		Kind:            req.Kind,
		Verdict:         req.Verdict,
		Notes:           req.Notes,
		ReviewerID:      reviewerID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, validation)
}

// handleListValidations returns the verdict history for a run, oldest first
func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	validations, err := s.orchestrator.ListValidations(r.Context(), runID)
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	if validations == nil {
		validations = []types.Validation{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"validations": validations, "count": len(validations)})
}
