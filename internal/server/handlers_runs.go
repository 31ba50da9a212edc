package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// defaultListLimit bounds unpaginated run listings.
const defaultListLimit = 100

// handleSubmitRun creates a new queued run for a hypothesis
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "hypothesis_id must be a valid UUID")
		return
	}

	hypothesisID, err := uuid.Parse(req.HypothesisID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid hypothesis_id format")
		return
	}

	run, err := s.orchestrator.Submit(r.Context(), hypothesisID)
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, run)
}

// handleGetRun returns the current state of a run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	run, err := s.orchestrator.GetRun(r.Context(), runID)
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListRuns returns runs, optionally filtered by status
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var status *types.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		candidate := types.Status(raw)
		if !candidate.Valid() {
			s.errorResponse(w, http.StatusBadRequest, "Unknown status filter")
			return
		}
		status = &candidate
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := s.orchestrator.ListRuns(r.Context(), status, limit)
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleCancelRun records cancellation intent for a run. A queued run is
// cancelled immediately; otherwise only the flag is set and the executing
// worker stops cooperatively.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	run, err := s.orchestrator.Cancel(r.Context(), runID)
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleRetryWriteup retries the writeup phase of a failed run. Duplicate
// requests within the dedup window return the first attempt's result.
func (s *Server) handleRetryWriteup(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}
	run, err := s.orchestrator.RetryWriteup(r.Context(), runID)
	if err != nil {
		s.coreErrorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// parseRunID extracts and validates the {id} path segment
func (s *Server) parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run id format")
		return uuid.Nil, false
	}
	return runID, true
}
