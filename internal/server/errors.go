// Package server provides the HTTP REST API for the run orchestrator.
package server

import (
	"errors"
	"net/http"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
)

// HTTPStatus returns the appropriate HTTP status code for a core error.
// Each outcome of the orchestration taxonomy maps to a distinct status so
// callers can tell a conflict (retryable with fresh state) from a bad edge
// (never retryable) from a store outage.
func HTTPStatus(err error) int {
	var invalid *orchestration.InvalidTransitionError
	var conflict *orchestration.ConcurrentModificationError
	var duplicate *orchestration.DuplicateInFlightError
	var verdict *orchestration.DuplicateVerdictError
	var notFound *orchestration.NotFoundError
	var storage *orchestration.StorageError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &verdict):
		return http.StatusConflict
	case errors.As(err, &duplicate):
		return http.StatusTooManyRequests
	case errors.As(err, &storage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
