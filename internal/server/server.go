// Package server provides the HTTP REST API for the run orchestrator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/server/middleware"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// Orchestrator is the slice of the orchestration service the HTTP surface
// calls into.
type Orchestrator interface {
	Submit(ctx context.Context, hypothesisID uuid.UUID) (*types.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error)
	Cancel(ctx context.Context, runID uuid.UUID) (*types.Run, error)
	RetryWriteup(ctx context.Context, runID uuid.UUID) (*types.Run, error)
	SubmitValidation(ctx context.Context, input orchestration.VerdictInput) (*types.Validation, error)
	ListValidations(ctx context.Context, runID uuid.UUID) ([]types.Validation, error)
	ListRuns(ctx context.Context, status *types.Status, limit int) ([]types.Run, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	orchestrator Orchestrator
	jwtService   *JWTService
}

// Config holds server configuration
type Config struct {
	Port int
}

// New creates a new server instance
func New(cfg Config, orchestrator Orchestrator, jwtService *JWTService) *Server {
	s := &Server{
		orchestrator: orchestrator,
		jwtService:   jwtService,
	}

	requireReviewer := middleware.AuthMiddleware(jwtService.AsTokenValidator())

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Run lifecycle endpoints
	mux.HandleFunc("POST /runs", s.handleSubmitRun)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)
	mux.HandleFunc("POST /runs/{id}/retry-writeup", s.handleRetryWriteup)

	// Verdict submission requires an authenticated reviewer
	mux.HandleFunc("GET /runs/{id}/validations", s.handleListValidations)
	mux.Handle("POST /runs/{id}/validations", requireReviewer(http.HandlerFunc(s.handleSubmitValidation)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// coreErrorResponse maps a core error onto the wire
func (s *Server) coreErrorResponse(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}
