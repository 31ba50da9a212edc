// Package middleware provides HTTP middleware for reviewer authentication.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// reviewerIDKey is the context key for storing the authenticated reviewer ID.
const reviewerIDKey ContextKey = "reviewerID"

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (ReviewerIDGetter, error)
}

// ReviewerIDGetter is an interface for extracting the reviewer ID from token claims.
type ReviewerIDGetter interface {
	GetReviewerID() uuid.UUID
}

// AuthMiddleware creates middleware that validates JWT tokens and adds the
// reviewer ID to the request context.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Parse Bearer token
			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Validate token
			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Add reviewer ID to request context
			ctx := context.WithValue(r.Context(), reviewerIDKey, claims.GetReviewerID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetReviewerID extracts the authenticated reviewer ID from the request context.
func GetReviewerID(r *http.Request) (uuid.UUID, error) {
	reviewerID, ok := r.Context().Value(reviewerIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("reviewer ID not found in request context")
	}
	return reviewerID, nil
}

// ReviewerIDKey returns the context key for the reviewer ID (for testing purposes).
func ReviewerIDKey() ContextKey {
	return reviewerIDKey
}
