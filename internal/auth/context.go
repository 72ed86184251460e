// Package auth provides authentication context helpers and bearer tokens.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the key used to store the authenticated user ID in context.
	userContextKey contextKey = "user_id"
)

// GetUserID retrieves the authenticated user ID from the context.
//
// Usage:
//
//	userID, ok := auth.GetUserID(r.Context())
//	if !ok {
//	    // Handle unauthenticated request
//	}
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userContextKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetUserIDFromRequest is a convenience wrapper around GetUserID.
func GetUserIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	return GetUserID(r.Context())
}

// SetUserID stores a user ID in the context.
//
// This is typically called by authentication middleware after validating
// a bearer token.
func SetUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey, id)
}
