// Package middleware contains HTTP middleware for the Aula API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/aula/internal/auth"
	"github.com/DukeRupert/aula/internal/handler"
	"github.com/google/uuid"
)

// TokenVerifier turns a bearer token into a user ID.
type TokenVerifier interface {
	Verify(raw string) (uuid.UUID, error)
}

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware provides authentication middleware functionality.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser loads the user ID from an Authorization: Bearer header when one is
// present and valid. It always continues to the next handler.
//
// The user ID can be retrieved in handlers using:
//
//	userID, ok := auth.GetUserIDFromRequest(r)
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.verifier.Verify(raw)
		if err != nil {
			m.logger.Debug("rejected bearer token", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		noteUser(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(auth.SetUserID(r.Context(), userID)))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser returns 401 unless a user ID is present in the context.
//
// IMPORTANT: This middleware must be used AFTER WithUser in the middleware chain.
//
//	stack := Stack(authMw.WithUser, authMw.RequireUser)
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.GetUserID(r.Context()); !ok {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw.Handler, authMw.WithUser, authMw.RequireUser)
//	r.Handle("/api/generate", stack(generateHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ TokenVerifier                   = (*auth.TokenManager)(nil)
)
