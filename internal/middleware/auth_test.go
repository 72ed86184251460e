package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/aula/internal/auth"
	"github.com/google/uuid"
)

func newTestAuth() (*AuthMiddleware, *auth.TokenManager) {
	tokens := auth.NewTokenManager([]byte("test-secret"), "aula")
	return NewAuthMiddleware(tokens, quietLogger()), tokens
}

func TestWithUser_ValidToken(t *testing.T) {
	mw, tokens := newTestAuth()
	userID := uuid.New()
	raw, err := tokens.Issue(userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var got uuid.UUID
	var ok bool
	handler := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = auth.GetUserIDFromRequest(r)
	}))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok || got != userID {
		t.Errorf("expected user %s in context, got %s (ok=%v)", userID, got, ok)
	}
}

func TestWithUser_NoOrInvalidToken(t *testing.T) {
	mw, _ := newTestAuth()

	headers := []string{
		"",
		"Bearer",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
		"Bearer not-a-jwt",
	}

	for _, h := range headers {
		called := false
		handler := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			if _, ok := auth.GetUserIDFromRequest(r); ok {
				t.Errorf("header %q should not authenticate", h)
			}
		}))

		req := httptest.NewRequest("GET", "/api/usage", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if !called {
			t.Errorf("header %q: WithUser should always call next", h)
		}
	}
}

func TestRequireUser(t *testing.T) {
	mw, tokens := newTestAuth()
	stack := Stack(mw.WithUser, mw.RequireUser)

	t.Run("unauthenticated returns 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.Header.Set("Accept", "application/json")
		stack(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("authenticated passes", func(t *testing.T) {
		raw, _ := tokens.Issue(uuid.New(), time.Hour)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.Header.Set("Authorization", "bearer "+raw)
		stack(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

type failingVerifier struct{}

func (failingVerifier) Verify(string) (uuid.UUID, error) {
	return uuid.Nil, errors.New("nope")
}

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Stack(mark("a"), mark("b"), mark("c"))(okHandler()).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected [a b c], got %v", order)
	}

	// A verifier error never reaches the handler as a user.
	mw := NewAuthMiddleware(failingVerifier{}, quietLogger())
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	Stack(mw.WithUser, mw.RequireUser)(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
