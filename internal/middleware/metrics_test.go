package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBasicAuthMiddleware(t *testing.T) {
	mw := NewBasicAuthMiddleware("metrics", "admin", "secret123")

	tests := []struct {
		name     string
		user     string
		pass     string
		setAuth  bool
		expected int
	}{
		{"valid credentials", "admin", "secret123", true, http.StatusOK},
		{"wrong password", "admin", "wrong", true, http.StatusUnauthorized},
		{"wrong user", "root", "secret123", true, http.StatusUnauthorized},
		{"no credentials", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/metrics", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			mw.Handler(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, rec.Code)
			}
			if tt.expected == http.StatusUnauthorized {
				if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="metrics"` {
					t.Errorf("unexpected WWW-Authenticate %q", got)
				}
			}
		})
	}
}

func TestBasicAuthMiddleware_Disabled(t *testing.T) {
	mw := NewBasicAuthMiddleware("metrics", "", "")
	if mw.Enabled() {
		t.Fatal("expected auth to be disabled")
	}

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", rec.Code)
	}
}
