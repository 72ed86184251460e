package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(false)

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/api/usage", nil))

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: expected %q, got %q", header, want, got)
		}
	}

	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set when not secure")
	}
}

func TestSecurityHeaders_HSTSAndNonAPI(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(true)

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set in secure mode")
	}
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("Cache-Control should only be forced on /api/ paths")
	}
}
