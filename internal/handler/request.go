package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/aula/internal/auth"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/google/uuid"
)

// MaxJSONBodyBytes bounds JSON request bodies.
const MaxJSONBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.TooLarge(op, "Request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		default:
			return domain.Invalid(op, "Request body must be valid JSON")
		}
	}
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}
	return nil
}

// requireUserID returns the authenticated user or writes a 401.
func requireUserID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, ok := auth.GetUserIDFromRequest(r)
	if !ok {
		UnauthorizedResponse(w, r, logger)
	}
	return id, ok
}

// wantsEventStream reports whether the client accepts server-sent events.
func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

var errUnknownOutcome = errors.New("unknown generation outcome")
