// Package handler contains the HTTP handlers of the Aula JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
)

// ErrorResponse writes a JSON error response. It maps domain error codes to
// HTTP status codes; messages of internal errors are replaced by a generic one.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		ValidationErrorResponse(w, r, logger, err)
		return
	}

	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, op, status)

	if code == domain.EINTERNAL {
		message = "An unexpected error occurred"
	}
	writeJSONError(w, status, code, message)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EUPSTREAM:
		return http.StatusBadGateway // 502
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// ValidationErrorResponse writes field-level validation errors.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		ErrorResponse(w, r, logger, err)
		return
	}

	logger.Info("validation error",
		"op", ve.Op,
		"field_count", len(ve.Fields),
		"path", r.URL.Path,
	)

	var body JSONError
	body.Error.Code = domain.EINVALID
	body.Error.Message = "Validation failed"
	body.Error.Fields = ve.Fields
	writeJSON(w, http.StatusBadRequest, body)
}

// LimitExceededResponse writes the 402 body that drives the upgrade prompt.
func LimitExceededResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, info domain.LimitExceededInfo) {
	logger.Info("quota denied request",
		"path", r.URL.Path,
		"limit_type", info.LimitType,
		"tier", info.Tier,
	)
	writeJSON(w, http.StatusPaymentRequired, limitExceededBody(info))
}

func limitExceededBody(info domain.LimitExceededInfo) map[string]any {
	return map[string]any{
		"error":         "You have reached your monthly limit. Upgrade your plan to continue.",
		"limit_type":    info.LimitType,
		"current_usage": info.CurrentUsage,
		"limit":         info.Limit,
		"tier":          info.Tier,
	}
}

// GenerationFailedResponse writes a generation that exhausted its attempts or
// failed permanently. Provider failures map to 502, anything else to 500.
// Upstream messages are never returned.
func GenerationFailedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	if _, ok := ai.AsError(err); ok {
		status = http.StatusBadGateway
	}

	logError(logger, r, err, string(ai.KindOf(err)), "", status)
	writeJSON(w, status, failureBody(err))
}

func failureBody(err error) map[string]any {
	return map[string]any{
		"error":     ai.UserMessage(err),
		"kind":      ai.KindOf(err),
		"retryable": ai.IsRetryable(err),
	}
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required")
	ErrorResponse(w, r, logger, err)
}

// InternalErrorResponse logs the error and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// logError logs the error with appropriate level based on status code.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}

	if op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// JSONError is a typed response structure for API errors.
type JSONError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	var body JSONError
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
