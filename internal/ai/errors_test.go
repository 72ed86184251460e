package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		kind      ErrorKind
		retryable bool
	}{
		{"timeout", Timeout(nil), KindTimeout, true},
		{"schema", SchemaViolation("bad", nil, nil), KindSchemaViolation, true},
		{"filtered", ContentFiltered("no"), KindContentFiltered, false},
		{"overflow", ContextOverflow(400, "big"), KindContextOverflow, false},
		{"500", APIError(500, "boom"), KindAPIError, true},
		{"503", APIError(503, "down"), KindAPIError, true},
		{"400", APIError(400, "bad"), KindAPIError, false},
		{"401", APIError(401, "auth"), KindAPIError, false},
		{"429", APIError(429, "slow down"), KindAPIError, false},
		{"transport", TransportError("reset", errors.New("eof")), KindAPIError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		message   string
		kind      ErrorKind
		retryable bool
	}{
		{"request timeout", http.StatusRequestTimeout, "", "", KindTimeout, true},
		{"gateway timeout", http.StatusGatewayTimeout, "", "", KindTimeout, true},
		{"context length code", 400, "context_length_exceeded", "too long", KindContextOverflow, false},
		{"context length message", 400, "", "This model's maximum context length is 8192 tokens", KindContextOverflow, false},
		{"payload too large", http.StatusRequestEntityTooLarge, "", "", KindContextOverflow, false},
		{"content filter", 400, "content_filter", "", KindContentFiltered, false},
		{"bad request", 400, "invalid_request_error", "missing model", KindAPIError, false},
		{"server error", 500, "", "", KindAPIError, true},
		{"bad gateway", 502, "", "", KindAPIError, true},
		{"rate limited", 429, "rate_limit_exceeded", "", KindAPIError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ClassifyStatus(tt.status, tt.code, tt.message)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.StatusCode)
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestClassifyTransport(t *testing.T) {
	assert.Nil(t, ClassifyTransport(nil))

	canceled := fmt.Errorf("read: %w", context.Canceled)
	assert.Same(t, canceled, ClassifyTransport(canceled))

	assert.Equal(t, KindTimeout, KindOf(ClassifyTransport(context.DeadlineExceeded)))
	assert.Equal(t, KindTimeout, KindOf(ClassifyTransport(timeoutErr{})))

	err := ClassifyTransport(errors.New("connection refused"))
	assert.Equal(t, KindAPIError, KindOf(err))
	assert.True(t, IsRetryable(err))

	already := ContentFiltered("x")
	assert.Same(t, already, ClassifyTransport(already))
}

func TestError_Wrapping(t *testing.T) {
	inner := errors.New("inner")
	err := fmt.Errorf("generate: %w", TransportError("reset", inner))

	assert.ErrorIs(t, err, inner)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAPIError, e.Kind)
	assert.Contains(t, err.Error(), "API_ERROR")
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(ContentFiltered("x")), "content filter")
	assert.Contains(t, UserMessage(ContextOverflow(400, "x")), "too large")
	assert.Contains(t, UserMessage(errors.New("raw upstream body")), "trouble")
	assert.NotContains(t, UserMessage(APIError(500, "secret upstream detail")), "secret")
}
