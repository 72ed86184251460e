package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "test-key", BaseURL: srv.URL}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return p
}

func readAll(t *testing.T, body io.ReadCloser) (string, ai.StreamEvent, error) {
	t.Helper()
	defer body.Close()

	var (
		sb   strings.Builder
		last ai.StreamEvent
	)
	r := ai.NewStreamReader(body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), last, nil
		}
		if err != nil {
			return sb.String(), last, err
		}
		if ev.FinishReason != "" {
			last = ev
		}
		sb.WriteString(ev.Text)
	}
}

func TestComplete_SingleShot(t *testing.T) {
	var got apiRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{
			"type": "message",
			"model": "claude",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "world"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`)
	})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "be brief"},
			{Role: ai.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello world", c.Text)
	assert.Equal(t, ai.FinishStop, c.FinishReason)
	assert.Equal(t, 10, c.Usage.InputTokens)

	assert.Equal(t, "be brief", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, ai.DefaultMaxTokens, got.MaxTokens)
}

func TestComplete_StreamTranslated(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{Stream: true})
	require.NoError(t, err)

	text, last, err := readAll(t, c.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, ai.FinishStop, last.FinishReason)
}

func TestComplete_StreamTruncated(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"half\"}}\n\n")
	})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{Stream: true})
	require.NoError(t, err)

	text, _, err := readAll(t, c.Body)
	assert.Equal(t, "half", text)
	assert.ErrorIs(t, err, ai.ErrStreamTruncated)
}

func TestComplete_StreamErrorEvent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{Stream: true})
	require.NoError(t, err)

	_, _, err = readAll(t, c.Body)
	e, ok := ai.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ai.KindAPIError, e.Kind)
	assert.True(t, e.Retryable)
	assert.Equal(t, statusOverloaded, e.StatusCode)
}

func TestComplete_Refusal(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content": [], "stop_reason": "refusal"}`)
	})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, ai.FinishContentFilter, c.FinishReason)
}

func TestComplete_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusOverloaded)
		fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	})

	_, err := p.Complete(context.Background(), ai.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, ai.IsRetryable(err))
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, ai.FinishStop, finishReason("end_turn"))
	assert.Equal(t, ai.FinishStop, finishReason("stop_sequence"))
	assert.Equal(t, ai.FinishLength, finishReason("max_tokens"))
	assert.Equal(t, ai.FinishContentFilter, finishReason("refusal"))
	assert.Equal(t, "", finishReason(""))
}
