package mock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/content"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider() *Provider {
	return New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func drain(t *testing.T, body io.ReadCloser) (string, error) {
	t.Helper()
	defer body.Close()
	r := ai.NewStreamReader(body)
	var text string
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return text, nil
		}
		if err != nil {
			return text, err
		}
		text += ev.Text
	}
}

func TestProvider_ScriptedInOrder(t *testing.T) {
	boom := ai.APIError(500, "boom")
	p := newProvider().Enqueue(
		Response{Err: boom},
		Response{Text: "second"},
	)

	_, err := p.Complete(context.Background(), ai.CompletionRequest{})
	assert.Same(t, boom, err)

	c, err := p.Complete(context.Background(), ai.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "second", c.Text)
	assert.Equal(t, 2, p.Calls())
}

func TestProvider_Stream(t *testing.T) {
	p := newProvider().Enqueue(Response{Chunks: []string{"a", "b", "c"}})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{Stream: true})
	require.NoError(t, err)

	text, err := drain(t, c.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestProvider_StreamTruncated(t *testing.T) {
	p := newProvider().Enqueue(Response{Text: "cut", Truncate: true})

	c, err := p.Complete(context.Background(), ai.CompletionRequest{Stream: true})
	require.NoError(t, err)

	_, err = drain(t, c.Body)
	assert.ErrorIs(t, err, ai.ErrStreamTruncated)
}

func TestProvider_CannedByShape(t *testing.T) {
	for _, shape := range []domain.Shape{domain.ShapeLessonPlan, domain.ShapeActivity, domain.ShapeAssessment} {
		t.Run(string(shape), func(t *testing.T) {
			p := newProvider()
			c, err := p.Complete(context.Background(), ai.CompletionRequest{
				Messages: []ai.Message{{Role: ai.RoleSystem, Content: "You write.\n" + prompt.DocumentTypeMarker + string(shape)}},
			})
			require.NoError(t, err)

			_, err = content.Parse(shape, c.Text)
			assert.NoError(t, err)
		})
	}
}

func TestProvider_RecordsRequests(t *testing.T) {
	p := newProvider()
	req := ai.CompletionRequest{Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}}}
	_, _ = p.Complete(context.Background(), req)

	last, ok := p.LastRequest()
	require.True(t, ok)
	assert.Equal(t, req, last)

	p.Reset()
	_, ok = p.LastRequest()
	assert.False(t, ok)
	assert.Equal(t, 0, p.Calls())
}

func TestProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newProvider().Complete(ctx, ai.CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
