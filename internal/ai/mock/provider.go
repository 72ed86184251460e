package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/content"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/prompt"
)

// Response is one scripted reply.
type Response struct {
	Text         string
	FinishReason string
	Chunks       []string // Streamed fragments; defaults to Text as one chunk
	Truncate     bool     // Omit the [DONE] marker from a streamed reply
	Err          error
}

// Provider is a mock AI provider for testing and development. Scripted
// responses are served in order; once exhausted a canned document matching
// the requested shape is returned.
type Provider struct {
	logger *slog.Logger

	mu        sync.Mutex
	responses []Response

	// Call tracking for testing
	CompleteCalls int
	Requests      []ai.CompletionRequest
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "mock"
}

// Enqueue appends scripted responses
func (p *Provider) Enqueue(rs ...Response) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, rs...)
	return p
}

// Calls returns the number of Complete calls so far
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CompleteCalls
}

// LastRequest returns the most recent request, if any
func (p *Provider) LastRequest() (ai.CompletionRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return ai.CompletionRequest{}, false
	}
	return p.Requests[len(p.Requests)-1], true
}

// Complete returns the next scripted response
func (p *Provider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	p.mu.Lock()
	p.CompleteCalls++
	p.Requests = append(p.Requests, req)
	var r Response
	if len(p.responses) > 0 {
		r = p.responses[0]
		p.responses = p.responses[1:]
	} else {
		r = canned(req)
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}

	if !req.Stream {
		return &ai.Completion{
			Text:         r.Text,
			FinishReason: r.FinishReason,
			Usage:        ai.UsageInfo{Model: "mock-ai-v1"},
		}, nil
	}

	return &ai.Completion{
		Body:  io.NopCloser(strings.NewReader(eventStream(r))),
		Usage: ai.UsageInfo{Model: "mock-ai-v1"},
	}, nil
}

// Reset clears call counters and scripted responses
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = nil
	p.CompleteCalls = 0
	p.Requests = nil
}

// eventStream renders a response as OpenAI-compatible SSE
func eventStream(r Response) string {
	chunks := r.Chunks
	if chunks == nil {
		chunks = []string{r.Text}
	}

	var sb strings.Builder
	for _, c := range chunks {
		writeEvent(&sb, map[string]any{"delta": map[string]string{"content": c}})
	}
	if r.FinishReason != "" {
		writeEvent(&sb, map[string]any{"delta": map[string]string{}, "finish_reason": r.FinishReason})
	}
	if !r.Truncate {
		sb.WriteString("data: [DONE]\n\n")
	}
	return sb.String()
}

func writeEvent(sb *strings.Builder, choice map[string]any) {
	b, _ := json.Marshal(map[string]any{"choices": []any{choice}})
	fmt.Fprintf(sb, "data: %s\n\n", b)
}

// canned picks a default reply from the document type named in the system
// message. Requests without one are treated as refinements.
func canned(req ai.CompletionRequest) Response {
	var system string
	for _, m := range req.Messages {
		if m.Role == ai.RoleSystem {
			system = m.Content
			break
		}
	}

	for _, shape := range []domain.Shape{domain.ShapeLessonPlan, domain.ShapeAssessment, domain.ShapeActivity} {
		if strings.Contains(system, prompt.DocumentTypeMarker+string(shape)) {
			b, _ := json.MarshalIndent(content.Sample(shape, ""), "", "  ")
			return Response{
				Text:         "```json\n" + string(b) + "\n```",
				FinishReason: ai.FinishStop,
			}
		}
	}

	return Response{Text: `"This is the refined passage."`, FinishReason: ai.FinishStop}
}
