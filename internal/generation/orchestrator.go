// Package generation runs model completions inside a bounded retry envelope
// and turns their output into validated teaching materials.
package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/content"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/DukeRupert/aula/internal/prompt"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options tune a single Generate or Refine call.
type Options struct {
	Stream bool

	// OnChunk receives streamed text fragments as they arrive. Fragments of
	// a failed attempt are not retracted; OnRetry marks the restart.
	OnChunk func(text string)

	// OnRetry is called before each retry with the 1-based number of the
	// attempt about to run and the failure that caused it.
	OnRetry func(attempt int, err error)

	Temperature *float64 // nil selects ai.DefaultTemperature; 0 is sent as is
	MaxTokens   int      // 0 selects ai.DefaultMaxTokens
}

// Result is a validated completion.
type Result struct {
	Content  any    // *content.LessonPlan, *content.Activity, *content.Assessment or string
	Text     string // Raw model output of the successful attempt
	Attempts int
	Usage    ai.UsageInfo
}

// Orchestrator drives a Provider through prompt building, streaming and
// validation, retrying failures classified as retryable.
type Orchestrator struct {
	provider ai.Provider
	retry    ai.RetryConfig
	sleep    Sleeper
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A zero MaxAttempts means one attempt.
func NewOrchestrator(provider ai.Provider, retry ai.RetryConfig, logger *slog.Logger) *Orchestrator {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Orchestrator{
		provider: provider,
		retry:    retry,
		sleep:    SleepContext,
		logger:   logger,
	}
}

// WithSleeper returns a copy that waits with s between attempts.
func (o *Orchestrator) WithSleeper(s Sleeper) *Orchestrator {
	cp := *o
	cp.sleep = s
	return &cp
}

// ProviderName names the underlying provider.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

// Generate produces the document described by req. req must already be
// normalized so that its Shape is set.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest, opts Options) (*Result, error) {
	shape := req.Shape
	if !shape.Valid() {
		shape = domain.ShapeFor(req.Type)
	}

	return o.run(ctx, prompt.Build(req), opts, func(text string) (any, error) {
		return content.Parse(shape, text)
	})
}

// validateFunc turns the raw text of one attempt into a result value.
type validateFunc func(text string) (any, error)

func (o *Orchestrator) run(ctx context.Context, messages []ai.Message, opts Options, validate validateFunc) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := ai.BackoffDelay(attempt-2, o.retry)
			metrics.AttemptRetried()
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, lastErr)
			}
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		text, usage, err := o.complete(ctx, messages, opts)
		var value any
		if err == nil {
			value, err = validate(text)
		}
		if err == nil {
			metrics.AttemptFinished("")
			return &Result{
				Content:  value,
				Text:     text,
				Attempts: attempt,
				Usage:    usage,
			}, nil
		}

		// Cancellation ends the request; it is never retried.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		kind := ai.KindOf(err)
		metrics.AttemptFinished(string(kind))
		lastErr = err

		retryable := ai.IsRetryable(err)
		o.logger.Warn("completion attempt failed",
			"provider", o.provider.Name(),
			"attempt", attempt,
			"max_attempts", o.retry.MaxAttempts,
			"kind", kind,
			"retryable", retryable,
			"error", err,
		)
		if !retryable {
			break
		}
	}

	return nil, lastErr
}

// complete performs one provider call and collects its text.
func (o *Orchestrator) complete(ctx context.Context, messages []ai.Message, opts Options) (string, ai.UsageInfo, error) {
	req := ai.CompletionRequest{
		Messages:    messages,
		Temperature: ai.DefaultTemperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      opts.Stream,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = ai.DefaultMaxTokens
	}

	comp, err := o.provider.Complete(ctx, req)
	if err != nil {
		return "", ai.UsageInfo{}, err
	}

	if !opts.Stream || comp.Body == nil {
		if comp.FinishReason == ai.FinishContentFilter {
			return "", comp.Usage, ai.ContentFiltered("content was filtered by the provider")
		}
		return comp.Text, comp.Usage, nil
	}

	text, err := o.drain(ctx, comp.Body, opts.OnChunk)
	return text, comp.Usage, err
}

// drain reads a streamed body to its [DONE] marker. The body is closed when
// ctx is canceled so a blocked read returns promptly.
func (o *Orchestrator) drain(ctx context.Context, body io.ReadCloser, onChunk func(string)) (string, error) {
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	var sb strings.Builder
	r := ai.NewStreamReader(body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", ai.ClassifyTransport(err)
		}

		if ev.FinishReason == ai.FinishContentFilter {
			return "", ai.ContentFiltered("content was filtered by the provider")
		}
		if ev.Text != "" {
			sb.WriteString(ev.Text)
			if onChunk != nil {
				onChunk(ev.Text)
			}
		}
	}
}
