package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/DukeRupert/aula/internal/prompt"
	"github.com/DukeRupert/aula/internal/service"
	"github.com/google/uuid"
)

// MaxPassageLength bounds the text accepted for refinement.
const MaxPassageLength = 10000

// =============================================================================
// Outcomes
// =============================================================================

// Outcome is the result of a gated request: Generated, LimitExceeded or Failed.
type Outcome interface {
	outcome()
}

// Generated carries a validated result. Usage is the category's usage count
// including this request. Tier is empty when no quota applies: unmetered
// refinements and requests allowed while the ledger was unreadable.
type Generated struct {
	Result   *Result
	Category domain.LimitCategory
	Usage    int64
	Limit    *int
	Tier     domain.Tier

	// Recorded reports whether the usage record was written.
	Recorded bool
}

// LimitExceeded reports a quota denial. Nothing was generated or recorded.
type LimitExceeded struct {
	Info domain.LimitExceededInfo
}

// Failed reports a generation that exhausted its attempts or hit a
// non-retryable failure. Nothing was recorded.
type Failed struct {
	Err error
}

func (Generated) outcome()     {}
func (LimitExceeded) outcome() {}
func (Failed) outcome()        {}

// Kind returns the classified kind of the failure.
func (f Failed) Kind() ai.ErrorKind {
	return ai.KindOf(f.Err)
}

// =============================================================================
// Service
// =============================================================================

// ServiceConfig holds the service's policies.
type ServiceConfig struct {
	// MeterRefinement counts refinements against the activities quota.
	MeterRefinement bool
}

// RefineRequest is the input of Service.Refine.
type RefineRequest struct {
	Text    string        `json:"text"`
	Action  prompt.Action `json:"action"`
	Context string        `json:"context,omitempty"`
}

// Service gates generations behind the quota and records usage after
// verified success. Errors returned alongside a nil Outcome are request
// level: invalid input, an unconfigured or unreachable dependency, or
// cancellation by the caller.
type Service struct {
	orchestrator *Orchestrator
	gate         service.QuotaGate
	cfg          ServiceConfig
	logger       *slog.Logger
}

// NewService creates a Service. A nil orchestrator makes every request fail
// as unavailable without touching the quota.
func NewService(orchestrator *Orchestrator, gate service.QuotaGate, cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		orchestrator: orchestrator,
		gate:         gate,
		cfg:          cfg,
		logger:       logger,
	}
}

// Generate runs one gated generation for userID.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest, opts Options) (Outcome, error) {
	const op = "generation.generate"

	if s.orchestrator == nil {
		return nil, notConfigured(op)
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"topic":       req.Topic,
		"grade_level": req.GradeLevel,
		"subject":     req.Subject,
	}
	return s.gated(ctx, op, userID, req.Type, metadata, func() (*Result, error) {
		return s.orchestrator.Generate(ctx, req, opts)
	})
}

// Refine runs one refinement. It bypasses the quota unless refinement
// metering is enabled.
func (s *Service) Refine(ctx context.Context, userID uuid.UUID, req RefineRequest, opts Options) (Outcome, error) {
	const op = "generation.refine"

	if s.orchestrator == nil {
		return nil, notConfigured(op)
	}

	req.Text = strings.TrimSpace(req.Text)
	req.Context = strings.TrimSpace(req.Context)
	if err := validateRefine(op, req); err != nil {
		return nil, err
	}

	run := func() (*Result, error) {
		return s.orchestrator.Refine(ctx, req.Text, req.Action, req.Context, opts)
	}

	var (
		out Outcome
		err error
	)
	if s.cfg.MeterRefinement {
		out, err = s.gated(ctx, op, userID, domain.TypeRefinement, map[string]any{"action": string(req.Action)}, run)
	} else {
		out, err = s.unmetered(ctx, op, userID, run)
	}
	if out != nil {
		metrics.RefinementsTotal.WithLabelValues(string(req.Action), outcomeLabel(out)).Inc()
	}
	return out, err
}

// unmetered runs a refinement without consulting or charging the quota.
func (s *Service) unmetered(ctx context.Context, op string, userID uuid.UUID, run func() (*Result, error)) (Outcome, error) {
	start := time.Now()
	result, err := run()
	if err != nil {
		return s.failure(ctx, op, userID, domain.TypeRefinement, start, err)
	}
	metrics.GenerationCompleted(domain.TypeRefinement, "generated", time.Since(start))
	return Generated{Result: result, Category: domain.CategoryFor(domain.TypeRefinement)}, nil
}

func outcomeLabel(o Outcome) string {
	switch o.(type) {
	case Generated:
		return "generated"
	case LimitExceeded:
		return "denied"
	default:
		return "failed"
	}
}

func validateRefine(op string, req RefineRequest) error {
	fields := map[string]string{}
	if req.Text == "" {
		fields["text"] = "text is required"
	} else if len(req.Text) > MaxPassageLength {
		fields["text"] = "text is too long"
	}
	if !req.Action.Valid() {
		fields["action"] = "action must be one of rewrite, simplify, engage, expand"
	}
	if len(req.Context) > domain.MaxNotesLength {
		fields["context"] = "context is too long"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Op: op, Fields: fields}
	}
	return nil
}

// gated walks the request lifecycle around run: authorize, generate, record.
func (s *Service) gated(ctx context.Context, op string, userID uuid.UUID, genType domain.GenerationType, metadata map[string]any, run func() (*Result, error)) (Outcome, error) {
	start := time.Now()
	lc := domain.NewRequestLifecycle()

	auth, err := s.gate.Authorize(ctx, userID, genType)
	if err != nil {
		return nil, err
	}

	if !auth.Allowed {
		s.advance(lc, domain.StateDenied, domain.StateTerminated)
		metrics.GenerationCompleted(genType, "denied", time.Since(start))
		return LimitExceeded{Info: auth.Info()}, nil
	}

	s.advance(lc, domain.StateAllowed, domain.StateGenerating)

	result, err := run()
	if err != nil {
		s.advance(lc, domain.StateFailed)
		return s.failure(ctx, op, userID, genType, start, err)
	}

	s.advance(lc, domain.StateSucceeded)

	metadata["attempts"] = result.Attempts
	if result.Usage.Model != "" {
		metadata["model"] = result.Usage.Model
	}
	// The caller may disconnect once the result exists; the record must
	// still be written.
	recorded := s.gate.Record(context.WithoutCancel(ctx), userID, genType, auth.Tier, metadata)
	if recorded {
		s.advance(lc, domain.StateRecorded)
	}

	metrics.GenerationCompleted(genType, "generated", time.Since(start))
	s.logger.Info("generation succeeded",
		"user_id", userID,
		"type", genType,
		"category", auth.Category,
		"attempts", result.Attempts,
		"state", lc.State,
		"duration", time.Since(start),
	)

	out := Generated{Result: result, Category: auth.Category, Recorded: recorded}
	if !auth.Degraded {
		out.Usage = auth.Usage + 1
		out.Limit = auth.Limit
		out.Tier = auth.Tier
	}
	return out, nil
}

// failure sorts a run error into a request-level error or a Failed outcome.
func (s *Service) failure(ctx context.Context, op string, userID uuid.UUID, genType domain.GenerationType, start time.Time, err error) (Outcome, error) {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		metrics.GenerationCompleted(genType, "canceled", time.Since(start))
		s.logger.Info("generation canceled by caller", "user_id", userID, "type", genType)
		return nil, err
	case errors.Is(err, ai.ErrNotConfigured):
		metrics.GenerationCompleted(genType, "unavailable", time.Since(start))
		return nil, notConfigured(op)
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return nil, err
	}

	metrics.GenerationCompleted(genType, "failed", time.Since(start))
	s.logger.Error("generation failed",
		"user_id", userID,
		"type", genType,
		"kind", ai.KindOf(err),
		"error", err,
	)
	return Failed{Err: err}, nil
}

func (s *Service) advance(lc *domain.RequestLifecycle, states ...domain.RequestState) {
	for _, st := range states {
		if err := lc.Advance(st); err != nil {
			s.logger.Error("illegal request transition", "error", err)
		}
	}
}

func notConfigured(op string) error {
	return domain.Unavailable(ai.ErrNotConfigured, op, "Content generation is not available right now.")
}
