package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/generation"
)

// =============================================================================
// Response Types
// =============================================================================

// GenerationResponse is the body of a successful generation or refinement.
type GenerationResponse struct {
	Content  any          `json:"content"`
	Attempts int          `json:"attempts"`
	Model    string       `json:"model,omitempty"`
	Quota    *QuotaStatus `json:"quota,omitempty"`
}

// QuotaStatus is the category usage after a metered request. Limit is null
// when the category is unlimited.
type QuotaStatus struct {
	Category domain.LimitCategory `json:"category"`
	Used     int64                `json:"used"`
	Limit    *int                 `json:"limit"`
	Tier     domain.Tier          `json:"tier"`
}

func newGenerationResponse(g generation.Generated) GenerationResponse {
	resp := GenerationResponse{
		Content:  g.Result.Content,
		Attempts: g.Result.Attempts,
		Model:    g.Result.Usage.Model,
	}
	// Unmetered refinements and degraded quota checks carry no tier.
	if g.Tier != "" {
		resp.Quota = &QuotaStatus{
			Category: g.Category,
			Used:     g.Usage,
			Limit:    g.Limit,
			Tier:     g.Tier,
		}
	}
	return resp
}

// =============================================================================
// Handler Configuration
// =============================================================================

// GenerationHandler serves content generation and refinement.
type GenerationHandler struct {
	generations *generation.Service
	logger      *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generations *generation.Service, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		generations: generations,
		logger:      logger,
	}
}

// =============================================================================
// POST /api/generate
// =============================================================================

type generateBody struct {
	domain.GenerationRequest
	Stream bool `json:"stream"`
}

// Generate runs one gated generation. With "stream": true and an Accept
// header of text/event-stream the response is a stream of chunk, retry and
// finally result or error events.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var body generateBody
	if err := decodeJSON(w, r, "handler.generate", &body); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.serve(w, r, body.Stream, func(opts generation.Options) (generation.Outcome, error) {
		return h.generations.Generate(r.Context(), userID, body.GenerationRequest, opts)
	})
}

// =============================================================================
// POST /api/refine
// =============================================================================

type refineBody struct {
	generation.RefineRequest
	Stream bool `json:"stream"`
}

// Refine rewrites a passage of generated text.
func (h *GenerationHandler) Refine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var body refineBody
	if err := decodeJSON(w, r, "handler.refine", &body); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.serve(w, r, body.Stream, func(opts generation.Options) (generation.Outcome, error) {
		return h.generations.Refine(r.Context(), userID, body.RefineRequest, opts)
	})
}

// =============================================================================
// Shared
// =============================================================================

func (h *GenerationHandler) serve(w http.ResponseWriter, r *http.Request, stream bool, run func(generation.Options) (generation.Outcome, error)) {
	opts := generation.Options{Stream: stream}
	if !stream || !wantsEventStream(r) {
		out, err := run(opts)
		h.respond(w, r, out, err)
		return
	}

	events := newEventStream(w)
	opts.OnChunk = func(text string) {
		_ = events.send("chunk", map[string]string{"text": text})
	}
	opts.OnRetry = func(attempt int, err error) {
		_ = events.send("retry", map[string]any{
			"attempt": attempt,
			"kind":    ai.KindOf(err),
		})
	}

	out, err := run(opts)
	if !events.started {
		// Nothing streamed yet: denials and request errors keep their status.
		if g, ok := out.(generation.Generated); ok && err == nil {
			_ = events.send("result", newGenerationResponse(g))
			return
		}
		h.respond(w, r, out, err)
		return
	}

	switch o := out.(type) {
	case generation.Generated:
		_ = events.send("result", newGenerationResponse(o))
	case generation.Failed:
		_ = events.send("error", failureBody(o.Err))
	case generation.LimitExceeded:
		_ = events.send("error", limitExceededBody(o.Info))
	default:
		if err != nil && r.Context().Err() == nil {
			h.logger.Error("generation stream failed", "path", r.URL.Path, "error", err)
			_ = events.send("error", map[string]any{
				"error": "The content service is having trouble right now. Please try again.",
			})
		}
	}
}

func (h *GenerationHandler) respond(w http.ResponseWriter, r *http.Request, out generation.Outcome, err error) {
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nobody is listening.
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	switch o := out.(type) {
	case generation.Generated:
		writeJSON(w, http.StatusOK, newGenerationResponse(o))
	case generation.LimitExceeded:
		LimitExceededResponse(w, r, h.logger, o.Info)
	case generation.Failed:
		GenerationFailedResponse(w, r, h.logger, o.Err)
	default:
		InternalErrorResponse(w, r, h.logger, errUnknownOutcome)
	}
}
