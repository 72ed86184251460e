package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/export"
	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ExportService renders generated content as a downloadable file. Exports
// are not metered; the user's tier decides which formats are allowed.
type ExportService interface {
	Export(ctx context.Context, userID uuid.UUID, in ExportInput) (*ExportedFile, error)
}

// ExportInput is a document to render.
type ExportInput struct {
	Shape   domain.Shape    `json:"shape"`
	Format  string          `json:"format"`
	Content json.RawMessage `json:"content"`
}

// ExportedFile is a rendered document.
type ExportedFile struct {
	Filename    string
	ContentType string
	Format      export.Format
	Data        []byte
}

// ExportConfig holds the export service's inputs.
type ExportConfig struct {
	// FailClosed refuses exports when the tier cannot be resolved. The
	// default treats the user as free tier.
	FailClosed bool
	Now        func() time.Time
}

// =============================================================================
// Implementation
// =============================================================================

type exportService struct {
	ledger   UsageLedger
	registry *export.Registry
	cfg      ExportConfig
	logger   *slog.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(ledger UsageLedger, registry *export.Registry, cfg ExportConfig, logger *slog.Logger) ExportService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &exportService{
		ledger:   ledger,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Export validates the input, checks the tier's export formats and renders.
func (s *exportService) Export(ctx context.Context, userID uuid.UUID, in ExportInput) (*ExportedFile, error) {
	const op = "export.export"

	format := export.Format(strings.ToLower(strings.TrimSpace(in.Format)))
	if err := validateExport(op, format, in); err != nil {
		metrics.ExportFinished(string(format), "invalid", 0)
		return nil, err
	}

	tier, err := s.ledger.Tier(ctx, userID)
	if err != nil {
		metrics.LedgerFault("read")
		if s.cfg.FailClosed {
			s.logger.Error("usage ledger unavailable, refusing export", "user_id", userID, "error", err)
			return nil, domain.Unavailable(err, op, "Export is not available right now. Please try again shortly.")
		}
		s.logger.Warn("usage ledger unavailable, exporting as free tier", "user_id", userID, "error", err)
		tier = domain.TierFree
	}

	if !s.ledger.Limits().For(tier).CanExport(string(format)) {
		metrics.ExportFinished(string(format), "forbidden", 0)
		return nil, domain.Forbidden(op, fmt.Sprintf("Your %s plan does not include %s export.", tier, strings.ToUpper(string(format))))
	}

	doc, err := export.Build(in.Shape, in.Content, s.cfg.Now())
	if err != nil {
		metrics.ExportFinished(string(format), "invalid", 0)
		return nil, contentError(op, err)
	}

	renderer, err := s.registry.Renderer(format)
	if err != nil {
		metrics.ExportFinished(string(format), "unavailable", 0)
		return nil, domain.Unavailable(err, op, fmt.Sprintf("%s export is not available right now.", strings.ToUpper(string(format))))
	}

	var buf bytes.Buffer
	if _, err := renderer.Render(ctx, doc, &buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.ExportFinished(string(format), "failed", 0)
		return nil, domain.Internal(err, op, "failed to render export")
	}

	metrics.ExportFinished(string(format), "rendered", int64(buf.Len()))
	s.logger.Info("export rendered",
		"user_id", userID,
		"tier", tier,
		"shape", in.Shape,
		"format", format,
		"size", buf.Len(),
	)

	return &ExportedFile{
		Filename:    export.Filename(doc.Title, format),
		ContentType: format.ContentType(),
		Format:      format,
		Data:        buf.Bytes(),
	}, nil
}

func validateExport(op string, format export.Format, in ExportInput) error {
	ve := &domain.ValidationError{Op: op}
	if !format.Valid() {
		ve.Add("format", "Format must be one of pdf, docx, pptx or html.")
	}
	if !in.Shape.Valid() {
		ve.Add("shape", "Shape must be one of lesson_plan, activity or assessment.")
	}
	if raw := bytes.TrimSpace(in.Content); len(raw) == 0 || string(raw) == "null" {
		ve.Add("content", "Content is required.")
	}
	if !ve.HasErrors() {
		return nil
	}
	return ve
}

// contentError turns schema violations into field errors under "content".
func contentError(op string, err error) error {
	e, ok := ai.AsError(err)
	if !ok {
		return domain.Invalid(op, "Content does not match the document shape.")
	}
	if len(e.Violations) == 0 {
		return domain.NewValidationError(op, "content", "Content is not valid JSON.")
	}

	ve := &domain.ValidationError{Op: op}
	for _, v := range e.Violations {
		ve.Add("content."+v.Path, v.Reason)
	}
	return ve
}
