package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/DukeRupert/aula/internal/storage"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UploadService stores reference files teachers attach to their requests.
// Each stored file consumes one unit of the fileUploads quota.
type UploadService interface {
	// Upload stores one file. A quota denial is reported as UploadDenied;
	// oversized, empty or unsupported files are returned as errors.
	Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (UploadOutcome, error)
}

// UploadInput is a file received from a client.
type UploadInput struct {
	Filename string
	Size     int64 // Declared size; -1 when unknown
	Data     io.Reader
}

// StoredFile describes a stored upload.
type StoredFile struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// UploadOutcome is either Uploaded or UploadDenied.
type UploadOutcome interface {
	uploadOutcome()
}

// Uploaded reports a stored file and the quota usage including it. Tier is
// empty when the quota could not be read and the upload was allowed anyway.
type Uploaded struct {
	File  StoredFile
	Usage int64
	Limit *int
	Tier  domain.Tier
}

// UploadDenied reports that the fileUploads quota is exhausted.
type UploadDenied struct {
	Info domain.LimitExceededInfo
}

func (Uploaded) uploadOutcome()     {}
func (UploadDenied) uploadOutcome() {}

// UploadConfig holds the upload service's inputs.
type UploadConfig struct {
	Limits domain.TierLimitsTable
	Now    func() time.Time
}

// =============================================================================
// Implementation
// =============================================================================

type uploadService struct {
	gate       QuotaGate
	store      storage.Storage
	thumbnails ThumbnailProcessor
	limits     domain.TierLimitsTable
	now        func() time.Time
	logger     *slog.Logger
}

// NewUploadService creates a new UploadService.
func NewUploadService(gate QuotaGate, store storage.Storage, thumbnails ThumbnailProcessor, cfg UploadConfig, logger *slog.Logger) UploadService {
	if cfg.Limits == nil {
		cfg.Limits = domain.DefaultTierLimits()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &uploadService{
		gate:       gate,
		store:      store,
		thumbnails: thumbnails,
		limits:     cfg.Limits,
		now:        cfg.Now,
		logger:     logger,
	}
}

// Upload authorizes, validates and stores one file.
func (s *uploadService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (UploadOutcome, error) {
	const op = "upload.upload"

	auth, err := s.gate.Authorize(ctx, userID, domain.TypeFileUpload)
	if err != nil {
		return nil, err
	}
	if !auth.Allowed {
		metrics.UploadsTotal.WithLabelValues("denied").Inc()
		return UploadDenied{Info: auth.Info()}, nil
	}

	maxBytes := s.limits.For(auth.Tier).MaxUploadBytes
	if in.Size > maxBytes {
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		return nil, domain.TooLarge(op, "File exceeds the upload size allowed on your plan.")
	}

	data, err := io.ReadAll(io.LimitReader(in.Data, maxBytes+1))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "The file could not be read.")
	}
	if int64(len(data)) > maxBytes {
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		return nil, domain.TooLarge(op, "File exceeds the upload size allowed on your plan.")
	}
	if len(data) == 0 {
		return nil, domain.Invalid(op, "The file is empty.")
	}

	contentType := storage.DetectContentType(in.Filename, data[:min(len(data), 512)])
	if !storage.IsAllowedUpload(contentType) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.Invalid(op, "Only PDF, Word, plain text and image files can be uploaded.")
	}

	key := storage.UploadKey(userID, storage.ExtensionFor(contentType))
	if err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     maxBytes,
	}); err != nil {
		if storage.IsTooLarge(err) {
			return nil, domain.TooLarge(op, "File exceeds the upload size allowed on your plan.")
		}
		return nil, domain.Internal(err, op, "failed to store upload")
	}

	file := StoredFile{
		Key:         key,
		Filename:    cleanFilename(in.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  s.now().UTC(),
	}

	file.URL, err = s.store.URL(ctx, key, 0)
	if err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Warn("failed to remove orphaned upload", "key", key, "error", derr)
		}
		return nil, domain.Internal(err, op, "failed to link upload")
	}

	if storage.IsImage(contentType) {
		s.attachPreview(ctx, &file, data)
	}

	s.gate.Record(context.WithoutCancel(ctx), userID, domain.TypeFileUpload, auth.Tier, map[string]any{
		"key":          key,
		"size":         file.Size,
		"content_type": contentType,
		"filename":     file.Filename,
	})
	metrics.UploadsTotal.WithLabelValues("stored").Inc()

	s.logger.Info("upload stored",
		"user_id", userID,
		"key", key,
		"size", file.Size,
		"content_type", contentType,
	)

	if auth.Degraded {
		return Uploaded{File: file}, nil
	}
	return Uploaded{File: file, Usage: auth.Usage + 1, Limit: auth.Limit, Tier: auth.Tier}, nil
}

// attachPreview stores a JPEG preview next to an image upload. A preview
// failure never fails the upload.
func (s *uploadService) attachPreview(ctx context.Context, file *StoredFile, data []byte) {
	preview, width, height, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(data), PreviewMaxWidth, PreviewMaxHeight)
	if err != nil {
		s.logger.Warn("failed to render preview", "key", file.Key, "error", err)
		return
	}
	file.Width, file.Height = width, height

	previewKey := storage.PreviewKey(file.Key)
	if err := s.store.Put(ctx, previewKey, bytes.NewReader(preview), storage.PutOptions{ContentType: storage.TypeJPEG}); err != nil {
		s.logger.Warn("failed to store preview", "key", previewKey, "error", err)
		return
	}
	if url, err := s.store.URL(ctx, previewKey, 0); err == nil {
		file.PreviewURL = url
	}
}

// cleanFilename keeps the base name of a client-supplied path.
func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
