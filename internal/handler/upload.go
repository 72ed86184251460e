package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/service"
)

// uploadFieldName is the multipart field carrying the file.
const uploadFieldName = "file"

// UploadResponse is the body of a stored upload.
type UploadResponse struct {
	File  service.StoredFile `json:"file"`
	Quota *QuotaStatus       `json:"quota,omitempty"`
}

// UploadHandler accepts teaching material uploads.
type UploadHandler struct {
	uploads service.UploadService
	maxBody int64
	logger  *slog.Logger
}

// NewUploadHandler creates a new UploadHandler. maxBody bounds the whole
// multipart request; the per-tier file limit is enforced by the service.
func NewUploadHandler(uploads service.UploadService, maxBody int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploads: uploads,
		maxBody: maxBody,
		logger:  logger,
	}
}

// =============================================================================
// POST /api/uploads
// =============================================================================

// Create stores the file sent in the "file" field of a multipart form. The
// part is streamed to the service without buffering the whole request.
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.upload"

	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request must be multipart/form-data"))
		return
	}

	part, err := findFilePart(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.TooLarge(op, "File is too large"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, uploadFieldName, "A file is required"))
		return
	}
	defer part.Close()

	out, err := h.uploads.Upload(r.Context(), userID, service.UploadInput{
		Filename: part.FileName(),
		Size:     -1,
		Data:     part,
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = domain.TooLarge(op, "File is too large")
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	switch o := out.(type) {
	case service.Uploaded:
		resp := UploadResponse{File: o.File}
		if o.Tier != "" {
			resp.Quota = &QuotaStatus{
				Category: domain.CategoryFileUploads,
				Used:     o.Usage,
				Limit:    o.Limit,
				Tier:     o.Tier,
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	case service.UploadDenied:
		LimitExceededResponse(w, r, h.logger, o.Info)
	default:
		InternalErrorResponse(w, r, h.logger, errUnknownOutcome)
	}
}

// findFilePart advances to the file field, skipping other form fields.
func findFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("no file part")
			}
			return nil, err
		}
		if part.FormName() == uploadFieldName && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}
