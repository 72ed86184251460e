package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/aula/internal/service"
)

// ExportHandler renders generated content as a file download.
type ExportHandler struct {
	exports service.ExportService
	logger  *slog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exports service.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		logger:  logger,
	}
}

// =============================================================================
// POST /api/export
// =============================================================================

// Create renders {"shape", "format", "content"} and returns the file as an
// attachment.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.export"

	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var in service.ExportInput
	if err := decodeJSON(w, r, op, &in); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	file, err := h.exports.Export(r.Context(), userID, in)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Debug("export write interrupted", "error", err)
	}
}
