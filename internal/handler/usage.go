package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/service"
)

// MaxHistoryLimit bounds the history query parameter.
const MaxHistoryLimit = 200

// CategoryStatus is one category of the usage summary.
type CategoryStatus struct {
	Used       int64   `json:"used"`
	Limit      *int    `json:"limit"`
	Remaining  *int64  `json:"remaining"`
	Percentage float64 `json:"percentage"`
	Allowed    bool    `json:"allowed"`
	Unlimited  bool    `json:"unlimited"`
}

// UsageResponse summarizes a user's quota for the current billing period.
type UsageResponse struct {
	Tier           domain.Tier                             `json:"tier"`
	Period         domain.BillingPeriod                    `json:"period"`
	Categories     map[domain.LimitCategory]CategoryStatus `json:"categories"`
	ExportFormats  []string                                `json:"export_formats"`
	MaxUploadBytes int64                                   `json:"max_upload_bytes"`
	History        []domain.UsageRecord                    `json:"history,omitempty"`
}

// UsageHandler reports quota usage.
type UsageHandler struct {
	ledger service.UsageLedger
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(ledger service.UsageLedger, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		ledger: ledger,
		logger: logger,
	}
}

// =============================================================================
// GET /api/usage
// =============================================================================

// Show returns the usage summary. ?history=N appends the N most recent
// usage records.
func (h *UsageHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	historyLimit := 0
	if raw := r.URL.Query().Get("history"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > MaxHistoryLimit {
			ErrorResponse(w, r, h.logger, domain.NewValidationError("handler.usage", "history",
				"history must be a number between 0 and "+strconv.Itoa(MaxHistoryLimit)))
			return
		}
		historyLimit = n
	}

	snap, err := h.ledger.Snapshot(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limits := h.ledger.Limits().For(snap.Tier)
	resp := UsageResponse{
		Tier:           snap.Tier,
		Period:         snap.Period,
		Categories:     make(map[domain.LimitCategory]CategoryStatus, len(snap.Categories)),
		ExportFormats:  limits.ExportFormats,
		MaxUploadBytes: limits.MaxUploadBytes,
	}
	if resp.ExportFormats == nil {
		resp.ExportFormats = []string{}
	}

	for _, c := range domain.AllCategories {
		u := snap.Usage(c)
		status := CategoryStatus{
			Used:       u.Used,
			Limit:      u.Limit,
			Percentage: u.Percentage(),
			Allowed:    u.Allowed(),
			Unlimited:  u.Unlimited(),
		}
		if left, unlimited := u.Remaining(); !unlimited {
			status.Remaining = &left
		}
		resp.Categories[c] = status
	}

	if historyLimit > 0 {
		records, err := h.ledger.History(r.Context(), userID, historyLimit)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		resp.History = records
	}

	writeJSON(w, http.StatusOK, resp)
}
