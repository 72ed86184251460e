package metrics

import (
	"time"

	"github.com/DukeRupert/aula/internal/domain"
)

// GenerationCompleted records a finished generation request
func GenerationCompleted(genType domain.GenerationType, outcome string, duration time.Duration) {
	GenerationsTotal.WithLabelValues(string(genType), outcome).Inc()
	GenerationDuration.WithLabelValues(string(genType)).Observe(duration.Seconds())
}

// AttemptFinished records one completion attempt. kind is empty on success.
func AttemptFinished(kind string) {
	if kind == "" {
		kind = "ok"
	}
	GenerationAttemptsTotal.WithLabelValues(kind).Inc()
}

// AttemptRetried records a retry after a failed attempt
func AttemptRetried() {
	GenerationRetriesTotal.Inc()
}

// QuotaDecision records an allow/deny decision for a category
func QuotaDecision(category domain.LimitCategory, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	QuotaDecisionsTotal.WithLabelValues(string(category), decision).Inc()
}

// LedgerFault records a usage ledger read or write failure
func LedgerFault(op string) {
	QuotaLedgerErrorsTotal.WithLabelValues(op).Inc()
}

// ExportFinished records an export attempt. size is ignored unless the
// export was rendered.
func ExportFinished(format, outcome string, size int64) {
	ExportsTotal.WithLabelValues(format, outcome).Inc()
	if outcome == "rendered" {
		ExportBytes.WithLabelValues(format).Observe(float64(size))
	}
}
