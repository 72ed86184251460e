package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaGate decides whether a generation may run and records usage after a
// verified success.
type QuotaGate interface {
	// Authorize checks the category genType maps onto against the user's
	// snapshot. A denial is not an error: it is reported through
	// Authorization.Allowed.
	Authorize(ctx context.Context, userID uuid.UUID, genType domain.GenerationType) (*Authorization, error)

	// Record appends one usage record and reports whether it was written.
	// Write failures are logged and counted, never returned.
	Record(ctx context.Context, userID uuid.UUID, genType domain.GenerationType, tier domain.Tier, metadata map[string]any) bool
}

// GateConfig selects the gate's failure policy.
type GateConfig struct {
	// FailClosed refuses requests when the ledger cannot be read. The default
	// allows them.
	FailClosed bool
}

// Authorization is the result of a quota check.
type Authorization struct {
	Allowed  bool
	Category domain.LimitCategory
	Usage    int64
	Limit    *int // nil means unlimited
	Tier     domain.Tier
	Snapshot *domain.UsageSnapshot // nil when Degraded

	// Degraded is set when the ledger could not be read and the request was
	// allowed anyway. Usage and Limit are unknown; Tier is the user's tier
	// when the profile could still be read, free otherwise.
	Degraded bool
}

// Info builds the denial payload. Only meaningful when Allowed is false.
func (a *Authorization) Info() domain.LimitExceededInfo {
	info := domain.LimitExceededInfo{
		LimitType:    a.Category,
		CurrentUsage: a.Usage,
		Tier:         a.Tier,
	}
	if a.Limit != nil {
		info.Limit = *a.Limit
	}
	return info
}

// =============================================================================
// Implementation
// =============================================================================

type quotaGate struct {
	ledger UsageLedger
	cfg    GateConfig
	logger *slog.Logger
}

// NewQuotaGate creates a new QuotaGate.
func NewQuotaGate(ledger UsageLedger, cfg GateConfig, logger *slog.Logger) QuotaGate {
	return &quotaGate{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// Authorize checks the user's quota for genType.
func (g *quotaGate) Authorize(ctx context.Context, userID uuid.UUID, genType domain.GenerationType) (*Authorization, error) {
	const op = "quota.authorize"

	category := domain.CategoryFor(genType)

	snapshot, err := g.ledger.Snapshot(ctx, userID)
	if err != nil {
		metrics.LedgerFault("read")
		if g.cfg.FailClosed {
			g.logger.Error("usage ledger unavailable, refusing request",
				"user_id", userID,
				"category", category,
				"error", err,
			)
			return nil, domain.Unavailable(err, op, "Usage limits cannot be checked right now. Please try again shortly.")
		}
		tier := g.degradedTier(ctx, userID)
		g.logger.Warn("usage ledger unavailable, allowing request",
			"user_id", userID,
			"category", category,
			"tier", tier,
			"error", err,
		)
		metrics.QuotaDecision(category, true)
		return &Authorization{
			Allowed:  true,
			Category: category,
			Tier:     tier,
			Degraded: true,
		}, nil
	}

	usage := snapshot.Usage(category)
	auth := &Authorization{
		Allowed:  usage.Allowed(),
		Category: category,
		Usage:    usage.Used,
		Limit:    usage.Limit,
		Tier:     snapshot.Tier,
		Snapshot: snapshot,
	}

	metrics.QuotaDecision(category, auth.Allowed)

	if !auth.Allowed {
		g.logger.Info("quota exceeded",
			"user_id", userID,
			"tier", snapshot.Tier,
			"category", category,
			"used", usage.Used,
			"limit", *usage.Limit,
		)
	}

	return auth, nil
}

// degradedTier looks the tier up on its own after a snapshot failure, so a
// failed count query does not demote the user. Free only when the profile
// cannot be read either.
func (g *quotaGate) degradedTier(ctx context.Context, userID uuid.UUID) domain.Tier {
	tier, err := g.ledger.Tier(ctx, userID)
	if err != nil {
		g.logger.Warn("subscription tier unavailable, assuming free",
			"user_id", userID,
			"error", err,
		)
		return domain.TierFree
	}
	return tier
}

// Record appends a usage record, swallowing write failures.
func (g *quotaGate) Record(ctx context.Context, userID uuid.UUID, genType domain.GenerationType, tier domain.Tier, metadata map[string]any) bool {
	if err := g.ledger.RecordUsage(ctx, userID, genType, tier, metadata); err != nil {
		metrics.LedgerFault("write")
		g.logger.Error("failed to record usage",
			"user_id", userID,
			"type", genType,
			"tier", tier,
			"error", err,
		)
		return false
	}
	metrics.UsageRecordedTotal.WithLabelValues(string(domain.CategoryFor(genType))).Inc()
	return true
}
