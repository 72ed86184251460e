// Package service contains the business logic layer.
//
// This file implements the usage ledger: per-user, per-category counts of
// successful generations within the current billing period.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageLedger reads and appends usage records.
type UsageLedger interface {
	// Snapshot returns the user's usage for every category in the current
	// billing period, paired with their tier's limits.
	Snapshot(ctx context.Context, userID uuid.UUID) (*domain.UsageSnapshot, error)

	// RecordUsage appends one usage record for genType. It performs no
	// deduplication.
	RecordUsage(ctx context.Context, userID uuid.UUID, genType domain.GenerationType, tier domain.Tier, metadata map[string]any) error

	// History lists the user's records in the current billing period, newest first.
	History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.UsageRecord, error)

	// Tier resolves the user's subscription tier. Users without a profile
	// are on the free tier.
	Tier(ctx context.Context, userID uuid.UUID) (domain.Tier, error)

	// Limits returns the tier table the ledger was configured with.
	Limits() domain.TierLimitsTable
}

// LedgerConfig holds the immutable inputs of a ledger.
type LedgerConfig struct {
	Limits domain.TierLimitsTable
	Now    func() time.Time // Defaults to time.Now
}

// DefaultHistoryLimit caps History when no limit is given.
const DefaultHistoryLimit = 50

// =============================================================================
// Implementation
// =============================================================================

type usageLedger struct {
	profiles repository.ProfileStore
	usage    repository.UsageStore
	limits   domain.TierLimitsTable
	now      func() time.Time
	logger   *slog.Logger
}

// NewUsageLedger creates a new UsageLedger.
func NewUsageLedger(profiles repository.ProfileStore, usage repository.UsageStore, cfg LedgerConfig, logger *slog.Logger) UsageLedger {
	if cfg.Limits == nil {
		cfg.Limits = domain.DefaultTierLimits()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &usageLedger{
		profiles: profiles,
		usage:    usage,
		limits:   cfg.Limits,
		now:      cfg.Now,
		logger:   logger,
	}
}

func (l *usageLedger) Limits() domain.TierLimitsTable {
	return l.limits
}

// Snapshot returns the current usage snapshot for a user.
func (l *usageLedger) Snapshot(ctx context.Context, userID uuid.UUID) (*domain.UsageSnapshot, error) {
	const op = "ledger.snapshot"

	tier, err := l.tier(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to resolve subscription tier")
	}

	period := domain.CurrentBillingPeriod(l.now())

	counts, err := l.usage.CountUsageByCategory(ctx, userID, period.Start)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count usage")
	}

	return domain.NewUsageSnapshot(userID, tier, period, l.limits.For(tier), counts), nil
}

// RecordUsage appends one usage record.
func (l *usageLedger) RecordUsage(ctx context.Context, userID uuid.UUID, genType domain.GenerationType, tier domain.Tier, metadata map[string]any) error {
	const op = "ledger.record_usage"

	var raw json.RawMessage
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return domain.Internal(err, op, "failed to encode usage metadata")
		}
		raw = b
	}

	rec := domain.NewUsageRecord(userID, genType, tier, l.now(), raw)
	if err := l.usage.AppendUsage(ctx, rec); err != nil {
		return domain.Internal(err, op, "failed to append usage record")
	}

	l.logger.Debug("usage recorded",
		"user_id", userID,
		"type", genType,
		"category", rec.Category,
		"tier", tier,
	)

	return nil
}

// History lists the current period's records.
func (l *usageLedger) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.UsageRecord, error) {
	const op = "ledger.history"

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	period := domain.CurrentBillingPeriod(l.now())
	records, err := l.usage.ListUsage(ctx, userID, period.Start, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list usage")
	}
	return records, nil
}

// Tier resolves the user's subscription tier.
func (l *usageLedger) Tier(ctx context.Context, userID uuid.UUID) (domain.Tier, error) {
	const op = "ledger.tier"

	tier, err := l.tier(ctx, userID)
	if err != nil {
		return "", domain.Internal(err, op, "failed to resolve subscription tier")
	}
	return tier, nil
}

// tier resolves the user's tier. Users without a profile are on the free tier.
func (l *usageLedger) tier(ctx context.Context, userID uuid.UUID) (domain.Tier, error) {
	tier, err := l.profiles.GetTier(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.TierFree, nil
	}
	if err != nil {
		return "", err
	}
	if !tier.Valid() {
		return domain.TierFree, nil
	}
	return tier, nil
}
