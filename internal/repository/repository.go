// Package repository provides persistence for subscription profiles and
// usage records.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// ProfileStore resolves a user's subscription tier.
type ProfileStore interface {
	// GetTier returns the user's tier, or ErrNotFound if the user has no profile.
	GetTier(ctx context.Context, userID uuid.UUID) (domain.Tier, error)
}

// UsageStore is the append-only usage ledger.
type UsageStore interface {
	// AppendUsage stores one usage record.
	AppendUsage(ctx context.Context, rec domain.UsageRecord) error

	// CountUsageByCategory counts the user's records created at or after
	// since, grouped by category. Categories without records are absent.
	CountUsageByCategory(ctx context.Context, userID uuid.UUID, since time.Time) (map[domain.LimitCategory]int64, error)

	// ListUsage returns the user's records created at or after since, newest
	// first, at most limit rows.
	ListUsage(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.UsageRecord, error)
}

// Store combines both stores.
type Store interface {
	ProfileStore
	UsageStore
}
