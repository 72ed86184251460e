package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tiers   map[uuid.UUID]domain.Tier
	records []domain.UsageRecord

	// Injected faults for testing
	GetTierErr error
	CountErr   error
	AppendErr  error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tiers: make(map[uuid.UUID]domain.Tier),
	}
}

// SetTier sets the user's tier.
func (s *MemoryStore) SetTier(_ context.Context, userID uuid.UUID, tier domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[userID] = tier
	return nil
}

// GetTier returns the user's tier.
func (s *MemoryStore) GetTier(_ context.Context, userID uuid.UUID) (domain.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.GetTierErr != nil {
		return "", s.GetTierErr
	}
	tier, ok := s.tiers[userID]
	if !ok {
		return "", ErrNotFound
	}
	return tier, nil
}

// AppendUsage stores one usage record.
func (s *MemoryStore) AppendUsage(_ context.Context, rec domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.records = append(s.records, rec)
	return nil
}

// CountUsageByCategory counts the user's records since the given instant.
func (s *MemoryStore) CountUsageByCategory(_ context.Context, userID uuid.UUID, since time.Time) (map[domain.LimitCategory]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.CountErr != nil {
		return nil, s.CountErr
	}

	counts := make(map[domain.LimitCategory]int64)
	for _, r := range s.records {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			counts[r.Category]++
		}
	}
	return counts, nil
}

// ListUsage returns recent records for the user, newest first.
func (s *MemoryStore) ListUsage(_ context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.UsageRecord
	for _, r := range s.records {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.UsageRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns a copy of every stored record.
func (s *MemoryStore) Records() []domain.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}
