package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetTier(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()

	_, err := s.GetTier(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetTier(ctx, userID, domain.TierPremium))
	tier, err := s.GetTier(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPremium, tier)
}

func TestMemoryStore_CountUsageByCategory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()
	other := uuid.New()
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	add := func(u uuid.UUID, gt domain.GenerationType, at time.Time) {
		require.NoError(t, s.AppendUsage(ctx, domain.NewUsageRecord(u, gt, domain.TierFree, at, nil)))
	}
	add(userID, domain.TypeLessonPlan, since)
	add(userID, domain.TypeLessonPlan, since.Add(time.Hour))
	add(userID, domain.TypeQuiz, since.Add(2*time.Hour))
	add(userID, domain.TypeWorksheet, since.Add(-time.Second))
	add(other, domain.TypeLessonPlan, since.Add(time.Hour))

	counts, err := s.CountUsageByCategory(ctx, userID, since)
	require.NoError(t, err)
	assert.Equal(t, map[domain.LimitCategory]int64{
		domain.CategoryLessonPlans: 2,
		domain.CategoryActivities:  1,
	}, counts)
}

func TestMemoryStore_ListUsage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendUsage(ctx, domain.NewUsageRecord(userID, domain.TypeActivity, domain.TierFree, base.Add(time.Duration(i)*time.Minute), nil)))
	}

	recs, err := s.ListUsage(ctx, userID, base, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].CreatedAt.After(recs[1].CreatedAt))
	assert.Equal(t, base.Add(4*time.Minute), recs[0].CreatedAt)
}
