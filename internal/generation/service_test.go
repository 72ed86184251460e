package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/ai/mock"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/prompt"
	"github.com/DukeRupert/aula/internal/repository"
	"github.com/DukeRupert/aula/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *repository.MemoryStore
	provider *mock.Provider
	svc      *Service
	now      time.Time
	user     uuid.UUID
}

func newFixture(t *testing.T, gateCfg service.GateConfig, svcCfg ServiceConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		provider: mock.New(discardLogger()),
		now:      time.Date(2026, time.March, 31, 22, 0, 0, 0, time.UTC),
		user:     uuid.New(),
	}
	ledger := service.NewUsageLedger(f.store, f.store, service.LedgerConfig{
		Limits: domain.DefaultTierLimits(),
		Now:    func() time.Time { return f.now },
	}, discardLogger())
	gate := service.NewQuotaGate(ledger, gateCfg, discardLogger())
	o, _ := newTestOrchestrator(f.provider)
	f.svc = NewService(o, gate, svcCfg, discardLogger())
	return f
}

func (f *fixture) seed(t *testing.T, genType domain.GenerationType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := domain.NewUsageRecord(f.user, genType, domain.TierFree, f.now.Add(-time.Hour), nil)
		require.NoError(t, f.store.AppendUsage(context.Background(), rec))
	}
}

func TestService_GenerateRecordsUsage(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})

	out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)

	g, ok := out.(Generated)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, domain.CategoryLessonPlans, g.Category)
	assert.Equal(t, int64(1), g.Usage)
	require.NotNil(t, g.Limit)
	assert.Equal(t, 5, *g.Limit)
	assert.Equal(t, domain.TierFree, g.Tier)
	assert.True(t, g.Recorded)

	records := f.store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.TypeLessonPlan, records[0].GenerationType)
	assert.Equal(t, domain.CategoryLessonPlans, records[0].Category)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(records[0].Metadata, &meta))
	assert.Equal(t, "Photosynthesis", meta["topic"])
	assert.Equal(t, float64(1), meta["attempts"])
	assert.Equal(t, "mock-ai-v1", meta["model"])
}

func TestService_DeniedAtLimit(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.seed(t, domain.TypeLessonPlan, 5)

	out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)

	denied, ok := out.(LimitExceeded)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, domain.LimitExceededInfo{
		LimitType:    domain.CategoryLessonPlans,
		CurrentUsage: 5,
		Limit:        5,
		Tier:         domain.TierFree,
	}, denied.Info)

	assert.Equal(t, 0, f.provider.Calls())
	assert.Len(t, f.store.Records(), 5)
}

func TestService_OtherCategoriesUnaffected(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.seed(t, domain.TypeLessonPlan, 5)

	req := lessonRequest()
	req.Type = domain.TypeQuiz
	req.Shape = ""
	req.Normalize()

	out, err := f.svc.Generate(context.Background(), f.user, req, Options{})
	require.NoError(t, err)
	assert.IsType(t, Generated{}, out)
}

func TestService_DenyThenAllowAfterPeriodReset(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.seed(t, domain.TypeLessonPlan, 5)

	out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)
	assert.IsType(t, LimitExceeded{}, out)

	f.now = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	out, err = f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)
	g, ok := out.(Generated)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, int64(1), g.Usage)
}

func TestService_UnlimitedTierBypass(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	require.NoError(t, f.store.SetTier(context.Background(), f.user, domain.TierEnterprise))
	f.seed(t, domain.TypeLessonPlan, 500)

	out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)
	g, ok := out.(Generated)
	require.True(t, ok, "got %T", out)
	assert.Nil(t, g.Limit)
	assert.Equal(t, domain.TierEnterprise, g.Tier)
}

func TestService_FailureIsNotRecorded(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.provider.Enqueue(mock.Response{Err: ai.ContentFiltered("blocked")})

	out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)

	failed, ok := out.(Failed)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, ai.KindContentFiltered, failed.Kind())
	assert.Empty(t, f.store.Records())
}

func TestService_CanceledIsNotRecorded(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The ledger read ignores ctx in the memory store, so the gate allows
	// and the provider sees the canceled context.
	out, err := f.svc.Generate(ctx, f.user, lessonRequest(), Options{})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.Records())
}

func TestService_ValidationError(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})

	out, err := f.svc.Generate(context.Background(), f.user, domain.GenerationRequest{Type: "poem"}, Options{})
	assert.Nil(t, out)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "type")
	assert.Contains(t, ve.Fields, "topic")
	assert.Equal(t, 0, f.provider.Calls())
}

func TestService_LedgerReadFailure(t *testing.T) {
	t.Run("fail open keeps the user's tier", func(t *testing.T) {
		f := newFixture(t, service.GateConfig{}, ServiceConfig{})
		require.NoError(t, f.store.SetTier(context.Background(), f.user, domain.TierPremium))
		f.store.CountErr = errors.New("connection refused")

		out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, f.provider.Calls())

		g, ok := out.(Generated)
		require.True(t, ok, "got %T", out)
		assert.True(t, g.Recorded)
		assert.Empty(t, g.Tier, "no quota to report while counts are unreadable")
		assert.Nil(t, g.Limit)
		assert.Zero(t, g.Usage)

		records := f.store.Records()
		require.Len(t, records, 1)
		assert.Equal(t, domain.TierPremium, records[0].Tier)
	})

	t.Run("fail open without a profile falls back to free", func(t *testing.T) {
		f := newFixture(t, service.GateConfig{}, ServiceConfig{})
		f.store.GetTierErr = errors.New("connection refused")

		out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
		require.NoError(t, err)

		g, ok := out.(Generated)
		require.True(t, ok, "got %T", out)
		assert.Empty(t, g.Tier)

		records := f.store.Records()
		require.Len(t, records, 1)
		assert.Equal(t, domain.TierFree, records[0].Tier)
	})

	t.Run("fail closed", func(t *testing.T) {
		f := newFixture(t, service.GateConfig{FailClosed: true}, ServiceConfig{})
		f.store.CountErr = errors.New("connection refused")

		out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
		assert.Nil(t, out)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
		assert.Equal(t, 0, f.provider.Calls())
	})
}

func TestService_RecordFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.store.AppendErr = errors.New("disk full")

	out, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	require.NoError(t, err)

	g, ok := out.(Generated)
	require.True(t, ok, "got %T", out)
	assert.False(t, g.Recorded)
	assert.Empty(t, f.store.Records())
}

func TestService_NotConfigured(t *testing.T) {
	svc := NewService(nil, nil, ServiceConfig{}, discardLogger())

	_, err := svc.Generate(context.Background(), uuid.New(), lessonRequest(), Options{})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	_, err = svc.Refine(context.Background(), uuid.New(), RefineRequest{Text: "x", Action: prompt.ActionRewrite}, Options{})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestService_ProviderNotConfigured(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.provider.Enqueue(mock.Response{Err: ai.ErrNotConfigured})

	_, err := f.svc.Generate(context.Background(), f.user, lessonRequest(), Options{})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Empty(t, f.store.Records())
}

func TestService_RefineUnmeteredByDefault(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})
	f.seed(t, domain.TypeActivity, 10)

	out, err := f.svc.Refine(context.Background(), f.user, RefineRequest{
		Text:   "Plants make food.",
		Action: prompt.ActionSimplify,
	}, Options{})
	require.NoError(t, err)

	g, ok := out.(Generated)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "This is the refined passage.", g.Result.Content)
	assert.Len(t, f.store.Records(), 10)
}

func TestService_RefineMetered(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{MeterRefinement: true})

	out, err := f.svc.Refine(context.Background(), f.user, RefineRequest{
		Text:   "Plants make food.",
		Action: prompt.ActionExpand,
	}, Options{})
	require.NoError(t, err)
	assert.IsType(t, Generated{}, out)

	records := f.store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.TypeRefinement, records[0].GenerationType)
	assert.Equal(t, domain.CategoryActivities, records[0].Category)

	f.seed(t, domain.TypeActivity, 9)
	out, err = f.svc.Refine(context.Background(), f.user, RefineRequest{
		Text:   "Plants make food.",
		Action: prompt.ActionExpand,
	}, Options{})
	require.NoError(t, err)
	assert.IsType(t, LimitExceeded{}, out)
}

func TestService_RefineValidation(t *testing.T) {
	f := newFixture(t, service.GateConfig{}, ServiceConfig{})

	_, err := f.svc.Refine(context.Background(), f.user, RefineRequest{Text: "  ", Action: "shorten"}, Options{})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "text")
	assert.Contains(t, ve.Fields, "action")
	assert.Equal(t, 0, f.provider.Calls())
}
