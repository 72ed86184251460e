// Package domain contains core business types and interfaces.
//
// This file defines the quota model: per-tier limits, the monthly billing
// period, and the usage snapshot the quota gate decides on.
package domain

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Tier Limits
// =============================================================================

// TierLimits defines the monthly limits and capabilities of a subscription tier.
// A nil entry (or a missing category) in Limits means unlimited.
type TierLimits struct {
	Limits         map[LimitCategory]*int `yaml:"limits"`
	MaxUploadBytes int64                  `yaml:"max_upload_bytes"`
	ExportFormats  []string               `yaml:"export_formats"`
}

// Limit returns the configured limit for a category, or nil if unlimited.
func (l TierLimits) Limit(c LimitCategory) *int {
	if l.Limits == nil {
		return nil
	}
	return l.Limits[c]
}

// CanExport reports whether the tier may export in the given format.
func (l TierLimits) CanExport(format string) bool {
	return slices.Contains(l.ExportFormats, format)
}

// TierLimitsTable maps each tier to its limits. It is static configuration and
// must not be modified after it is handed to a service.
type TierLimitsTable map[Tier]TierLimits

// For returns the limits for a tier, defaulting to the free tier for unknown tiers.
func (t TierLimitsTable) For(tier Tier) TierLimits {
	if limits, ok := t[tier]; ok {
		return limits
	}
	return t[TierFree]
}

// LimitOf is a small helper for building limit tables.
func LimitOf(n int) *int {
	return &n
}

// DefaultTierLimits returns the built-in limits table. Free tier is capped
// everywhere, premium has generous caps, enterprise is unlimited.
func DefaultTierLimits() TierLimitsTable {
	return TierLimitsTable{
		TierFree: {
			Limits: map[LimitCategory]*int{
				CategoryLessonPlans: LimitOf(5),
				CategoryActivities:  LimitOf(10),
				CategoryAssessments: LimitOf(5),
				CategoryFileUploads: LimitOf(3),
			},
			MaxUploadBytes: 5 * 1024 * 1024,
			ExportFormats:  []string{"pdf"},
		},
		TierPremium: {
			Limits: map[LimitCategory]*int{
				CategoryLessonPlans: LimitOf(100),
				CategoryActivities:  LimitOf(200),
				CategoryAssessments: LimitOf(100),
				CategoryFileUploads: LimitOf(50),
			},
			MaxUploadBytes: 25 * 1024 * 1024,
			ExportFormats:  []string{"pdf", "docx", "pptx"},
		},
		TierEnterprise: {
			Limits: map[LimitCategory]*int{
				CategoryLessonPlans: nil,
				CategoryActivities:  nil,
				CategoryAssessments: nil,
				CategoryFileUploads: nil,
			},
			MaxUploadBytes: 100 * 1024 * 1024,
			ExportFormats:  []string{"pdf", "docx", "pptx", "html"},
		},
	}
}

// =============================================================================
// Billing Period
// =============================================================================

// BillingPeriod is the calendar month (UTC) over which usage is counted.
// End is exclusive: it is the first instant of the following month.
type BillingPeriod struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DaysRemaining int       `json:"days_remaining"`
}

// CurrentBillingPeriod returns the billing period containing now.
func CurrentBillingPeriod(now time.Time) BillingPeriod {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	days := int(math.Ceil(end.Sub(now).Hours() / 24))
	return BillingPeriod{
		Start:         start,
		End:           end,
		DaysRemaining: days,
	}
}

// Contains reports whether t falls inside the period.
func (p BillingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// =============================================================================
// Usage Snapshot
// =============================================================================

// CategoryUsage pairs the usage count of a category with the tier's limit.
type CategoryUsage struct {
	Used  int64
	Limit *int // nil means unlimited
}

// Unlimited reports whether the category has no limit.
func (u CategoryUsage) Unlimited() bool {
	return u.Limit == nil
}

// Allowed reports whether one more unit may be consumed.
func (u CategoryUsage) Allowed() bool {
	return u.Limit == nil || u.Used < int64(*u.Limit)
}

// Percentage returns usage as a percentage in [0,100]. Unlimited categories
// always report 0.
func (u CategoryUsage) Percentage() float64 {
	if u.Limit == nil {
		return 0
	}
	if *u.Limit <= 0 {
		return 100
	}
	return math.Min(100, 100*float64(u.Used)/float64(*u.Limit))
}

// Remaining returns how many units are left. The second result is true when
// the category is unlimited.
func (u CategoryUsage) Remaining() (int64, bool) {
	if u.Limit == nil {
		return 0, true
	}
	left := int64(*u.Limit) - u.Used
	if left < 0 {
		left = 0
	}
	return left, false
}

// UsageSnapshot is a user's usage for every category in the current billing
// period. It is derived on demand and never cached beyond a single request.
type UsageSnapshot struct {
	UserID     uuid.UUID
	Tier       Tier
	Period     BillingPeriod
	Categories map[LimitCategory]CategoryUsage
}

// NewUsageSnapshot pairs raw per-category counts with the tier's limits.
// Categories missing from counts are reported with zero usage.
func NewUsageSnapshot(userID uuid.UUID, tier Tier, period BillingPeriod, limits TierLimits, counts map[LimitCategory]int64) *UsageSnapshot {
	categories := make(map[LimitCategory]CategoryUsage, len(AllCategories))
	for _, c := range AllCategories {
		categories[c] = CategoryUsage{
			Used:  counts[c],
			Limit: limits.Limit(c),
		}
	}
	return &UsageSnapshot{
		UserID:     userID,
		Tier:       tier,
		Period:     period,
		Categories: categories,
	}
}

// Usage returns the usage entry for a category.
func (s *UsageSnapshot) Usage(c LimitCategory) CategoryUsage {
	return s.Categories[c]
}

// CheckLimit reports whether the category allows one more generation.
func (s *UsageSnapshot) CheckLimit(c LimitCategory) bool {
	return s.Usage(c).Allowed()
}

// UsagePercentage returns min(100, 100*used/limit), or 0 when unlimited.
func (s *UsageSnapshot) UsagePercentage(c LimitCategory) float64 {
	return s.Usage(c).Percentage()
}

// Remaining returns the units left for a category; see CategoryUsage.Remaining.
func (s *UsageSnapshot) Remaining(c LimitCategory) (int64, bool) {
	return s.Usage(c).Remaining()
}

// =============================================================================
// Limit Exceeded
// =============================================================================

// LimitExceededInfo describes a quota denial. It drives the upgrade prompt
// shown to the user.
type LimitExceededInfo struct {
	LimitType    LimitCategory `json:"limit_type"`
	CurrentUsage int64         `json:"current_usage"`
	Limit        int           `json:"limit"`
	Tier         Tier          `json:"tier"`
}
