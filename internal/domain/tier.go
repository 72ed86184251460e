package domain

// =============================================================================
// Tier
// =============================================================================

// Tier is the subscription level that determines quota limits and export
// capabilities.
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Valid returns true if the tier is one of the known subscription tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierEnterprise:
		return true
	default:
		return false
	}
}

// ParseTier converts a stored tier name into a Tier, falling back to the free
// tier for empty or unknown values.
func ParseTier(s string) Tier {
	t := Tier(s)
	if !t.Valid() {
		return TierFree
	}
	return t
}

func (t Tier) String() string {
	return string(t)
}

// =============================================================================
// Limit Category
// =============================================================================

// LimitCategory is a coarse bucket of generation types that share one
// monthly quota counter.
type LimitCategory string

const (
	CategoryLessonPlans LimitCategory = "lessonPlans"
	CategoryActivities  LimitCategory = "activities"
	CategoryAssessments LimitCategory = "assessments"
	CategoryFileUploads LimitCategory = "fileUploads"
)

// AllCategories lists every limit category in display order.
var AllCategories = []LimitCategory{
	CategoryLessonPlans,
	CategoryActivities,
	CategoryAssessments,
	CategoryFileUploads,
}

// Valid returns true if the category is a known limit category.
func (c LimitCategory) Valid() bool {
	switch c {
	case CategoryLessonPlans, CategoryActivities, CategoryAssessments, CategoryFileUploads:
		return true
	default:
		return false
	}
}

func (c LimitCategory) String() string {
	return string(c)
}

// =============================================================================
// Generation Type
// =============================================================================

// GenerationType is the fine-grained kind of content a caller asks for.
type GenerationType string

const (
	TypeLessonPlan GenerationType = "lesson-plan"
	TypeActivity   GenerationType = "activity"
	TypeWorksheet  GenerationType = "worksheet"
	TypeQuiz       GenerationType = "quiz"
	TypeReading    GenerationType = "reading"
	TypeSlides     GenerationType = "slides"
	TypeAssessment GenerationType = "assessment"
	TypeFileUpload GenerationType = "file-upload"

	// TypeRefinement tags refinement calls when refinement metering is
	// enabled. It has no explicit category and falls back to activities.
	TypeRefinement GenerationType = "refinement"
)

// GenerationTypes lists the generation types with an explicit category.
var GenerationTypes = []GenerationType{
	TypeLessonPlan,
	TypeActivity,
	TypeWorksheet,
	TypeQuiz,
	TypeReading,
	TypeSlides,
	TypeAssessment,
	TypeFileUpload,
}

var categoryByType = map[GenerationType]LimitCategory{
	TypeLessonPlan: CategoryLessonPlans,
	TypeActivity:   CategoryActivities,
	TypeWorksheet:  CategoryActivities,
	TypeQuiz:       CategoryActivities,
	TypeReading:    CategoryActivities,
	TypeSlides:     CategoryActivities,
	TypeAssessment: CategoryAssessments,
	TypeFileUpload: CategoryFileUploads,
}

// CategoryFor maps a generation type onto the limit category whose counter
// it consumes. Unmapped types count against activities.
func CategoryFor(t GenerationType) LimitCategory {
	if c, ok := categoryByType[t]; ok {
		return c
	}
	return CategoryActivities
}

// Known returns true if the type has an explicit category mapping.
func (t GenerationType) Known() bool {
	_, ok := categoryByType[t]
	return ok
}

func (t GenerationType) String() string {
	return string(t)
}
