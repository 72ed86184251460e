package domain

import (
	"strings"
)

// =============================================================================
// Output Shape
// =============================================================================

// Shape identifies the structured document a generation is expected to
// produce. Each shape has its own system prompt and schema check.
type Shape string

const (
	ShapeLessonPlan Shape = "lesson_plan"
	ShapeActivity   Shape = "activity"
	ShapeAssessment Shape = "assessment"
)

// ShapeFor returns the default output shape for a generation type.
func ShapeFor(t GenerationType) Shape {
	switch t {
	case TypeLessonPlan:
		return ShapeLessonPlan
	case TypeAssessment, TypeQuiz:
		return ShapeAssessment
	default:
		return ShapeActivity
	}
}

// Valid returns true if the shape is known.
func (s Shape) Valid() bool {
	switch s {
	case ShapeLessonPlan, ShapeActivity, ShapeAssessment:
		return true
	default:
		return false
	}
}

// =============================================================================
// Generation Request
// =============================================================================

const (
	MaxTopicLength         = 500
	MaxNotesLength         = 2000
	MaxDurationMinutes     = 480
	MaxQuestionCount       = 50
	DefaultDurationMinutes = 45
)

// GenerationRequest is the structured input for one content generation.
// Optional fields are left empty and omitted from the prompt.
type GenerationRequest struct {
	Type               GenerationType `json:"type"`
	Topic              string         `json:"topic"`
	GradeLevel         string         `json:"grade_level"`
	Subject            string         `json:"subject"`
	StandardCode       string         `json:"standard_code,omitempty"`
	Methodology        string         `json:"methodology,omitempty"`
	DurationMinutes    int            `json:"duration_minutes,omitempty"`
	AccessibilityNotes string         `json:"accessibility_notes,omitempty"`
	QuestionCount      int            `json:"question_count,omitempty"`
	Shape              Shape          `json:"shape,omitempty"`
}

// Normalize trims whitespace and fills the output shape from the type when
// it was not given.
func (r *GenerationRequest) Normalize() {
	r.Topic = strings.TrimSpace(r.Topic)
	r.GradeLevel = strings.TrimSpace(r.GradeLevel)
	r.Subject = strings.TrimSpace(r.Subject)
	r.StandardCode = strings.TrimSpace(r.StandardCode)
	r.Methodology = strings.TrimSpace(r.Methodology)
	r.AccessibilityNotes = strings.TrimSpace(r.AccessibilityNotes)
	if r.Shape == "" {
		r.Shape = ShapeFor(r.Type)
	}
}

// Validate checks the request and returns a ValidationError listing every
// offending field.
func (r *GenerationRequest) Validate() error {
	const op = "generation_request.validate"

	fields := map[string]string{}
	if !r.Type.Known() {
		fields["type"] = "unknown generation type"
	} else if r.Type == TypeFileUpload {
		fields["type"] = "file uploads are not generated"
	}
	if r.Topic == "" {
		fields["topic"] = "topic is required"
	} else if len(r.Topic) > MaxTopicLength {
		fields["topic"] = "topic is too long"
	}
	if r.GradeLevel == "" {
		fields["grade_level"] = "grade level is required"
	}
	if r.Subject == "" {
		fields["subject"] = "subject is required"
	}
	if r.DurationMinutes < 0 || r.DurationMinutes > MaxDurationMinutes {
		fields["duration_minutes"] = "duration must be between 0 and 480 minutes"
	}
	if r.QuestionCount < 0 || r.QuestionCount > MaxQuestionCount {
		fields["question_count"] = "question count must be between 0 and 50"
	}
	if len(r.AccessibilityNotes) > MaxNotesLength {
		fields["accessibility_notes"] = "accessibility notes are too long"
	}
	if r.Shape != "" && !r.Shape.Valid() {
		fields["shape"] = "unknown output shape"
	}

	if len(fields) > 0 {
		return &ValidationError{Op: op, Fields: fields}
	}
	return nil
}
