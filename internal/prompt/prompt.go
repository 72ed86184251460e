// Package prompt assembles the message lists sent to the model. Output is a
// pure function of its input: identical requests always produce
// byte-identical messages.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DocumentTypeMarker prefixes the shape name in structured system prompts.
const DocumentTypeMarker = "Document type: "

const persona = `You are an experienced classroom teacher and instructional designer who writes clear, accurate, age-appropriate teaching materials.`

const outputContract = `Respond with a single JSON object and nothing else. Do not wrap it in prose. Use only the fields described below, with the exact names and types given.`

const pedagogy = `Rules:
- Match vocabulary and difficulty to the stated grade level.
- Keep every fact accurate; if unsure, leave it out.
- Write inclusive examples and avoid stereotypes.
- Objectives must be observable and measurable.`

const blockSchema = `A block is {"type": "text"|"list"|"questions"|"table", "content": ...} where content is a string for text, an array of strings for list, an array of questions for questions, and {"headers": [string], "rows": [[string]]} for table. Each table row has one cell per header.`

const questionSchema = `A question is {"prompt": string, "type": "multiple_choice"|"true_false"|"short_answer"|"essay", "options": [string], "answer": string, "points": integer}. Multiple choice questions have at least two options and the answer is one of them. True/false answers are "true" or "false".`

var schemas = map[domain.Shape]string{
	domain.ShapeLessonPlan: `Fields:
{"title": string, "overview": string, "grade_level": string, "subject": string, "duration_minutes": integer, "objectives": [string], "standards": [string], "materials": [string], "sections": [{"title": string, "duration_minutes": integer, "blocks": [block]}], "differentiation": [string], "assessment": string}
` + blockSchema + `
` + questionSchema,

	domain.ShapeActivity: `Fields:
{"title": string, "instructions": string, "objectives": [string], "estimated_minutes": integer, "blocks": [block]}
` + blockSchema + `
` + questionSchema,

	domain.ShapeAssessment: `Fields:
{"title": string, "instructions": string, "questions": [question], "total_points": integer}
` + questionSchema + `
total_points equals the sum of all question points.`,
}

// SystemMessage returns the fixed system instruction for an output shape.
func SystemMessage(shape domain.Shape) string {
	schema, ok := schemas[shape]
	if !ok {
		shape = domain.ShapeActivity
		schema = schemas[shape]
	}
	return strings.Join([]string{
		persona,
		DocumentTypeMarker + string(shape),
		outputContract,
		schema,
		pedagogy,
	}, "\n\n")
}

// Build returns the two-message list for a generation request: the system
// instruction for its shape followed by the user instruction.
func Build(req domain.GenerationRequest) []ai.Message {
	shape := req.Shape
	if shape == "" {
		shape = domain.ShapeFor(req.Type)
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: SystemMessage(shape)},
		{Role: ai.RoleUser, Content: UserMessage(req)},
	}
}

// UserMessage renders the request fields in a fixed order. Empty optional
// fields are omitted.
func UserMessage(req domain.GenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create %s.\n", describeType(req.Type))
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Grade level: %s\n", gradeLabel(req.GradeLevel))
	fmt.Fprintf(&b, "Subject: %s\n", subjectLabel(req.Subject))
	if req.StandardCode != "" {
		fmt.Fprintf(&b, "Align to standard: %s\n", req.StandardCode)
	}
	if req.Methodology != "" {
		fmt.Fprintf(&b, "Teaching methodology: %s\n", req.Methodology)
	}
	if req.DurationMinutes > 0 {
		fmt.Fprintf(&b, "Duration: %d minutes\n", req.DurationMinutes)
	}
	if req.QuestionCount > 0 {
		fmt.Fprintf(&b, "Number of questions: %d\n", req.QuestionCount)
	}
	if req.AccessibilityNotes != "" {
		fmt.Fprintf(&b, "Accessibility needs: %s\n", req.AccessibilityNotes)
	}

	return strings.TrimRight(b.String(), "\n")
}

func describeType(t domain.GenerationType) string {
	switch t {
	case domain.TypeLessonPlan:
		return "a lesson plan"
	case domain.TypeWorksheet:
		return "a printable worksheet"
	case domain.TypeQuiz:
		return "a short quiz"
	case domain.TypeReading:
		return "a reading passage with comprehension tasks"
	case domain.TypeSlides:
		return "a slide outline, one block per slide"
	case domain.TypeAssessment:
		return "an assessment with an answer key"
	default:
		return "a classroom activity"
	}
}

// subjectLabel title-cases a subject without lowering acronyms. A Caser is
// stateful, so one is made per call.
func subjectLabel(subject string) string {
	return cases.Title(language.English, cases.NoLower).String(subject)
}

// gradeLabel turns a bare grade number into "grade N".
func gradeLabel(grade string) string {
	if _, err := strconv.Atoi(grade); err == nil {
		return "grade " + grade
	}
	return grade
}
