package prompt

import (
	"strings"
	"testing"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		Type:               domain.TypeLessonPlan,
		Topic:              "Photosynthesis",
		GradeLevel:         "5",
		Subject:            "life science",
		StandardCode:       "NGSS 5-LS1-1",
		Methodology:        "inquiry-based",
		DurationMinutes:    45,
		AccessibilityNotes: "two students use screen readers",
	}
}

func TestBuild_TwoMessages(t *testing.T) {
	msgs := Build(fullRequest())
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Equal(t, ai.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[0].Content, DocumentTypeMarker+string(domain.ShapeLessonPlan))
}

func TestBuild_Deterministic(t *testing.T) {
	a := Build(fullRequest())
	b := Build(fullRequest())
	assert.Equal(t, a, b)
}

func TestUserMessage_FieldOrder(t *testing.T) {
	got := UserMessage(fullRequest())

	want := strings.Join([]string{
		"Create a lesson plan.",
		"Topic: Photosynthesis",
		"Grade level: grade 5",
		"Subject: Life Science",
		"Align to standard: NGSS 5-LS1-1",
		"Teaching methodology: inquiry-based",
		"Duration: 45 minutes",
		"Accessibility needs: two students use screen readers",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestUserMessage_OmitsEmptyOptionalFields(t *testing.T) {
	got := UserMessage(domain.GenerationRequest{
		Type:       domain.TypeQuiz,
		Topic:      "Fractions",
		GradeLevel: "Kindergarten",
		Subject:    "math",
	})

	assert.Equal(t, "Create a short quiz.\nTopic: Fractions\nGrade level: Kindergarten\nSubject: Math", got)
	assert.NotContains(t, got, "standard")
	assert.NotContains(t, got, "Duration")
}

func TestUserMessage_QuestionCount(t *testing.T) {
	req := fullRequest()
	req.Type = domain.TypeAssessment
	req.QuestionCount = 10
	assert.Contains(t, UserMessage(req), "Number of questions: 10")
}

func TestSubjectLabel_KeepsAcronyms(t *testing.T) {
	assert.Equal(t, "AP Biology", subjectLabel("AP biology"))
	assert.Equal(t, "Math", subjectLabel("math"))
}

func TestSystemMessage_PerShape(t *testing.T) {
	lesson := SystemMessage(domain.ShapeLessonPlan)
	activity := SystemMessage(domain.ShapeActivity)
	assessment := SystemMessage(domain.ShapeAssessment)

	assert.Contains(t, lesson, `"sections"`)
	assert.Contains(t, activity, `"estimated_minutes"`)
	assert.Contains(t, assessment, `"total_points"`)
	assert.NotEqual(t, lesson, activity)

	assert.Equal(t, activity, SystemMessage("unknown"))
}

func TestBuild_ShapeOverride(t *testing.T) {
	req := fullRequest()
	req.Type = domain.TypeQuiz
	req.Shape = domain.ShapeActivity
	msgs := Build(req)
	assert.Contains(t, msgs[0].Content, DocumentTypeMarker+string(domain.ShapeActivity))
}

func TestBuildRefinement_ActionSelection(t *testing.T) {
	msgs, err := BuildRefinement("texto longo", ActionSimplify, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	user := msgs[1].Content
	assert.True(t, strings.HasPrefix(user, ActionSimplify.Instruction()))
	assert.NotContains(t, user, ActionExpand.Instruction())
	assert.NotContains(t, user, ActionRewrite.Instruction())
	assert.NotContains(t, user, ActionEngage.Instruction())
	assert.True(t, strings.HasSuffix(user, "texto longo"))
	assert.NotContains(t, user, "Context:")
}

func TestBuildRefinement_DistinctTemplates(t *testing.T) {
	seen := map[string]Action{}
	for _, a := range Actions {
		require.True(t, a.Valid())
		instr := a.Instruction()
		require.NotEmpty(t, instr)
		_, dup := seen[instr]
		assert.False(t, dup, "action %s shares a template", a)
		seen[instr] = a
	}
}

func TestBuildRefinement_Context(t *testing.T) {
	msgs, err := BuildRefinement("The cell is small.", ActionExpand, "  grade 3 science worksheet ")
	require.NoError(t, err)
	assert.Contains(t, msgs[1].Content, "Context: grade 3 science worksheet\n\nPassage:\nThe cell is small.")
}

func TestBuildRefinement_UnknownAction(t *testing.T) {
	_, err := BuildRefinement("x", "summarize", "")
	assert.Error(t, err)
}
