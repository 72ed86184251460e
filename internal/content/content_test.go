package content

import (
	"encoding/json"
	"testing"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(vs []ai.FieldViolation) map[string]string {
	m := make(map[string]string, len(vs))
	for _, v := range vs {
		m[v.Path] = v.Reason
	}
	return m
}

func TestSample_PassesChecks(t *testing.T) {
	for _, shape := range []domain.Shape{domain.ShapeLessonPlan, domain.ShapeActivity, domain.ShapeAssessment} {
		t.Run(string(shape), func(t *testing.T) {
			want := Sample(shape, "Fractions")
			raw, err := json.Marshal(want)
			require.NoError(t, err)

			got, err := Parse(shape, "```json\n"+string(raw)+"\n```")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParse_UnknownShape(t *testing.T) {
	_, err := Parse("essay", "{}")
	assert.Error(t, err)
}

func TestParse_ReturnsUntypedNilOnFailure(t *testing.T) {
	v, err := Parse(domain.ShapeActivity, "nope")
	require.Error(t, err)
	assert.Nil(t, v)
	assert.Equal(t, ai.KindSchemaViolation, ai.KindOf(err))
}

func TestCheckLessonPlan(t *testing.T) {
	p := Sample(domain.ShapeLessonPlan, "x").(*LessonPlan)
	assert.Empty(t, CheckLessonPlan(p))

	p.Title = " "
	p.DurationMinutes = 0
	p.Objectives = []string{"ok", ""}
	p.Sections[1].Blocks = nil
	got := paths(CheckLessonPlan(p))

	assert.Equal(t, ai.ReasonRequired, got["title"])
	assert.Equal(t, ai.ReasonOutOfRange, got["duration_minutes"])
	assert.Equal(t, ai.ReasonRequired, got["objectives[1]"])
	assert.Equal(t, ai.ReasonRequired, got["sections[1].blocks"])
	assert.Len(t, got, 4)
}

func TestCheckAssessment(t *testing.T) {
	a := Sample(domain.ShapeAssessment, "x").(*Assessment)
	assert.Empty(t, CheckAssessment(a))

	a.TotalPoints = 10
	a.Questions[0].Answer = "maybe"
	a.Questions[1].Answer = "D"
	got := paths(CheckAssessment(a))

	assert.Equal(t, ai.ReasonInvalidValue, got["total_points"])
	assert.Equal(t, ai.ReasonInvalidValue, got["questions[0].answer"])
	assert.Equal(t, ai.ReasonInvalidValue, got["questions[1].answer"])
}

func TestCheckAssessment_NoQuestions(t *testing.T) {
	got := paths(CheckAssessment(&Assessment{Title: "t", Instructions: "i"}))
	assert.Equal(t, ai.ReasonRequired, got["questions"])
}

func TestCheckBlock_TypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		block  string
		path   string
		reason string
	}{
		{"text with array", `{"type":"text","content":["a"]}`, "blocks[0].content", ai.ReasonTypeMismatch},
		{"list with string", `{"type":"list","content":"a, b"}`, "blocks[0].content", ai.ReasonTypeMismatch},
		{"questions with object", `{"type":"questions","content":{"prompt":"q"}}`, "blocks[0].content", ai.ReasonTypeMismatch},
		{"table with array", `{"type":"table","content":[["a"]]}`, "blocks[0].content", ai.ReasonTypeMismatch},
		{"table ragged rows", `{"type":"table","content":{"headers":["a","b"],"rows":[["1"]]}}`, "blocks[0].content.rows[0]", ai.ReasonInvalidValue},
		{"unknown type", `{"type":"video","content":"x"}`, "blocks[0].type", ai.ReasonInvalidValue},
		{"missing type", `{"content":"x"}`, "blocks[0].type", ai.ReasonRequired},
		{"missing content", `{"type":"text"}`, "blocks[0].content", ai.ReasonRequired},
		{"null content", `{"type":"text","content":null}`, "blocks[0].content", ai.ReasonRequired},
		{"empty text", `{"type":"text","content":""}`, "blocks[0].content", ai.ReasonRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"title":"t","instructions":"i","objectives":["o"],"estimated_minutes":5,"blocks":[` + tt.block + `]}`
			_, err := Parse(domain.ShapeActivity, raw)
			require.Error(t, err)

			e, ok := ai.AsError(err)
			require.True(t, ok)
			assert.True(t, e.Retryable)
			assert.Equal(t, tt.reason, paths(e.Violations)[tt.path])
		})
	}
}

func TestCheckBlock_ValidQuestionsBlock(t *testing.T) {
	a := &Activity{
		Title:            "t",
		Instructions:     "i",
		Objectives:       []string{"o"},
		EstimatedMinutes: 5,
		Blocks: []Block{QuestionsBlock(Question{
			Prompt: "2+2?", Type: QuestionShortAnswer, Answer: "4", Points: 1,
		})},
	}
	assert.Empty(t, CheckActivity(a))
}
