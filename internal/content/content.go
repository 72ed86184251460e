// Package content defines the structured documents the model is asked to
// produce and the shape checks applied to them.
package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/domain"
)

// =============================================================================
// Documents
// =============================================================================

// LessonPlan is a complete plan for one lesson.
type LessonPlan struct {
	Title           string    `json:"title"`
	Overview        string    `json:"overview"`
	GradeLevel      string    `json:"grade_level"`
	Subject         string    `json:"subject"`
	DurationMinutes int       `json:"duration_minutes"`
	Objectives      []string  `json:"objectives"`
	Standards       []string  `json:"standards,omitempty"`
	Materials       []string  `json:"materials"`
	Sections        []Section `json:"sections"`
	Differentiation []string  `json:"differentiation,omitempty"`
	Assessment      string    `json:"assessment"`
}

// Section is a timed phase of a lesson.
type Section struct {
	Title           string  `json:"title"`
	DurationMinutes int     `json:"duration_minutes"`
	Blocks          []Block `json:"blocks"`
}

// Activity is a classroom activity, worksheet, reading or slide deck.
type Activity struct {
	Title            string   `json:"title"`
	Instructions     string   `json:"instructions"`
	Objectives       []string `json:"objectives"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Blocks           []Block  `json:"blocks"`
}

// Assessment is a quiz or test with an answer key.
type Assessment struct {
	Title        string     `json:"title"`
	Instructions string     `json:"instructions"`
	Questions    []Question `json:"questions"`
	TotalPoints  int        `json:"total_points"`
}

// QuestionType enumerates supported question formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// Question is one assessment item.
type Question struct {
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Answer  string       `json:"answer,omitempty"`
	Points  int          `json:"points"`
}

// =============================================================================
// Blocks
// =============================================================================

// BlockType tags the payload of a Block.
type BlockType string

const (
	BlockText      BlockType = "text"      // content is a string
	BlockList      BlockType = "list"      // content is an array of strings
	BlockQuestions BlockType = "questions" // content is an array of Question
	BlockTable     BlockType = "table"     // content is a Table
)

// Block is a tagged unit of content. The Type tag declares the shape of
// Content; a mismatch is reported as a type_mismatch violation.
type Block struct {
	Type    BlockType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Table is the payload of a table block.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// TextBlock builds a text block.
func TextBlock(s string) Block {
	return newBlock(BlockText, s)
}

// ListBlock builds a list block.
func ListBlock(items ...string) Block {
	return newBlock(BlockList, items)
}

// QuestionsBlock builds a questions block.
func QuestionsBlock(qs ...Question) Block {
	return newBlock(BlockQuestions, qs)
}

// TableBlock builds a table block.
func TableBlock(t Table) Block {
	return newBlock(BlockTable, t)
}

func newBlock(t BlockType, v any) Block {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("content: marshal %s block: %v", t, err))
	}
	return Block{Type: t, Content: b}
}

// =============================================================================
// Parsing
// =============================================================================

// Parse validates raw model output against the document type for shape.
func Parse(shape domain.Shape, raw string) (any, error) {
	switch shape {
	case domain.ShapeLessonPlan:
		return parse(raw, CheckLessonPlan)
	case domain.ShapeAssessment:
		return parse(raw, CheckAssessment)
	case domain.ShapeActivity:
		return parse(raw, CheckActivity)
	default:
		return nil, fmt.Errorf("content: unknown shape %q", shape)
	}
}

func parse[T any](raw string, check func(*T) []ai.FieldViolation) (any, error) {
	v, err := ai.Validate(raw, check)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// =============================================================================
// Checks
// =============================================================================

type checker struct {
	violations []ai.FieldViolation
}

func (c *checker) add(path, reason string) {
	c.violations = append(c.violations, ai.FieldViolation{Path: path, Reason: reason})
}

func (c *checker) required(path, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(path, ai.ReasonRequired)
	}
}

func (c *checker) nonEmpty(path string, items []string) {
	if len(items) == 0 {
		c.add(path, ai.ReasonRequired)
		return
	}
	for i, s := range items {
		c.required(fmt.Sprintf("%s[%d]", path, i), s)
	}
}

func (c *checker) rangeInt(path string, v, lo, hi int) {
	if v < lo || v > hi {
		c.add(path, ai.ReasonOutOfRange)
	}
}

// CheckLessonPlan returns the violated paths of a lesson plan.
func CheckLessonPlan(p *LessonPlan) []ai.FieldViolation {
	var c checker
	c.required("title", p.Title)
	c.required("overview", p.Overview)
	c.rangeInt("duration_minutes", p.DurationMinutes, 1, domain.MaxDurationMinutes)
	c.nonEmpty("objectives", p.Objectives)
	if len(p.Materials) == 0 {
		c.add("materials", ai.ReasonRequired)
	}
	if len(p.Sections) == 0 {
		c.add("sections", ai.ReasonRequired)
	}
	for i, s := range p.Sections {
		path := fmt.Sprintf("sections[%d]", i)
		c.required(path+".title", s.Title)
		c.rangeInt(path+".duration_minutes", s.DurationMinutes, 1, domain.MaxDurationMinutes)
		c.blocks(path+".blocks", s.Blocks)
	}
	c.required("assessment", p.Assessment)
	return c.violations
}

// CheckActivity returns the violated paths of an activity.
func CheckActivity(a *Activity) []ai.FieldViolation {
	var c checker
	c.required("title", a.Title)
	c.required("instructions", a.Instructions)
	c.nonEmpty("objectives", a.Objectives)
	c.rangeInt("estimated_minutes", a.EstimatedMinutes, 1, domain.MaxDurationMinutes)
	c.blocks("blocks", a.Blocks)
	return c.violations
}

// CheckAssessment returns the violated paths of an assessment.
func CheckAssessment(a *Assessment) []ai.FieldViolation {
	var c checker
	c.required("title", a.Title)
	c.required("instructions", a.Instructions)
	if len(a.Questions) == 0 {
		c.add("questions", ai.ReasonRequired)
	}
	total := 0
	for i, q := range a.Questions {
		c.question(fmt.Sprintf("questions[%d]", i), q)
		total += q.Points
	}
	if a.TotalPoints != total {
		c.add("total_points", ai.ReasonInvalidValue)
	}
	return c.violations
}

func (c *checker) blocks(path string, blocks []Block) {
	if len(blocks) == 0 {
		c.add(path, ai.ReasonRequired)
		return
	}
	for i, b := range blocks {
		c.block(fmt.Sprintf("%s[%d]", path, i), b)
	}
}

// block verifies that the declared type tag matches the content payload.
func (c *checker) block(path string, b Block) {
	if len(b.Content) == 0 || string(b.Content) == "null" {
		c.add(path+".content", ai.ReasonRequired)
		return
	}

	contentPath := path + ".content"
	switch b.Type {
	case BlockText:
		var s string
		if json.Unmarshal(b.Content, &s) != nil {
			c.add(contentPath, ai.ReasonTypeMismatch)
			return
		}
		c.required(contentPath, s)
	case BlockList:
		var items []string
		if json.Unmarshal(b.Content, &items) != nil {
			c.add(contentPath, ai.ReasonTypeMismatch)
			return
		}
		c.nonEmpty(contentPath, items)
	case BlockQuestions:
		var qs []Question
		if json.Unmarshal(b.Content, &qs) != nil {
			c.add(contentPath, ai.ReasonTypeMismatch)
			return
		}
		if len(qs) == 0 {
			c.add(contentPath, ai.ReasonRequired)
		}
		for i, q := range qs {
			c.question(fmt.Sprintf("%s[%d]", contentPath, i), q)
		}
	case BlockTable:
		var t Table
		if !strictUnmarshal(b.Content, &t) {
			c.add(contentPath, ai.ReasonTypeMismatch)
			return
		}
		c.nonEmpty(contentPath+".headers", t.Headers)
		for i, row := range t.Rows {
			if len(row) != len(t.Headers) {
				c.add(fmt.Sprintf("%s.rows[%d]", contentPath, i), ai.ReasonInvalidValue)
			}
		}
	case "":
		c.add(path+".type", ai.ReasonRequired)
	default:
		c.add(path+".type", ai.ReasonInvalidValue)
	}
}

// strictUnmarshal rejects payloads that are not JSON objects, since an
// array or string would otherwise decode into a zero Table.
func strictUnmarshal(raw json.RawMessage, v any) bool {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (c *checker) question(path string, q Question) {
	c.required(path+".prompt", q.Prompt)
	if q.Points < 0 {
		c.add(path+".points", ai.ReasonOutOfRange)
	}

	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			c.add(path+".options", ai.ReasonRequired)
			return
		}
		found := false
		for _, o := range q.Options {
			if o == q.Answer {
				found = true
				break
			}
		}
		if !found {
			c.add(path+".answer", ai.ReasonInvalidValue)
		}
	case QuestionTrueFalse:
		if a := strings.ToLower(q.Answer); a != "true" && a != "false" {
			c.add(path+".answer", ai.ReasonInvalidValue)
		}
	case QuestionShortAnswer, QuestionEssay:
	case "":
		c.add(path+".type", ai.ReasonRequired)
	default:
		c.add(path+".type", ai.ReasonInvalidValue)
	}
}
