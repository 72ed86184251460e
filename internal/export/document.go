package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DukeRupert/aula/internal/content"
	"github.com/DukeRupert/aula/internal/domain"
)

// Document is the format-neutral layout shared by all renderers.
type Document struct {
	Kind      string // "Lesson plan", "Activity" or "Assessment"
	Title     string
	Summary   string
	Facts     []Fact
	Sections  []Section
	CreatedAt time.Time
}

// Fact is a labelled value shown under the title.
type Fact struct {
	Label string
	Value string
}

// Section is a headed run of parts.
type Section struct {
	Heading string
	Parts   []Part
}

// Part is one unit of section content. Exactly one field is set.
type Part struct {
	Text      string
	Items     []string
	Ordered   bool
	Table     *content.Table
	Questions []content.Question
}

// Build validates raw as a document of shape and lays it out. Validation
// failures are returned as the *ai.Error produced by content.Parse.
func Build(shape domain.Shape, raw json.RawMessage, createdAt time.Time) (*Document, error) {
	v, err := content.Parse(shape, string(raw))
	if err != nil {
		return nil, err
	}

	var doc *Document
	switch c := v.(type) {
	case *content.LessonPlan:
		doc = fromLessonPlan(c)
	case *content.Activity:
		doc = fromActivity(c)
	case *content.Assessment:
		doc = fromAssessment(c)
	default:
		return nil, fmt.Errorf("export: unsupported document %T", v)
	}
	doc.CreatedAt = createdAt.UTC()
	return doc, nil
}

func fromLessonPlan(p *content.LessonPlan) *Document {
	doc := &Document{
		Kind:    "Lesson plan",
		Title:   p.Title,
		Summary: p.Overview,
		Facts: facts(
			"Grade level", p.GradeLevel,
			"Subject", p.Subject,
			"Duration", minutes(p.DurationMinutes),
		),
	}

	doc.Sections = appendList(doc.Sections, "Objectives", p.Objectives, true)
	doc.Sections = appendList(doc.Sections, "Standards", p.Standards, false)
	doc.Sections = appendList(doc.Sections, "Materials", p.Materials, false)

	for _, s := range p.Sections {
		heading := s.Title
		if s.DurationMinutes > 0 {
			heading = fmt.Sprintf("%s (%s)", s.Title, minutes(s.DurationMinutes))
		}
		doc.Sections = append(doc.Sections, Section{Heading: heading, Parts: blockParts(s.Blocks)})
	}

	doc.Sections = appendList(doc.Sections, "Differentiation", p.Differentiation, false)
	if p.Assessment != "" {
		doc.Sections = append(doc.Sections, Section{Heading: "Assessment", Parts: []Part{{Text: p.Assessment}}})
	}
	return doc
}

func fromActivity(a *content.Activity) *Document {
	doc := &Document{
		Kind:    "Activity",
		Title:   a.Title,
		Summary: a.Instructions,
		Facts:   facts("Estimated time", minutes(a.EstimatedMinutes)),
	}
	doc.Sections = appendList(doc.Sections, "Objectives", a.Objectives, true)
	if len(a.Blocks) > 0 {
		doc.Sections = append(doc.Sections, Section{Heading: "Activity", Parts: blockParts(a.Blocks)})
	}
	return doc
}

func fromAssessment(a *content.Assessment) *Document {
	doc := &Document{
		Kind:    "Assessment",
		Title:   a.Title,
		Summary: a.Instructions,
		Facts: facts(
			"Questions", fmt.Sprint(len(a.Questions)),
			"Total points", fmt.Sprint(a.TotalPoints),
		),
	}

	doc.Sections = append(doc.Sections, Section{
		Heading: "Questions",
		Parts:   []Part{{Questions: a.Questions}},
	})

	var key []string
	for _, q := range a.Questions {
		if q.Answer != "" {
			key = append(key, q.Answer)
		}
	}
	if len(key) == len(a.Questions) {
		doc.Sections = appendList(doc.Sections, "Answer key", key, true)
	}
	return doc
}

// blockParts decodes validated blocks. A block whose payload does not match
// its tag is skipped.
func blockParts(blocks []content.Block) []Part {
	parts := make([]Part, 0, len(blocks))
	for _, b := range blocks {
		var part Part
		var err error
		switch b.Type {
		case content.BlockText:
			err = json.Unmarshal(b.Content, &part.Text)
		case content.BlockList:
			err = json.Unmarshal(b.Content, &part.Items)
		case content.BlockQuestions:
			err = json.Unmarshal(b.Content, &part.Questions)
		case content.BlockTable:
			part.Table = &content.Table{}
			err = json.Unmarshal(b.Content, part.Table)
		default:
			continue
		}
		if err != nil {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

func appendList(sections []Section, heading string, items []string, ordered bool) []Section {
	if len(items) == 0 {
		return sections
	}
	return append(sections, Section{Heading: heading, Parts: []Part{{Items: items, Ordered: ordered}}})
}

// facts pairs label/value arguments, dropping empty values.
func facts(pairs ...string) []Fact {
	var out []Fact
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			continue
		}
		out = append(out, Fact{Label: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func minutes(n int) string {
	if n <= 0 {
		return ""
	}
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}

// OptionLabel returns the letter for the i-th multiple choice option.
func OptionLabel(i int) string {
	if i < 0 || i >= 26 {
		return fmt.Sprint(i + 1)
	}
	return string(rune('A' + i))
}

// FormatDate formats a date for display in exports.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
