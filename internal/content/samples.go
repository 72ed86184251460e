package content

import (
	"fmt"

	"github.com/DukeRupert/aula/internal/domain"
)

// Sample returns a small document of the given shape that passes its check.
// It backs the mock provider in development.
func Sample(shape domain.Shape, topic string) any {
	if topic == "" {
		topic = "Sample Topic"
	}

	switch shape {
	case domain.ShapeLessonPlan:
		return &LessonPlan{
			Title:           topic,
			Overview:        fmt.Sprintf("An introductory lesson on %s.", topic),
			DurationMinutes: domain.DefaultDurationMinutes,
			Objectives:      []string{fmt.Sprintf("Explain the key ideas of %s", topic)},
			Materials:       []string{"Whiteboard", "Handout"},
			Sections: []Section{
				{
					Title:           "Warm-up",
					DurationMinutes: 10,
					Blocks:          []Block{TextBlock("Ask students what they already know.")},
				},
				{
					Title:           "Guided practice",
					DurationMinutes: 35,
					Blocks: []Block{
						ListBlock("Model an example", "Work in pairs", "Share answers"),
					},
				},
			},
			Assessment: "Exit ticket with two short questions.",
		}
	case domain.ShapeAssessment:
		return &Assessment{
			Title:        topic + " Check",
			Instructions: "Answer every question.",
			Questions: []Question{
				{Prompt: fmt.Sprintf("%s is an important topic.", topic), Type: QuestionTrueFalse, Answer: "true", Points: 1},
				{Prompt: "Pick the best answer.", Type: QuestionMultipleChoice, Options: []string{"A", "B", "C"}, Answer: "B", Points: 2},
			},
			TotalPoints: 3,
		}
	default:
		return &Activity{
			Title:            topic + " Activity",
			Instructions:     "Work through the tasks below.",
			Objectives:       []string{fmt.Sprintf("Practice %s", topic)},
			EstimatedMinutes: 20,
			Blocks: []Block{
				TextBlock("Read the passage carefully."),
				TableBlock(Table{Headers: []string{"Term", "Meaning"}, Rows: [][]string{{"Key idea", "Write it in your own words"}}}),
			},
		}
	}
}
