package prompt

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/aula/internal/ai"
)

// Action is a refinement operation on a passage of text.
type Action string

const (
	ActionRewrite  Action = "rewrite"
	ActionSimplify Action = "simplify"
	ActionEngage   Action = "engage"
	ActionExpand   Action = "expand"
)

// Actions lists every refinement action.
var Actions = []Action{ActionRewrite, ActionSimplify, ActionEngage, ActionExpand}

var actionTemplates = map[Action]string{
	ActionRewrite:  "Rewrite the passage below so it reads clearly and naturally. Keep the meaning, length and reading level about the same.",
	ActionSimplify: "Simplify the passage below for younger or struggling readers. Use short sentences and everyday words, and keep every key idea.",
	ActionEngage:   "Make the passage below more engaging for students, for example with a hook, a vivid example or a question. Do not change the facts.",
	ActionExpand:   "Expand the passage below with more detail and explanation, roughly doubling its length while staying on topic.",
}

const refineSystem = `You are an experienced classroom teacher editing teaching materials. Reply with the revised passage only: no preamble, no explanation, no quotation marks around it.`

// Valid returns true if the action is known.
func (a Action) Valid() bool {
	_, ok := actionTemplates[a]
	return ok
}

// Instruction returns the fixed instruction template for the action.
func (a Action) Instruction() string {
	return actionTemplates[a]
}

// BuildRefinement returns the two-message list for a refinement. The
// optional context describes where the passage is used.
func BuildRefinement(text string, action Action, context string) ([]ai.Message, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("prompt: unknown refinement action %q", action)
	}

	var b strings.Builder
	b.WriteString(action.Instruction())
	b.WriteString("\n\n")
	if context = strings.TrimSpace(context); context != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", context)
	}
	b.WriteString("Passage:\n")
	b.WriteString(text)

	return []ai.Message{
		{Role: ai.RoleSystem, Content: refineSystem},
		{Role: ai.RoleUser, Content: b.String()},
	}, nil
}
