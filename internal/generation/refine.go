package generation

import (
	"context"
	"strings"

	"github.com/DukeRupert/aula/internal/ai"
	"github.com/DukeRupert/aula/internal/prompt"
)

// Refine rewrites a passage according to action. The output is free text;
// Result.Content holds it as a string with any enclosing quotes removed.
func (o *Orchestrator) Refine(ctx context.Context, text string, action prompt.Action, surrounding string, opts Options) (*Result, error) {
	messages, err := prompt.BuildRefinement(text, action, surrounding)
	if err != nil {
		return nil, err
	}

	return o.run(ctx, messages, opts, func(raw string) (any, error) {
		refined := StripQuotes(raw)
		if refined == "" {
			return nil, ai.SchemaViolation("refinement was empty", nil, nil)
		}
		return refined, nil
	})
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"‘", "’"},
	{"«", "»"},
}

// StripQuotes trims s and removes one pair of enclosing quotation marks.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}
