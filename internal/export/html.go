package export

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/DukeRupert/aula/internal/content"
)

//go:embed templates/document.html
var documentTemplate string

// =============================================================================
// HTML Renderer
// =============================================================================

// HTMLRenderer renders a standalone, print-ready HTML page. Its output also
// feeds the Pandoc conversions.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the embedded document template.
func NewHTMLRenderer() *HTMLRenderer {
	tmpl := template.Must(template.New("document").Funcs(template.FuncMap{
		"date":   FormatDate,
		"points": pointsLabel,
		"isMultipleChoice": func(q content.Question) bool {
			return q.Type == content.QuestionMultipleChoice
		},
		"isTrueFalse": func(q content.Question) bool {
			return q.Type == content.QuestionTrueFalse
		},
		"cell": func(row []string, i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		},
	}).Parse(documentTemplate))

	return &HTMLRenderer{tmpl: tmpl}
}

// Format returns FormatHTML.
func (g *HTMLRenderer) Format() Format {
	return FormatHTML
}

// Render writes doc as HTML to w.
func (g *HTMLRenderer) Render(ctx context.Context, doc *Document, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, struct {
		*Document
		Colors any
	}{doc, BrandColors}); err != nil {
		return 0, fmt.Errorf("render template: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
