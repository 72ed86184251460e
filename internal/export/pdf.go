package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/DukeRupert/aula/internal/content"
	"github.com/go-pdf/fpdf"
)

// =============================================================================
// PDF Renderer
// =============================================================================

// PDFRenderer draws documents on A4 pages with the core Helvetica font.
type PDFRenderer struct {
	// Page dimensions (A4 in mm)
	pageWidth  float64
	pageHeight float64
	margin     float64

	// Content area
	contentWidth float64
}

// NewPDFRenderer creates a PDF renderer with default settings.
func NewPDFRenderer() *PDFRenderer {
	margin := 18.0
	pageWidth := 210.0 // A4 width in mm
	return &PDFRenderer{
		pageWidth:    pageWidth,
		pageHeight:   297.0, // A4 height in mm
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// Format returns FormatPDF.
func (g *PDFRenderer) Format() Format {
	return FormatPDF
}

// pdfPage bundles the document being drawn with its text translator. Core
// fonts are cp1252, so every string passes through tr.
type pdfPage struct {
	*fpdf.Fpdf
	tr func(string) string
}

// Render draws doc and writes the PDF to w.
func (g *PDFRenderer) Render(ctx context.Context, doc *Document, w io.Writer) (int64, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	p := &pdfPage{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	// Set document metadata
	pdf.SetTitle(doc.Title, true)
	pdf.SetSubject(doc.Kind, true)
	pdf.SetCreator("Aula", true)
	pdf.SetMargins(g.margin, g.margin, g.margin)

	// Enable automatic page breaks with footer space
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		g.addFooter(p, doc)
	})

	pdf.AddPage()
	g.addHeader(p, doc)

	for _, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		g.addSection(p, section)
	}

	// Check for errors during generation
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	// Write to buffer to count bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// =============================================================================
// Header
// =============================================================================

func (g *PDFRenderer) addHeader(p *pdfPage, doc *Document) {
	// Ink header bar
	r, gr, b := HexToRGB(BrandColors.Ink)
	p.SetFillColor(r, gr, b)
	p.Rect(0, 0, g.pageWidth, 46, "F")

	p.SetTextColor(255, 255, 255)
	p.SetFont("Helvetica", "", 10)
	p.SetXY(g.margin, 12)
	p.Cell(0, 6, p.tr(strings.ToUpper(doc.Kind)))

	p.SetFont("Helvetica", "B", 22)
	p.SetXY(g.margin, 20)
	p.MultiCell(g.contentWidth, 9, p.tr(doc.Title), "", "L", false)

	g.setText(p, BrandColors.TextDark)
	p.SetY(54)

	if len(doc.Facts) > 0 {
		for _, f := range doc.Facts {
			p.SetFont("Helvetica", "B", 10)
			p.Cell(35, 6, p.tr(f.Label+":"))
			p.SetFont("Helvetica", "", 10)
			p.MultiCell(g.contentWidth-35, 6, p.tr(f.Value), "", "L", false)
		}
		p.Ln(4)
	}

	if doc.Summary != "" {
		p.SetFont("Helvetica", "", 11)
		p.MultiCell(g.contentWidth, 6, p.tr(doc.Summary), "", "L", false)
		p.Ln(6)
	}
}

// =============================================================================
// Sections
// =============================================================================

func (g *PDFRenderer) addSection(p *pdfPage, s Section) {
	// Keep a heading with at least a few lines of its content
	if p.GetY() > g.pageHeight-50 {
		p.AddPage()
	}
	g.addSectionHeader(p, s.Heading)

	for _, part := range s.Parts {
		switch {
		case part.Text != "":
			p.SetFont("Helvetica", "", 10)
			p.MultiCell(g.contentWidth, 5.5, p.tr(part.Text), "", "L", false)
		case len(part.Items) > 0:
			g.addList(p, part.Items, part.Ordered)
		case part.Table != nil:
			g.addTable(p, part.Table)
		case len(part.Questions) > 0:
			g.addQuestions(p, part.Questions)
		}
		p.Ln(3)
	}
	p.Ln(4)
}

func (g *PDFRenderer) addSectionHeader(p *pdfPage, title string) {
	r, gr, b := HexToRGB(BrandColors.Ink)
	p.SetFont("Helvetica", "B", 14)
	p.SetTextColor(r, gr, b)
	p.Cell(0, 8, p.tr(title))
	p.Ln(9)

	r, gr, b = HexToRGB(BrandColors.Accent)
	p.SetDrawColor(r, gr, b)
	p.SetLineWidth(0.5)
	p.Line(g.margin, p.GetY(), g.margin+30, p.GetY())
	p.Ln(4)

	g.setText(p, BrandColors.TextDark)
}

func (g *PDFRenderer) addList(p *pdfPage, items []string, ordered bool) {
	p.SetFont("Helvetica", "", 10)
	for i, item := range items {
		marker := "-"
		if ordered {
			marker = fmt.Sprintf("%d.", i+1)
		}
		p.SetX(g.margin + 2)
		p.Cell(8, 5.5, marker)
		p.MultiCell(g.contentWidth-10, 5.5, p.tr(item), "", "L", false)
	}
}

func (g *PDFRenderer) addTable(p *pdfPage, t *content.Table) {
	if len(t.Headers) == 0 {
		return
	}
	colWidth := g.contentWidth / float64(len(t.Headers))

	r, gr, b := HexToRGB(BrandColors.Border)
	p.SetDrawColor(r, gr, b)
	p.SetLineWidth(0.2)

	// Table header
	r, gr, b = HexToRGB(BrandColors.Shade)
	p.SetFillColor(r, gr, b)
	p.SetFont("Helvetica", "B", 9)
	for i, h := range t.Headers {
		ln := 0
		if i == len(t.Headers)-1 {
			ln = 1
		}
		p.CellFormat(colWidth, 7, p.tr(h), "1", ln, "L", true, 0, "")
	}

	// Table rows
	p.SetFont("Helvetica", "", 9)
	for _, row := range t.Rows {
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			ln := 0
			if i == len(t.Headers)-1 {
				ln = 1
			}
			p.CellFormat(colWidth, 7, p.tr(truncate(cell, colWidth)), "1", ln, "L", false, 0, "")
		}
	}
}

func (g *PDFRenderer) addQuestions(p *pdfPage, questions []content.Question) {
	for i, q := range questions {
		if p.GetY() > g.pageHeight-40 {
			p.AddPage()
		}

		p.SetFont("Helvetica", "B", 10)
		p.Cell(8, 5.5, fmt.Sprintf("%d.", i+1))
		p.MultiCell(g.contentWidth-30, 5.5, p.tr(q.Prompt), "", "L", false)

		if q.Points > 0 {
			g.setText(p, BrandColors.TextMuted)
			p.SetFont("Helvetica", "I", 8)
			p.SetX(g.margin + 8)
			p.Cell(0, 4.5, pointsLabel(q.Points))
			p.Ln(5)
			g.setText(p, BrandColors.TextDark)
		}

		p.SetFont("Helvetica", "", 10)
		switch q.Type {
		case content.QuestionMultipleChoice:
			for j, opt := range q.Options {
				p.SetX(g.margin + 10)
				p.MultiCell(g.contentWidth-10, 5.5, p.tr(OptionLabel(j)+") "+opt), "", "L", false)
			}
		case content.QuestionTrueFalse:
			p.SetX(g.margin + 10)
			p.Cell(0, 5.5, "True / False")
			p.Ln(6)
		case content.QuestionShortAnswer:
			g.addAnswerLines(p, 2)
		case content.QuestionEssay:
			g.addAnswerLines(p, 6)
		}
		p.Ln(3)
	}
}

func (g *PDFRenderer) addAnswerLines(p *pdfPage, n int) {
	r, gr, b := HexToRGB(BrandColors.Border)
	p.SetDrawColor(r, gr, b)
	p.SetLineWidth(0.2)
	for range n {
		p.Ln(7)
		p.Line(g.margin+10, p.GetY(), g.pageWidth-g.margin, p.GetY())
	}
	p.Ln(2)
}

// =============================================================================
// Helper Methods
// =============================================================================

func (g *PDFRenderer) addFooter(p *pdfPage, doc *Document) {
	p.SetY(-15)

	// Draw separator line
	r, gr, b := HexToRGB(BrandColors.Border)
	p.SetDrawColor(r, gr, b)
	p.Line(g.margin, p.GetY()-3, g.pageWidth-g.margin, p.GetY()-3)

	g.setText(p, BrandColors.TextMuted)
	p.SetFont("Helvetica", "", 8)

	// Left: creation date
	p.Cell(0, 10, "Created with Aula on "+FormatDate(doc.CreatedAt))

	// Right: page number
	p.SetX(-g.margin - 30)
	p.CellFormat(30, 10, fmt.Sprintf("Page %d", p.PageNo()), "", 0, "R", false, 0, "")
}

func (g *PDFRenderer) setText(p *pdfPage, hex string) {
	r, gr, b := HexToRGB(hex)
	p.SetTextColor(r, gr, b)
}

// truncate shortens a table cell to roughly fit width mm at 9pt.
func truncate(text string, width float64) string {
	maxLen := int(width / 1.7)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func pointsLabel(n int) string {
	if n == 1 {
		return "(1 point)"
	}
	return fmt.Sprintf("(%d points)", n)
}
