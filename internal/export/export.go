// Package export renders generated teaching materials as downloadable
// documents.
//
// PDF is drawn directly with fpdf and HTML is rendered from a template. DOCX
// and PPTX are converted from the HTML by Pandoc, so they are only offered
// when pandoc is installed.
package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"unicode"
)

// =============================================================================
// Formats
// =============================================================================

// Format is an export file format. Values match TierLimits.ExportFormats.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatHTML Format = "html"
)

// AllFormats lists every known format.
var AllFormats = []Format{FormatPDF, FormatDOCX, FormatPPTX, FormatHTML}

// Valid returns true if the format is known.
func (f Format) Valid() bool {
	return slices.Contains(AllFormats, f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPPTX:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func (f Format) String() string {
	return string(f)
}

// =============================================================================
// Renderer Interface
// =============================================================================

// Renderer writes a Document in one format.
type Renderer interface {
	// Render writes doc to w and returns the number of bytes written.
	Render(ctx context.Context, doc *Document, w io.Writer) (int64, error)

	// Format returns the output format of this renderer.
	Format() Format
}

// ErrUnavailable is returned when no renderer is registered for a format.
var ErrUnavailable = errors.New("export: format unavailable")

// Registry looks up renderers by format.
type Registry struct {
	renderers map[Format]Renderer
}

// NewRegistry registers renderers. A later renderer for the same format
// replaces an earlier one.
func NewRegistry(renderers ...Renderer) *Registry {
	r := &Registry{renderers: make(map[Format]Renderer, len(renderers))}
	for _, renderer := range renderers {
		r.renderers[renderer.Format()] = renderer
	}
	return r
}

// DefaultRegistry registers PDF and HTML, plus DOCX and PPTX when pandoc is
// on PATH.
func DefaultRegistry(logger *slog.Logger) *Registry {
	html := NewHTMLRenderer()
	renderers := []Renderer{NewPDFRenderer(), html}

	if IsPandocAvailable() {
		renderers = append(renderers,
			NewConvertedRenderer(html, NewPandocConverter(FormatDOCX)),
			NewConvertedRenderer(html, NewPandocConverter(FormatPPTX)),
		)
	} else {
		logger.Warn("pandoc not found, docx and pptx export disabled")
	}

	return NewRegistry(renderers...)
}

// Renderer returns the renderer for f, or ErrUnavailable.
func (r *Registry) Renderer(f Format) (Renderer, error) {
	renderer, ok := r.renderers[f]
	if !ok {
		return nil, ErrUnavailable
	}
	return renderer, nil
}

// Formats lists the registered formats in AllFormats order.
func (r *Registry) Formats() []Format {
	var formats []Format
	for _, f := range AllFormats {
		if _, ok := r.renderers[f]; ok {
			formats = append(formats, f)
		}
	}
	return formats
}

// =============================================================================
// Brand Colors
// =============================================================================

// BrandColors is the palette shared by the PDF and HTML renderers.
var BrandColors = struct {
	Ink       string // Headings
	Accent    string // Section rules and highlights
	TextDark  string // Body text
	TextMuted string // Captions and metadata
	Border    string // Table borders and dividers
	Shade     string // Table header fill
}{
	Ink:       "#1D3557",
	Accent:    "#E76F51",
	TextDark:  "#1F2937",
	TextMuted: "#6B7280",
	Border:    "#E5E7EB",
	Shade:     "#F3F4F6",
}

// HexToRGB converts "#RRGGBB" or "RRGGBB" to its components. Malformed input
// yields black.
func HexToRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	return hexToDec(hex[0:2]), hexToDec(hex[2:4]), hexToDec(hex[4:6])
}

func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

// =============================================================================
// Filenames
// =============================================================================

// Filename derives a download name from a document title, e.g.
// "Volcanoes: Inside the Earth" becomes "volcanoes-inside-the-earth.pdf".
func Filename(title string, f Format) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
		if sb.Len() >= 80 {
			break
		}
	}

	name := strings.Trim(sb.String(), "-")
	if name == "" {
		name = "document"
	}
	return name + "." + string(f)
}
