package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Converter transforms HTML into another format.
type Converter interface {
	// Convert transforms HTML content and writes the result to w.
	Convert(ctx context.Context, html []byte, w io.Writer) error

	// Format returns the output format of this converter.
	Format() Format
}

// =============================================================================
// Pandoc Converter (HTML → DOCX, PPTX)
// =============================================================================

// PandocConverter converts HTML with Pandoc.
// Requires pandoc to be installed: apt-get install pandoc
type PandocConverter struct {
	// Command is the pandoc command to execute. Defaults to "pandoc".
	Command string

	// ReferenceDoc is an optional path to a reference.docx or reference.pptx
	// for styling. If empty, Pandoc's default styling is used.
	ReferenceDoc string

	format Format
}

// NewPandocConverter creates a converter to format, which must be
// FormatDOCX or FormatPPTX.
func NewPandocConverter(format Format) *PandocConverter {
	return &PandocConverter{
		Command: "pandoc",
		format:  format,
	}
}

// Format returns the target format.
func (c *PandocConverter) Format() Format {
	return c.format
}

// Convert runs pandoc on html in a scratch directory.
func (c *PandocConverter) Convert(ctx context.Context, html []byte, w io.Writer) error {
	// Create temp directory for input/output files
	tmpDir, err := os.MkdirTemp("", "aula-export-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input.html")
	outputPath := filepath.Join(tmpDir, "output."+string(c.format))

	if err := os.WriteFile(inputPath, html, 0o600); err != nil {
		return fmt.Errorf("write input file: %w", err)
	}

	args := []string{
		inputPath,
		"-o", outputPath,
		"--from=html",
		"--to=" + string(c.format),
	}
	if c.ReferenceDoc != "" {
		args = append(args, "--reference-doc="+c.ReferenceDoc)
	}

	cmd := exec.CommandContext(ctx, c.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pandoc failed: %w, stderr: %s", err, stderr.String())
	}

	out, err := os.Open(outputPath)
	if err != nil {
		return fmt.Errorf("read output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(w, out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// IsPandocAvailable checks if pandoc is installed and accessible.
func IsPandocAvailable() bool {
	_, err := exec.LookPath("pandoc")
	return err == nil
}

// =============================================================================
// Converted Renderer
// =============================================================================

// ConvertedRenderer renders HTML and converts it.
type ConvertedRenderer struct {
	html      *HTMLRenderer
	converter Converter
}

// NewConvertedRenderer pairs an HTML renderer with a converter.
func NewConvertedRenderer(html *HTMLRenderer, converter Converter) *ConvertedRenderer {
	return &ConvertedRenderer{html: html, converter: converter}
}

// Format returns the converter's format.
func (g *ConvertedRenderer) Format() Format {
	return g.converter.Format()
}

// Render writes doc in the converter's format.
func (g *ConvertedRenderer) Render(ctx context.Context, doc *Document, w io.Writer) (int64, error) {
	var html bytes.Buffer
	if _, err := g.html.Render(ctx, doc, &html); err != nil {
		return 0, err
	}

	var out bytes.Buffer
	if err := g.converter.Convert(ctx, html.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("convert to %s: %w", g.converter.Format(), err)
	}

	n, err := w.Write(out.Bytes())
	return int64(n), err
}
