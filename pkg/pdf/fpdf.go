package pdf

import (
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"ceue-certificates/certgen/pkg/docx"
)

// Options configures the built-in gofpdf renderer
type Options struct {
	PageSize      string  `json:"page_size" yaml:"page_size"`     // A4, Letter, Legal
	Orientation   string  `json:"orientation" yaml:"orientation"` // portrait, landscape
	Author        string  `json:"author,omitempty" yaml:"author,omitempty"`
	FontFamily    string  `json:"font_family" yaml:"font_family"`
	FontSize      float64 `json:"font_size" yaml:"font_size"`
	TitleFontSize float64 `json:"title_font_size" yaml:"title_font_size"`
	LineHeight    float64 `json:"line_height" yaml:"line_height"`
	Align         string  `json:"align" yaml:"align"` // L, C, R, J
	TitleFirst    bool    `json:"title_first" yaml:"title_first"`
	Margins       Margins `json:"margins" yaml:"margins"`
}

// Margins represents page margins in millimetres
type Margins struct {
	Left   float64 `json:"left" yaml:"left"`
	Right  float64 `json:"right" yaml:"right"`
	Top    float64 `json:"top" yaml:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// DefaultOptions returns a landscape A4 certificate layout
func DefaultOptions() Options {
	return Options{
		PageSize:      "A4",
		Orientation:   "landscape",
		FontFamily:    "Arial",
		FontSize:      13,
		TitleFontSize: 22,
		LineHeight:    8,
		Align:         "J",
		TitleFirst:    true,
		Margins: Margins{
			Left:   25,
			Right:  25,
			Top:    30,
			Bottom: 20,
		},
	}
}

// Fpdf draws the merged paragraphs onto a plain page. Layout from the
// template (images, tables, fonts) is not reproduced; it exists for hosts
// without LibreOffice and for previews.
type Fpdf struct {
	options Options
}

// NewFpdf creates a gofpdf renderer
func NewFpdf(options Options) *Fpdf {
	return &Fpdf{options: options}
}

func (f *Fpdf) Render(ctx context.Context, doc *docx.Document, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o := f.options
	orientation := "P"
	if o.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", o.PageSize, "")
	pdf.SetMargins(o.Margins.Left, o.Margins.Top, o.Margins.Right)
	pdf.SetAutoPageBreak(true, o.Margins.Bottom)
	pdf.SetCreator("certgen", true)
	if o.Author != "" {
		pdf.SetAuthor(o.Author, true)
	}
	pdf.AddPage()

	// Core fonts are cp1252; accented names need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	titleDone := !o.TitleFirst
	for _, text := range doc.Paragraphs() {
		if text == "" {
			pdf.Ln(o.LineHeight)
			continue
		}
		if !titleDone {
			pdf.SetFont(o.FontFamily, "B", o.TitleFontSize)
			pdf.MultiCell(0, o.LineHeight*1.6, tr(text), "", "C", false)
			pdf.Ln(o.LineHeight)
			titleDone = true
			continue
		}
		pdf.SetFont(o.FontFamily, "", o.FontSize)
		pdf.MultiCell(0, o.LineHeight, tr(text), "", o.Align, false)
	}

	if pdf.Err() {
		return fmt.Errorf("failed to lay out pdf: %w", pdf.Error())
	}
	if err := pdf.OutputFileAndClose(dst); err != nil {
		return fmt.Errorf("failed to write pdf %s: %w", dst, err)
	}
	return nil
}
