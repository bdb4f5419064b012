// Package stamp renders a preview of the merged document with every placed
// field painted over its page: the field box, its label, and the value it
// would receive at generation time.
//
// Fields are positioned on merged pages by translating their document-local
// page through the merged artifact at render time.
package stamp

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/barcode"

	"github.com/lvillar/docfields/field"
	"github.com/lvillar/docfields/merge"
)

// Code selects the machine-readable page reference drawn in a page corner.
type Code string

const (
	CodeNone   Code = "none"
	CodeQR     Code = "qr"
	CodePDF417 Code = "pdf417"
)

// RGBColor represents an RGB color value.
type RGBColor struct {
	R, G, B int
}

// Style controls how field overlays are painted.
type Style struct {
	BoxColor   RGBColor // field outline (default: blue)
	FillColor  RGBColor // field background (default: pale blue)
	TextColor  RGBColor // value text (default: black)
	FontSize   float64  // value font size in points (default: 10)
	Opacity    float64  // background opacity (default: 0.15)
	ShowLabels bool     // print the label above each field
}

func (s Style) withDefaults() Style {
	if s.BoxColor == (RGBColor{}) {
		s.BoxColor = RGBColor{37, 99, 235}
	}
	if s.FillColor == (RGBColor{}) {
		s.FillColor = RGBColor{219, 234, 254}
	}
	if s.FontSize <= 0 {
		s.FontSize = 10
	}
	if s.Opacity <= 0 {
		s.Opacity = 0.15
	}
	return s
}

// Options configures Render.
type Options struct {
	Style Style
	Code  Code    // page reference code (default: none)
	CodeW float64 // code width in points (default: 48)
}

// Overlay is one field resolved to its merged page.
type Overlay struct {
	Field      field.Field
	MergedPage int
	Value      string
}

// Overlays places fields on merged pages. Fields whose document is not part
// of the artifact, or whose page no longer exists, produce an error.
func Overlays(art merge.Artifact, fields []field.Field, values map[string]string) ([]Overlay, error) {
	out := make([]Overlay, 0, len(fields))
	for _, f := range fields {
		page, err := art.Translate(f.DocumentID, f.PageInDocument)
		if err != nil {
			return nil, fmt.Errorf("stamp: field %s: %w", f.ID, err)
		}
		v, ok := values[f.ID]
		if !ok {
			v = f.DefaultValue
		}
		out = append(out, Overlay{Field: f, MergedPage: page, Value: v})
	}
	return out, nil
}

// Render imports every page of merged and paints the overlays that belong to
// it. merged must be the PDF the artifact was built for.
func Render(ctx context.Context, merged []byte, art merge.Artifact, overlays []Overlay, opts Options) ([]byte, error) {
	style := opts.Style.withDefaults()

	byPage := make(map[int][]Overlay)
	for _, o := range overlays {
		byPage[o.MergedPage] = append(byPage[o.MergedPage], o)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	n, err := merge.ImportPages(ctx, pdf, merged, func(page int, w, h float64) error {
		for _, o := range byPage[page] {
			drawOverlay(pdf, tr, o, style)
		}
		if opts.Code != "" && opts.Code != CodeNone {
			return drawCode(pdf, art, opts, page, w, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}
	if n != art.TotalPages {
		return nil, fmt.Errorf("stamp: merged PDF has %d pages, artifact expects %d", n, art.TotalPages)
	}
	if pdf.Err() {
		return nil, fmt.Errorf("stamp: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("stamp: writing preview: %w", err)
	}
	return buf.Bytes(), nil
}

func drawOverlay(pdf *gofpdf.Fpdf, tr func(string) string, o Overlay, s Style) {
	f := o.Field
	x, y, w, h := f.Position.X, f.Position.Y, f.Size.Width, f.Size.Height

	pdf.SetAlpha(s.Opacity, "Normal")
	pdf.SetFillColor(s.FillColor.R, s.FillColor.G, s.FillColor.B)
	pdf.Rect(x, y, w, h, "F")
	pdf.SetAlpha(1.0, "Normal")

	pdf.SetDrawColor(s.BoxColor.R, s.BoxColor.G, s.BoxColor.B)
	pdf.SetLineWidth(0.75)
	if f.Required {
		pdf.SetDashPattern(nil, 0)
	} else {
		pdf.SetDashPattern([]float64{3, 2}, 0)
	}
	pdf.Rect(x, y, w, h, "D")
	pdf.SetDashPattern(nil, 0)

	if s.ShowLabels && f.Label != "" {
		label := f.Label
		if f.Required {
			label += " *"
		}
		pdf.SetFont("Helvetica", "", s.FontSize*0.7)
		pdf.SetTextColor(s.BoxColor.R, s.BoxColor.G, s.BoxColor.B)
		pdf.Text(x, y-2, tr(label))
	}

	text, placeholder := displayValue(f, o.Value)
	if text == "" {
		return
	}

	if placeholder {
		pdf.SetTextColor(150, 150, 150)
	} else {
		pdf.SetTextColor(s.TextColor.R, s.TextColor.G, s.TextColor.B)
	}
	pdf.ClipRect(x, y, w, h, false)
	switch f.Type {
	case field.TypeTextarea:
		pdf.SetFont("Helvetica", "", s.FontSize)
		pdf.SetXY(x+2, y+2)
		pdf.MultiCell(w-4, s.FontSize*1.2, tr(text), "", "L", false)
	case field.TypeSignature:
		pdf.SetFont("Times", "I", min(h*0.7, s.FontSize*1.6))
		pdf.SetXY(x, y)
		pdf.CellFormat(w, h, tr(text), "", 0, "LM", false, 0, "")
	case field.TypeCheckbox:
		pdf.SetFont("ZapfDingbats", "", min(w, h)*0.8)
		pdf.SetXY(x, y)
		pdf.CellFormat(w, h, "4", "", 0, "CM", false, 0, "") // check mark
	default:
		pdf.SetFont("Helvetica", "", min(s.FontSize, h*0.8))
		pdf.SetXY(x+2, y)
		pdf.CellFormat(w-4, h, tr(text), "", 0, "LM", false, 0, "")
	}
	pdf.ClipEnd()
}

// displayValue returns the text painted inside a field and whether it is the
// field's placeholder rather than a value.
func displayValue(f field.Field, v string) (string, bool) {
	v = strings.TrimSpace(v)
	if f.Type == field.TypeCheckbox {
		switch strings.ToLower(v) {
		case "", "0", "false", "no", "off":
			return "", false
		}
		return v, false
	}
	if v == "" {
		return f.Placeholder, true
	}
	return v, false
}

func drawCode(pdf *gofpdf.Fpdf, art merge.Artifact, opts Options, page int, pageW, pageH float64) error {
	docID, local, err := art.Locate(page)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("docfields:%d/%d:%s:%d", page, art.TotalPages, docID, local)

	size := opts.CodeW
	if size <= 0 {
		size = 48
	}
	const margin = 12

	var key string
	height := size
	switch opts.Code {
	case CodeQR:
		key = barcode.RegisterQR(pdf, text, qr.M, qr.Unicode)
	case CodePDF417:
		key = barcode.RegisterPdf417(pdf, text, 6, 2)
		height = size / 3
	default:
		return fmt.Errorf("unknown code kind %q", opts.Code)
	}
	barcode.Barcode(pdf, key, pageW-margin-size, pageH-margin-height, size, height, false)
	return nil
}
