package normalize

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Layout controls how extracted blocks are laid out into a PDF body.
type Layout struct {
	PageSize string  // gofpdf page size name (default: A4)
	Margin   float64 // uniform margin in points (default: 56)
	FontSize float64 // body font size in points (default: 11)
}

func (l Layout) withDefaults() Layout {
	if l.PageSize == "" {
		l.PageSize = "A4"
	}
	if l.Margin <= 0 {
		l.Margin = 56
	}
	if l.FontSize <= 0 {
		l.FontSize = 11
	}
	return l
}

// headingSizes holds h1..h6 font sizes.
var headingSizes = []float64{22, 18, 15, 13, 12, 11}

// Render lays blocks out into a minimal PDF and returns its bytes and page
// count. An empty block list yields a single blank page so the document still
// has a page to place fields on.
func (l Layout) Render(ctx context.Context, blocks []Block) ([]byte, int, error) {
	l = l.withDefaults()

	pdf := gofpdf.New("P", "pt", l.PageSize, "")
	pdf.SetMargins(l.Margin, l.Margin, l.Margin)
	pdf.SetAutoPageBreak(true, l.Margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", l.FontSize)

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*l.Margin
	lineH := l.FontSize * 1.35

	cells := newGrid(pdf, tr, l.FontSize*0.9)
	for i := 0; i < len(blocks); i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		b := blocks[i]

		switch b.Kind {
		case BlockHeading:
			size := headingSizes[clamp(b.Level, 1, 6)-1]
			pdf.SetFont("Helvetica", "B", size)
			pdf.Ln(size * 0.4)
			pdf.MultiCell(contentW, size*1.25, tr(b.Text), "", "L", false)
			pdf.Ln(size * 0.2)
			pdf.SetFont("Helvetica", "", l.FontSize)

		case BlockListItem:
			indent := 14 * float64(b.Level+1)
			pdf.SetX(l.Margin + indent)
			pdf.MultiCell(contentW-indent, lineH, tr("- "+b.Text), "", "L", false)

		case BlockTableRow:
			j := i + 1
			for j < len(blocks) && blocks[j].Kind == BlockTableRow {
				j++
			}
			if err := cells.render(blocks[i:j], contentW); err != nil {
				return nil, 0, fmt.Errorf("normalize: layout: %w", err)
			}
			pdf.SetFont("Helvetica", "", l.FontSize)
			pdf.Ln(lineH * 0.5)
			i = j - 1

		case BlockPageBreak:
			// A break at the very end would only add a blank trailing page.
			if i < len(blocks)-1 {
				pdf.AddPage()
			}

		default:
			if strings.TrimSpace(b.Text) == "" {
				pdf.Ln(lineH * 0.6)
				continue
			}
			pdf.MultiCell(contentW, lineH, tr(b.Text), "", "L", false)
			pdf.Ln(lineH * 0.3)
		}
	}

	if pdf.Err() {
		return nil, 0, fmt.Errorf("normalize: layout: %w", pdf.Error())
	}

	pages := pdf.PageCount()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("normalize: writing PDF: %w", err)
	}
	return buf.Bytes(), pages, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
