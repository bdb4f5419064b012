package normalize

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// grid lays out a run of DOCX table rows as a bordered table. Columns share
// the content width equally; rows grow to fit wrapped cell text. Header rows
// are repeated at the top of each page the table continues on.
type grid struct {
	pdf      *gofpdf.Fpdf
	tr       func(string) string
	fontSize float64
	padding  float64
	minRowH  float64
}

func newGrid(pdf *gofpdf.Fpdf, tr func(string) string, fontSize float64) *grid {
	return &grid{
		pdf:      pdf,
		tr:       tr,
		fontSize: fontSize,
		padding:  3,
		minRowH:  fontSize * 1.6,
	}
}

// render draws rows starting at the current cursor and leaves the cursor
// below the table.
func (g *grid) render(rows []Block, width float64) error {
	if g.pdf.Err() {
		return g.pdf.Error()
	}

	widths := g.columnWidths(rows, width)
	if widths == nil {
		return nil
	}
	startX, _, _, _ := g.pdf.GetMargins()

	var headers []Block
	for _, r := range rows {
		if !r.Header {
			break
		}
		headers = append(headers, r)
	}

	_, pageH := g.pdf.GetPageSize()
	_, _, _, bMargin := g.pdf.GetMargins()
	for _, r := range rows {
		rowH := g.rowHeight(r, widths)
		if g.pdf.GetY()+rowH > pageH-bMargin {
			g.pdf.AddPage()
			if !r.Header {
				for _, h := range headers {
					g.renderRow(h, widths, startX)
				}
			}
		}
		g.renderRow(r, widths, startX)
	}
	g.pdf.SetFont("Helvetica", "", g.fontSize)
	return g.pdf.Error()
}

// columnWidths splits width equally over the widest row's cell count.
func (g *grid) columnWidths(rows []Block, width float64) []float64 {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r.Cells))
	}
	if cols == 0 {
		return nil
	}
	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = width / float64(cols)
	}
	return widths
}

func (g *grid) setFont(r Block) {
	style := ""
	if r.Header {
		style = "B"
	}
	g.pdf.SetFont("Helvetica", style, g.fontSize)
}

func (g *grid) rowHeight(r Block, widths []float64) float64 {
	g.setFont(r)
	lineH := g.fontSize * 1.35
	h := g.minRowH
	for i, text := range r.Cells {
		contentW := max(widths[i]-2*g.padding, 1)
		lines := g.pdf.SplitLines([]byte(g.tr(text)), contentW)
		h = max(h, float64(len(lines))*lineH+2*g.padding)
	}
	return h
}

func (g *grid) renderRow(r Block, widths []float64, startX float64) {
	rowH := g.rowHeight(r, widths)
	y := g.pdf.GetY()
	x := startX
	lineH := g.fontSize * 1.35

	for i, w := range widths {
		if r.Header {
			g.pdf.SetFillColor(235, 235, 235)
			g.pdf.Rect(x, y, w, rowH, "FD")
		} else {
			g.pdf.Rect(x, y, w, rowH, "D")
		}
		if i < len(r.Cells) {
			text := g.tr(r.Cells[i])
			g.pdf.SetXY(x+g.padding, y+g.padding)
			if strings.Contains(text, "\n") || g.pdf.GetStringWidth(text) > w-2*g.padding {
				g.pdf.MultiCell(w-2*g.padding, lineH, text, "", "L", false)
			} else {
				g.pdf.CellFormat(w-2*g.padding, lineH, text, "", 0, "L", false, 0, "")
			}
		}
		x += w
	}

	g.pdf.SetFillColor(255, 255, 255)
	g.pdf.SetXY(startX, y+rowH)
}
