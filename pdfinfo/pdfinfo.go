// Package pdfinfo inspects PDF bytes: page counting with pdfcpu and text-layer
// extraction with ledongthuc/pdf.
package pdfinfo

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// pdfcpu otherwise materializes a config directory under the user's home.
	api.DisableConfigDir()
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), []byte("%PDF")) {
		return 0, fmt.Errorf("pdfinfo: missing %%PDF header")
	}
	n, err := api.PageCount(bytes.NewReader(data), configuration())
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: counting pages: %w", err)
	}
	return n, nil
}

// Text returns the plain text layer of a PDF. Image-only PDFs yield "".
func Text(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfinfo: extracting text: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdfinfo: opening: %w", err)
	}
	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdfinfo: extracting text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, rd); err != nil {
		return "", fmt.Errorf("pdfinfo: extracting text: %w", err)
	}
	return sb.String(), nil
}

// PageSizes returns the width and height in points of every page, in order.
func PageSizes(data []byte) ([]types.Dim, error) {
	dims, err := api.PageDims(bytes.NewReader(data), configuration())
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: reading page sizes: %w", err)
	}
	return dims, nil
}

// PageText returns the text drawn directly by the content stream of one
// page, 1-based. Text inside form XObjects is not followed.
func PageText(data []byte, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfinfo: extracting page %d: %v", page, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdfinfo: opening: %w", err)
	}
	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("pdfinfo: page %d out of range 1..%d", page, r.NumPage())
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("pdfinfo: page %d missing", page)
	}
	return p.GetPlainText(nil)
}

// HasText reports whether the PDF carries a non-blank text layer. Extraction
// failures count as no text.
func HasText(data []byte) bool {
	text, err := Text(data)
	if err != nil {
		return false
	}
	return strings.TrimSpace(text) != ""
}
