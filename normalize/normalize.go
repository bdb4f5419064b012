// Package normalize converts uploaded source documents into PDF.
//
// PDF sources pass through unchanged after their page count has been read.
// Word-processor (DOCX) sources are reduced to a plain structured
// representation (headings, paragraphs, list items, table rows, page breaks)
// and laid out into a minimal PDF body with gofpdf. The conversion is best
// effort: page count and the presence of text are what downstream components
// rely on, not layout fidelity.
package normalize

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/pdfinfo"
)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLayout sets the layout used for converted word-processor documents.
func WithLayout(l Layout) Option {
	return func(n *Normalizer) {
		n.layout = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// Normalizer implements document.Normalizer.
type Normalizer struct {
	layout Layout
	logger *zap.Logger
}

var _ document.Normalizer = (*Normalizer)(nil)

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns PDF bytes and the page count for data of the given kind.
func (n *Normalizer) Normalize(ctx context.Context, kind document.Kind, data []byte) (document.Output, error) {
	if err := ctx.Err(); err != nil {
		return document.Output{}, err
	}

	switch kind {
	case document.KindPDF:
		pages, err := pdfinfo.PageCount(data)
		if err != nil {
			return document.Output{}, err
		}
		return document.Output{PDF: data, PageCount: pages, HasText: pdfinfo.HasText(data)}, nil

	case document.KindWordProcessor:
		blocks, err := ExtractDOCX(ctx, data)
		if err != nil {
			return document.Output{}, err
		}
		pdf, pages, err := n.layout.Render(ctx, blocks)
		if err != nil {
			return document.Output{}, err
		}
		n.logger.Debug("converted word-processor document",
			zap.Int("blocks", len(blocks)),
			zap.Int("pages", pages))
		return document.Output{PDF: pdf, PageCount: pages, HasText: hasText(blocks)}, nil

	default:
		return document.Output{}, fmt.Errorf("normalize: unsupported kind %q", kind)
	}
}

func hasText(blocks []Block) bool {
	for _, b := range blocks {
		if b.Kind != BlockPageBreak && b.Text != "" {
			return true
		}
	}
	return false
}
