package merge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/lvillar/docfields/docerr"
	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/pdfinfo"
)

// A4 in points, used when a source page reports no MediaBox.
const (
	defaultPageW = 595.28
	defaultPageH = 841.89
)

// Part is one normalized document to concatenate.
type Part struct {
	DocumentID string
	PDF        []byte
}

// Concatenate appends the pages of every part, in order, into a single PDF.
// Output pages keep the size and content of their source page. Cancellation
// is checked between parts.
func Concatenate(ctx context.Context, parts []Part) ([]byte, error) {
	if len(parts) == 0 {
		return nil, docerr.ErrNoDocuments
	}

	var rsc []io.ReadSeeker
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := pdfinfo.PageCount(p.PDF)
		if err != nil {
			return nil, fmt.Errorf("merge: appending %s: %w", p.DocumentID, err)
		}
		if n > 0 {
			rsc = append(rsc, bytes.NewReader(p.PDF))
		}
	}
	if len(rsc) == 0 {
		return nil, docerr.ErrNoDocuments
	}

	var buf bytes.Buffer
	if err := mergeRaw(rsc, &buf); err != nil {
		return nil, fmt.Errorf("merge: writing merged PDF: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// mergeRaw writes rsc merged into w with classic cross-reference tables, so
// the result can be imported again page by page. pdfcpu panics on some
// malformed inputs; the panic is returned as an error.
func mergeRaw(rsc []io.ReadSeeker, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return api.MergeRaw(rsc, w, false, conf)
}

// PageFunc is called after a source page has been placed on the current
// output page. page is 1-based within the source; w and h are the page size
// in points.
type PageFunc func(page int, w, h float64) error

// ImportPages appends every page of data to pdf, each on a new output page
// sized after the source MediaBox, and calls fn after each one. It returns
// the number of pages imported.
func ImportPages(ctx context.Context, pdf *gofpdf.Fpdf, data []byte, fn PageFunc) (int, error) {
	pageCount, err := pdfinfo.PageCount(data)
	if err != nil {
		return 0, err
	}

	imp := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(data)

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		tplID, w, h, err := importPage(pdf, imp, &rs, i)
		if err != nil {
			return 0, fmt.Errorf("page %d: %w", i, err)
		}
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tplID, 0, 0, w, h)
		if fn != nil {
			if err := fn(i, w, h); err != nil {
				return 0, err
			}
		}
	}
	return pageCount, pdf.Error()
}

// importPage imports one page as a template and returns its id and MediaBox
// size. gofpdi panics on malformed input; the panic is returned as an error.
func importPage(pdf *gofpdf.Fpdf, imp *gofpdi.Importer, rs *io.ReadSeeker, pageNum int) (tplID int, w, h float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("importing page: %v", r)
		}
	}()

	tplID = imp.ImportPageFromStream(pdf, rs, pageNum, "/MediaBox")
	if dims, ok := imp.GetPageSizes()[pageNum]; ok {
		if mb, ok := dims["/MediaBox"]; ok {
			w, h = mb["w"], mb["h"]
		}
	}
	if w == 0 || h == 0 {
		w, h = defaultPageW, defaultPageH
	}
	return tplID, w, h, nil
}

// Source is what the engine reads documents from; *document.Registry
// satisfies it.
type Source interface {
	Wait(ctx context.Context) error
	Version() uint64
	Documents() []document.SourceDocument
	Normalized(id string) ([]byte, error)
}

// Result is a merged artifact together with its bytes. Version is the
// source version the artifact was built from.
type Result struct {
	Artifact Artifact
	PDF      []byte
	Version  uint64
}

// Engine rebuilds merged artifacts and owns the bytes of the latest one.
// A rebuild releases the bytes of the result it supersedes. A rebuild that
// finishes after a newer one is returned to its caller but never replaces
// the newer result.
type Engine struct {
	logger *zap.Logger

	mu     sync.Mutex
	latest *Result
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Rebuild waits for every outstanding normalization in src, then builds the
// artifact and concatenates the normalized documents. With no mergeable
// pages the result carries the artifact and no bytes.
func (e *Engine) Rebuild(ctx context.Context, src Source) (Result, error) {
	var (
		art     Artifact
		version uint64
	)
	for {
		if err := src.Wait(ctx); err != nil {
			return Result{}, err
		}
		version = src.Version()
		art = Build(src.Documents())
		if !art.Pending {
			break
		}
	}

	parts := make([]Part, 0, len(art.OrderedDocumentIDs))
	for _, id := range art.OrderedDocumentIDs {
		if art.PageCounts[id] == 0 {
			continue
		}
		data, err := src.Normalized(id)
		if err != nil {
			return Result{}, fmt.Errorf("merge: %w", err)
		}
		parts = append(parts, Part{DocumentID: id, PDF: data})
	}

	res := Result{Artifact: art, Version: version}
	if len(parts) > 0 {
		data, err := Concatenate(ctx, parts)
		if err != nil {
			return Result{}, err
		}
		res.PDF = data
	}

	e.mu.Lock()
	if e.latest != nil && e.latest.Version > version {
		e.mu.Unlock()
		e.logger.Debug("discarding superseded merge",
			zap.Uint64("version", version),
			zap.Error(docerr.ErrStaleResult))
		return res, nil
	}
	e.releaseLocked()
	e.latest = &res
	e.mu.Unlock()

	e.logger.Info("merged artifact rebuilt",
		zap.Int("documents", len(art.OrderedDocumentIDs)),
		zap.Int("total_pages", art.TotalPages),
		zap.Strings("skipped", art.Skipped),
		zap.Int("bytes", len(res.PDF)))
	return res, nil
}

// Latest returns the most recent rebuild result.
func (e *Engine) Latest() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return Result{}, false
	}
	return *e.latest, true
}

// Release drops the engine's merged bytes.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
}

func (e *Engine) releaseLocked() {
	if e.latest != nil {
		e.latest.PDF = nil
		e.latest = nil
	}
}
