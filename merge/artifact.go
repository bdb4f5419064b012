// Package merge concatenates normalized documents into one merged artifact
// and translates document-local page numbers into merged page numbers.
//
// The Artifact is a projection of the registry's current document order. It is
// rebuilt from scratch on every change and never patched; merged page numbers
// are computed from it on demand and are never stored on fields.
package merge

import (
	"fmt"

	"github.com/lvillar/docfields/docerr"
	"github.com/lvillar/docfields/document"
)

// Artifact describes the merged document: which documents it contains, in
// which order, and where each one starts.
type Artifact struct {
	OrderedDocumentIDs []string       `json:"orderedDocumentIds"`
	PageOffsets        map[string]int `json:"pageOffsets"`
	PageCounts         map[string]int `json:"pageCounts"`
	TotalPages         int            `json:"totalPages"`

	// Skipped lists failed documents left out of the merge, in registry order.
	Skipped []string `json:"skipped,omitempty"`

	// Pending is set when at least one document is still being normalized;
	// its page count, and every offset after it, is provisional.
	Pending bool `json:"pending"`
}

// Build computes the artifact for documents in registry order. A document's
// offset is the running page total before its own pages are added. Failed
// documents are skipped; documents still normalizing contribute their
// provisional page count and mark the artifact pending.
func Build(docs []document.SourceDocument) Artifact {
	a := Artifact{
		OrderedDocumentIDs: make([]string, 0, len(docs)),
		PageOffsets:        make(map[string]int, len(docs)),
		PageCounts:         make(map[string]int, len(docs)),
	}
	for _, d := range docs {
		switch d.Status {
		case document.StatusFailed:
			a.Skipped = append(a.Skipped, d.ID)
			continue
		case document.StatusRaw:
			a.Pending = true
		}
		a.OrderedDocumentIDs = append(a.OrderedDocumentIDs, d.ID)
		a.PageOffsets[d.ID] = a.TotalPages
		a.PageCounts[d.ID] = d.PageCount
		a.TotalPages += d.PageCount
	}
	return a
}

// Translate maps a document-local page (1-based) to its merged page number.
func (a Artifact) Translate(documentID string, page int) (int, error) {
	if len(a.OrderedDocumentIDs) == 0 {
		return 0, docerr.ErrNoDocuments
	}
	offset, ok := a.PageOffsets[documentID]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not part of the merged artifact", docerr.ErrUnknownDocument, documentID)
	}
	count := a.PageCounts[documentID]
	if count == 0 {
		return 0, fmt.Errorf("%w: %s", docerr.ErrEmptyDocument, documentID)
	}
	if page < 1 || page > count {
		return 0, &docerr.PageBoundsError{DocumentID: documentID, Page: page, PageCount: count}
	}
	return offset + page, nil
}

// Locate is the inverse of Translate: it maps a merged page number to the
// owning document and its document-local page.
func (a Artifact) Locate(mergedPage int) (documentID string, page int, err error) {
	if len(a.OrderedDocumentIDs) == 0 {
		return "", 0, docerr.ErrNoDocuments
	}
	if mergedPage < 1 || mergedPage > a.TotalPages {
		return "", 0, &docerr.PageBoundsError{Page: mergedPage, PageCount: a.TotalPages}
	}
	for _, id := range a.OrderedDocumentIDs {
		offset, count := a.PageOffsets[id], a.PageCounts[id]
		if mergedPage > offset && mergedPage <= offset+count {
			return id, mergedPage - offset, nil
		}
	}
	return "", 0, &docerr.PageBoundsError{Page: mergedPage, PageCount: a.TotalPages}
}
