// Package document implements the document registry: the ordered list of
// uploaded source documents, their intake validation, and the lifecycle of
// their normalized PDF bytes.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/lvillar/docfields/docerr"
)

// Kind is the accepted source format of a document.
type Kind string

const (
	KindPDF           Kind = "pdf"
	KindWordProcessor Kind = "wordProcessor"
)

// Status is the normalization state of a document.
type Status string

const (
	StatusRaw        Status = "raw"        // normalization pending
	StatusNormalized Status = "normalized" // PDF bytes and page count available
	StatusFailed     Status = "failed"     // needs a PDF substitute
)

// MIME types accepted at intake.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DefaultMaxFileSize is the per-file intake ceiling (10 MiB).
const DefaultMaxFileSize int64 = 10 << 20

// SourceDocument is the registry's record of one uploaded document.
type SourceDocument struct {
	ID            string `json:"id"`
	OriginalName  string `json:"originalName"`
	Kind          Kind   `json:"mimeKind"`
	ByteSize      int64  `json:"byteSize"`
	PageCount     int    `json:"pageCount"`
	Status        Status `json:"status"`
	FailureReason string `json:"failureReason,omitempty"`
}

// File is a candidate upload as handed over by a file picker. Size is the
// declared size; Open is not called until the file has passed intake checks.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// BytesFile wraps in-memory content as a File.
func BytesFile(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// PathFile describes a file on disk, deriving the MIME type from its extension.
func PathFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("document: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("document: %s is a directory", path)
	}
	return File{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// DetectKind maps a MIME type, or the file extension when the MIME type is
// empty or generic, to an accepted Kind.
func DetectKind(name, mimeType string) (Kind, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case MIMEPDF:
		return KindPDF, nil
	case MIMEDOCX:
		return KindWordProcessor, nil
	case "", "application/octet-stream":
		switch strings.ToLower(filepath.Ext(name)) {
		case ".pdf":
			return KindPDF, nil
		case ".docx":
			return KindWordProcessor, nil
		}
	}
	return "", fmt.Errorf("%w: %q", docerr.ErrUnsupportedKind, mimeType)
}

// CheckFile runs the synchronous intake checks: accepted kind and declared
// size within maxSize. No byte of the file is read.
func CheckFile(f File, maxSize int64) (Kind, error) {
	kind, err := DetectKind(f.Name, f.MIMEType)
	if err != nil {
		return "", &docerr.ValidationError{Item: f.Name, Err: err}
	}
	if f.Size > maxSize {
		return "", &docerr.ValidationError{
			Item: f.Name,
			Err:  fmt.Errorf("%w: %d bytes, limit %d", docerr.ErrTooLarge, f.Size, maxSize),
		}
	}
	if f.Open == nil {
		return "", &docerr.ValidationError{Item: f.Name, Err: fmt.Errorf("no content")}
	}
	return kind, nil
}

// Output is the result of normalizing a document.
type Output struct {
	PDF       []byte
	PageCount int
	HasText   bool
}

// Normalizer converts source bytes of a given kind into PDF bytes.
type Normalizer interface {
	Normalize(ctx context.Context, kind Kind, data []byte) (Output, error)
}

// NormalizerFunc adapts a function to the Normalizer interface.
type NormalizerFunc func(ctx context.Context, kind Kind, data []byte) (Output, error)

func (f NormalizerFunc) Normalize(ctx context.Context, kind Kind, data []byte) (Output, error) {
	return f(ctx, kind, data)
}
