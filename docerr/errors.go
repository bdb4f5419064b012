// Package docerr defines the error taxonomy shared by the docfields packages.
//
// Every error here is recoverable. Operations return them as values; callers
// inspect them with errors.Is against the sentinels or errors.As against the
// typed errors to decide how to present them.
package docerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for guard conditions and rejected operations.
var (
	ErrUnsupportedKind  = errors.New("docfields: unsupported document kind")
	ErrTooLarge         = errors.New("docfields: file exceeds size limit")
	ErrInvalidOrder     = errors.New("docfields: order is not a permutation of the current documents")
	ErrUnknownDocument  = errors.New("docfields: unknown document")
	ErrUnknownField     = errors.New("docfields: unknown field")
	ErrNoDocuments      = errors.New("docfields: no documents")
	ErrEmptyDocument    = errors.New("docfields: document has no pages")
	ErrDocumentNotReady = errors.New("docfields: document is still being normalized")
	ErrPageBounds       = errors.New("docfields: page out of bounds")
	ErrMissingRequired  = errors.New("docfields: missing required field")
	ErrNormalization    = errors.New("docfields: normalization failed")
	ErrStaleResult      = errors.New("docfields: stale result")
	ErrInvalidField     = errors.New("docfields: invalid field")
	ErrInvalidValue     = errors.New("docfields: invalid field value")
)

// OpError records the operation during which an error occurred.
type OpError struct {
	Op  string // operation name, e.g. "Reorder", "Concatenate"
	Err error  // underlying error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docfields.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("docfields.%s: unknown error", e.Op)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Op wraps err with operation context. A nil err stays nil.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// ValidationError reports a rejected input item: a file at intake or a field
// at placement. Item names the file or field.
type ValidationError struct {
	Item string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %v", e.Item, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PageBoundsError reports a page number outside a document's current page count.
type PageBoundsError struct {
	DocumentID string
	Page       int
	PageCount  int
}

func (e *PageBoundsError) Error() string {
	return fmt.Sprintf("page %d out of range [1, %d] for document %s", e.Page, e.PageCount, e.DocumentID)
}

func (e *PageBoundsError) Is(target error) bool {
	return target == ErrPageBounds
}

// MissingRequiredFieldError reports a required field without a value at
// generation time.
type MissingRequiredFieldError struct {
	FieldID string
	Label   string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q (%s) has no value", e.Label, e.FieldID)
}

func (e *MissingRequiredFieldError) Is(target error) bool {
	return target == ErrMissingRequired
}

// FieldError reports a field value that violates its validation rules.
type FieldError struct {
	FieldID string
	Label   string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (%s): %v", e.Label, e.FieldID, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidValue
}

// NormalizationFailure reports a document that could not be converted to PDF.
// The document stays registered in the failed state.
type NormalizationFailure struct {
	DocumentID string
	Err        error
}

func (e *NormalizationFailure) Error() string {
	return fmt.Sprintf("normalizing document %s: %v", e.DocumentID, e.Err)
}

func (e *NormalizationFailure) Unwrap() error {
	return e.Err
}

func (e *NormalizationFailure) Is(target error) bool {
	return target == ErrNormalization
}
