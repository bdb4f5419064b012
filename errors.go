package docfields

import (
	"errors"

	"github.com/lvillar/docfields/docerr"
)

// Errors returned by Session operations. They are the docerr sentinels,
// re-exported so callers of this package need not import docerr.
var (
	ErrUnsupportedKind  = docerr.ErrUnsupportedKind
	ErrTooLarge         = docerr.ErrTooLarge
	ErrInvalidOrder     = docerr.ErrInvalidOrder
	ErrUnknownDocument  = docerr.ErrUnknownDocument
	ErrUnknownField     = docerr.ErrUnknownField
	ErrNoDocuments      = docerr.ErrNoDocuments
	ErrEmptyDocument    = docerr.ErrEmptyDocument
	ErrDocumentNotReady = docerr.ErrDocumentNotReady
	ErrPageBounds       = docerr.ErrPageBounds
	ErrMissingRequired  = docerr.ErrMissingRequired
	ErrInvalidField     = docerr.ErrInvalidField
	ErrInvalidValue     = docerr.ErrInvalidValue

	// ErrSessionNotEmpty is returned by Open on a session that already holds
	// documents.
	ErrSessionNotEmpty = errors.New("docfields: session already has documents")
)

// newOpError wraps err with the name of the Session operation that failed.
func newOpError(op string, err error) error {
	return docerr.Op(op, err)
}
