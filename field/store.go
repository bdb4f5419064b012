package field

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvillar/docfields/docerr"
	"github.com/lvillar/docfields/document"
)

// PageInfo reports the current page count and normalization status of a
// document. *document.Registry implements it.
type PageInfo interface {
	PageInfo(documentID string) (int, document.Status, error)
}

// Option configures a Store.
type Option func(*Store)

// WithVocabulary sets the merge tokens a field may bind to. The slice is copied.
func WithVocabulary(tokens []string) Option {
	return func(s *Store) {
		s.rules.vocabulary = make(map[string]bool, len(tokens))
		for _, t := range tokens {
			s.rules.vocabulary[t] = true
		}
	}
}

// WithMinSize overrides the minimum field width and height.
func WithMinSize(width, height float64) Option {
	return func(s *Store) {
		if width > 0 {
			s.rules.minWidth = width
		}
		if height > 0 {
			s.rules.minHeight = height
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator replaces the UUID generator used for new fields.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store holds the fields of an editing session. All writes are serialized;
// the last write wins and every write stamps the field with a new version.
type Store struct {
	pages  PageInfo
	rules  placement
	logger *zap.Logger
	newID  func() string

	mu      sync.RWMutex
	fields  map[string]*Field
	seq     uint64
	version uint64
	topZ    int
}

// NewStore creates an empty store that checks page bounds against pages.
func NewStore(pages PageInfo, opts ...Option) *Store {
	s := &Store{
		pages: pages,
		rules: placement{
			minWidth:   DefaultMinWidth,
			minHeight:  DefaultMinHeight,
			vocabulary: map[string]bool{},
		},
		logger: zap.NewNop(),
		newID:  uuid.NewString,
		fields: make(map[string]*Field),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinSize returns the minimum field width and height.
func (s *Store) MinSize() (width, height float64) {
	return s.rules.minWidth, s.rules.minHeight
}

// Vocabulary reports whether name is a known merge token.
func (s *Store) Vocabulary(name string) bool {
	return s.rules.vocabulary[name]
}

// Create places a new field of type typ on a page of a document. The field
// gets a default label for its type; other attributes are set with Update.
func (s *Store) Create(documentID string, page int, typ Type, pos Point, size Size) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	f := Field{
		ID:             s.newID(),
		DocumentID:     documentID,
		PageInDocument: page,
		Type:           typ,
		Label:          fmt.Sprintf("%s %d", defaultLabels[typ], s.seq),
		Position:       pos,
		Size:           size,
		CreatedSeq:     s.seq,
	}
	if err := s.checkLocked(f); err != nil {
		return Field{}, err
	}

	s.version++
	f.Version = s.version
	s.fields[f.ID] = &f

	s.logger.Debug("field created",
		zap.String("field_id", f.ID),
		zap.String("document_id", documentID),
		zap.Int("page", page),
		zap.String("type", string(typ)))
	return f.clone(), nil
}

// Update applies p to a field. The patched field is re-validated against the
// document's current page count; on failure the field is left unchanged.
func (s *Store) Update(id string, p Patch) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.fields[id]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", docerr.ErrUnknownField, id)
	}
	next := p.apply(cur.clone())
	if err := s.checkLocked(next); err != nil {
		return Field{}, err
	}

	s.version++
	next.Version = s.version
	*cur = next
	return next.clone(), nil
}

// Delete removes a field.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fields[id]; !ok {
		return fmt.Errorf("%w: %s", docerr.ErrUnknownField, id)
	}
	delete(s.fields, id)
	s.version++
	return nil
}

// DeleteAllForDocument removes every field placed on a document and returns
// how many were removed.
func (s *Store) DeleteAllForDocument(documentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, f := range s.fields {
		if f.DocumentID == documentID {
			delete(s.fields, id)
			n++
		}
	}
	if n > 0 {
		s.version++
		s.logger.Debug("fields removed with document", zap.String("document_id", documentID), zap.Int("count", n))
	}
	return n
}

// BringToFront raises a field above every other field.
func (s *Store) BringToFront(id string) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[id]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", docerr.ErrUnknownField, id)
	}
	s.topZ++
	s.version++
	f.Z = s.topZ
	f.Version = s.version
	return f.clone(), nil
}

// Get returns a copy of one field.
func (s *Store) Get(id string) (Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.fields[id]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", docerr.ErrUnknownField, id)
	}
	return f.clone(), nil
}

// List returns copies of all fields in creation order.
func (s *Store) List() []Field {
	return s.list(func(Field) bool { return true })
}

// ListByDocument returns the fields of one document in creation order.
func (s *Store) ListByDocument(documentID string) []Field {
	return s.list(func(f Field) bool { return f.DocumentID == documentID })
}

func (s *Store) list(keep func(Field) bool) []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if keep(*f) {
			out = append(out, f.clone())
		}
	}
	slices.SortFunc(out, func(a, b Field) int { return cmp.Compare(a.CreatedSeq, b.CreatedSeq) })
	return out
}

// Load replaces the store's contents with persisted fields. Page bounds are
// not checked because the owning documents may still be normalizing, and
// merge tokens are kept even when they are outside the vocabulary; all other
// placement rules are checked. Creation order and z-order are preserved.
func (s *Store) Load(fields []Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.rules
	rules.vocabulary = nil
	loaded := make(map[string]*Field, len(fields))
	var seq uint64
	var topZ int
	for _, f := range fields {
		if f.ID == "" {
			return &docerr.ValidationError{Item: f.Label, Err: fmt.Errorf("%w: missing id", docerr.ErrInvalidField)}
		}
		if _, dup := loaded[f.ID]; dup {
			return &docerr.ValidationError{Item: f.Label, Err: fmt.Errorf("%w: duplicate id %s", docerr.ErrInvalidField, f.ID)}
		}
		if f.PageInDocument < 1 {
			return &docerr.PageBoundsError{DocumentID: f.DocumentID, Page: f.PageInDocument}
		}
		if err := rules.check(f); err != nil {
			return &docerr.ValidationError{Item: f.Label, Err: err}
		}
		c := f.clone()
		loaded[f.ID] = &c
		seq = max(seq, f.CreatedSeq)
		topZ = max(topZ, f.Z)
	}

	s.fields = loaded
	s.seq = seq
	s.topZ = topZ
	s.version++
	for _, f := range s.fields {
		if f.CreatedSeq == 0 {
			s.seq++
			f.CreatedSeq = s.seq
		}
		f.Version = s.version
	}
	return nil
}

// Version returns the store's write counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// checkLocked validates f against the document's current page count and the
// placement rules.
func (s *Store) checkLocked(f Field) error {
	pageCount, status, err := s.pages.PageInfo(f.DocumentID)
	if err != nil {
		return err
	}
	switch {
	case status == document.StatusRaw:
		return fmt.Errorf("%w: %s", docerr.ErrDocumentNotReady, f.DocumentID)
	case pageCount == 0:
		return fmt.Errorf("%w: %s", docerr.ErrEmptyDocument, f.DocumentID)
	case f.PageInDocument < 1 || f.PageInDocument > pageCount:
		return &docerr.PageBoundsError{DocumentID: f.DocumentID, Page: f.PageInDocument, PageCount: pageCount}
	}
	if err := s.rules.check(f); err != nil {
		return &docerr.ValidationError{Item: f.Label, Err: err}
	}
	return nil
}
