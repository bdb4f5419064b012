package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvillar/docfields/docerr"
)

// Option configures a Registry.
type Option func(*Registry)

// WithMaxFileSize overrides the per-file intake ceiling.
func WithMaxFileSize(n int64) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// WithLogger sets the logger used for intake and normalization events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator replaces the UUID generator used for new documents.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// Registry holds the ordered set of source documents. It owns every
// document's source and normalized bytes and runs one normalization task per
// document at a time.
//
// Every mutation and every task start bumps a monotonic version. A task is
// stamped with the version at which it started, and its result is applied only
// while its document's current task carries the same stamp. Results for removed
// or replaced documents are discarded.
type Registry struct {
	normalizer Normalizer
	maxSize    int64
	logger     *zap.Logger
	newID      func() string

	mu      sync.Mutex
	order   []string
	entries map[string]*entry
	version uint64
	changed chan struct{}
}

type entry struct {
	doc    SourceDocument
	source []byte
	pdf    []byte
	task   *task
}

type task struct {
	version uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistry creates an empty registry that normalizes documents with n.
func NewRegistry(n Normalizer, opts ...Option) *Registry {
	r := &Registry{
		normalizer: n,
		maxSize:    DefaultMaxFileSize,
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
		entries:    make(map[string]*entry),
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add validates each file and appends the accepted ones in submission order.
// Rejected files produce a *docerr.ValidationError in errs and do not affect
// the other files. Every accepted document starts normalizing immediately;
// cancelling ctx cancels those tasks.
func (r *Registry) Add(ctx context.Context, files []File) (docs []SourceDocument, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range files {
		kind, err := CheckFile(f, r.maxSize)
		if err != nil {
			r.logger.Warn("rejected upload", zap.String("name", f.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}

		e := &entry{doc: SourceDocument{
			ID:           r.newID(),
			OriginalName: f.Name,
			Kind:         kind,
			ByteSize:     f.Size,
			Status:       StatusRaw,
		}}
		r.entries[e.doc.ID] = e
		r.order = append(r.order, e.doc.ID)
		r.startLocked(ctx, e, r.fileLoader(f))
		docs = append(docs, e.doc)
	}
	if len(docs) > 0 {
		r.bumpLocked()
	}
	return docs, errs
}

// Restore re-registers a persisted document under its original id and
// schedules normalization from the stored source bytes. The persisted page
// count is kept as a provisional value until normalization finishes.
func (r *Registry) Restore(ctx context.Context, doc SourceDocument, data []byte) (SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ID == "" {
		return SourceDocument{}, &docerr.ValidationError{Item: doc.OriginalName, Err: errors.New("missing id")}
	}
	if _, ok := r.entries[doc.ID]; ok {
		return SourceDocument{}, &docerr.ValidationError{Item: doc.OriginalName, Err: fmt.Errorf("duplicate id %s", doc.ID)}
	}

	doc.Status = StatusRaw
	doc.FailureReason = ""
	doc.ByteSize = int64(len(data))
	e := &entry{doc: doc}
	r.entries[doc.ID] = e
	r.order = append(r.order, doc.ID)
	r.startLocked(ctx, e, func(context.Context) ([]byte, error) { return data, nil })
	r.bumpLocked()
	return e.doc, nil
}

// Replace substitutes new content for an existing document, keeping its id and
// position. Any in-flight normalization of the old content is cancelled and
// its buffers are released.
func (r *Registry) Replace(ctx context.Context, id string, f File) (SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return SourceDocument{}, fmt.Errorf("%w: %s", docerr.ErrUnknownDocument, id)
	}
	kind, err := CheckFile(f, r.maxSize)
	if err != nil {
		return SourceDocument{}, err
	}

	r.releaseLocked(e)
	e.doc = SourceDocument{
		ID:           id,
		OriginalName: f.Name,
		Kind:         kind,
		ByteSize:     f.Size,
		Status:       StatusRaw,
	}
	r.startLocked(ctx, e, r.fileLoader(f))
	r.bumpLocked()
	return e.doc, nil
}

// Remove deletes a document, cancels its normalization and releases its
// buffers. Fields placed on it are removed by the caller that owns them.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", docerr.ErrUnknownDocument, id)
	}
	r.releaseLocked(e)
	delete(r.entries, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.bumpLocked()
	return nil
}

// Reorder sets a new document order. ids must be a permutation of the current
// ids; otherwise the order is left unchanged.
func (r *Registry) Reorder(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(ids) != len(r.order) {
		return fmt.Errorf("%w: got %d ids, have %d documents", docerr.ErrInvalidOrder, len(ids), len(r.order))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.entries[id]; !ok {
			return fmt.Errorf("%w: unknown id %s", docerr.ErrInvalidOrder, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %s", docerr.ErrInvalidOrder, id)
		}
		seen[id] = true
	}
	r.order = slices.Clone(ids)
	r.bumpLocked()
	return nil
}

// Documents returns the documents in merge order.
func (r *Registry) Documents() []SourceDocument {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]SourceDocument, 0, len(r.order))
	for _, id := range r.order {
		docs = append(docs, r.entries[id].doc)
	}
	return docs
}

// Get returns one document.
func (r *Registry) Get(id string) (SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return SourceDocument{}, fmt.Errorf("%w: %s", docerr.ErrUnknownDocument, id)
	}
	return e.doc, nil
}

// PageInfo returns the current page count and status of a document.
func (r *Registry) PageInfo(id string) (int, Status, error) {
	doc, err := r.Get(id)
	if err != nil {
		return 0, "", err
	}
	return doc.PageCount, doc.Status, nil
}

// Normalized returns the normalized PDF bytes of a document. The slice is
// owned by the registry and must not be modified.
func (r *Registry) Normalized(id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docerr.ErrUnknownDocument, id)
	}
	if e.doc.Status != StatusNormalized {
		return nil, fmt.Errorf("%w: %s", docerr.ErrDocumentNotReady, id)
	}
	return e.pdf, nil
}

// Source returns the original uploaded bytes of a document once they have
// been read. The slice is owned by the registry and must not be modified.
func (r *Registry) Source(id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docerr.ErrUnknownDocument, id)
	}
	if e.source == nil {
		return nil, fmt.Errorf("%w: %s", docerr.ErrDocumentNotReady, id)
	}
	return e.source, nil
}

// Pending reports whether any document is still being normalized.
func (r *Registry) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.task != nil {
			return true
		}
	}
	return false
}

// Version returns the registry's mutation counter.
func (r *Registry) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Changed returns a channel that is closed at the next mutation.
func (r *Registry) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// Retained returns the number of source and normalized bytes currently held.
// A PDF whose normalized form shares the source buffer is counted once.
func (r *Registry) Retained() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.entries {
		n += int64(len(e.source))
		if !sameBuffer(e.source, e.pdf) {
			n += int64(len(e.pdf))
		}
	}
	return n
}

// Wait blocks until no document of the registry is being normalized or ctx
// is done. Tasks started while waiting are waited for as well.
func (r *Registry) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		var dones []chan struct{}
		for _, e := range r.entries {
			if e.task != nil {
				dones = append(dones, e.task.done)
			}
		}
		r.mu.Unlock()

		if len(dones) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, done := range dones {
			g.Go(func() error {
				select {
				case <-done:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

func (r *Registry) fileLoader(f File) func(context.Context) ([]byte, error) {
	maxSize := r.maxSize
	return func(ctx context.Context) ([]byte, error) {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("document: opening %s: %w", f.Name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
		if err != nil {
			return nil, fmt.Errorf("document: reading %s: %w", f.Name, err)
		}
		if int64(len(data)) > maxSize {
			return nil, &docerr.ValidationError{Item: f.Name, Err: docerr.ErrTooLarge}
		}
		return data, ctx.Err()
	}
}

// startLocked launches the normalization task for e. The task keeps ctx's
// values but not its cancellation: only Remove, Replace and Restore of the
// same document stop it.
func (r *Registry) startLocked(ctx context.Context, e *entry, load func(context.Context) ([]byte, error)) {
	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.version++
	t := &task{version: r.version, cancel: cancel, done: make(chan struct{})}
	e.task = t

	id, kind := e.doc.ID, e.doc.Kind
	r.logger.Debug("normalization started", zap.String("document_id", id), zap.String("kind", string(kind)))
	go r.run(tctx, id, kind, t, load)
}

func (r *Registry) run(ctx context.Context, id string, kind Kind, t *task, load func(context.Context) ([]byte, error)) {
	defer close(t.done)
	defer t.cancel()

	data, err := load(ctx)
	var out Output
	if err == nil {
		out, err = r.normalizer.Normalize(ctx, kind, data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.task == nil || e.task.version != t.version {
		r.logger.Debug("discarding normalization result",
			zap.String("document_id", id),
			zap.Uint64("task_version", t.version),
			zap.Uint64("registry_version", r.version),
			zap.Error(docerr.ErrStaleResult))
		return
	}

	e.task = nil
	e.source = data
	if err != nil {
		failure := &docerr.NormalizationFailure{DocumentID: id, Err: err}
		e.pdf = nil
		e.doc.Status = StatusFailed
		e.doc.PageCount = 0
		e.doc.FailureReason = failure.Error()
		r.logger.Warn("normalization failed", zap.String("document_id", id), zap.Error(failure))
	} else {
		e.pdf = out.PDF
		e.doc.Status = StatusNormalized
		e.doc.PageCount = out.PageCount
		e.doc.FailureReason = ""
		r.logger.Debug("normalization finished",
			zap.String("document_id", id),
			zap.Int("pages", out.PageCount),
			zap.Bool("has_text", out.HasText))
	}
	r.bumpLocked()
}

func (r *Registry) releaseLocked(e *entry) {
	if e.task != nil {
		e.task.cancel()
		e.task = nil
	}
	e.source = nil
	e.pdf = nil
}

func (r *Registry) bumpLocked() {
	r.version++
	close(r.changed)
	r.changed = make(chan struct{})
}

func sameBuffer(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}
