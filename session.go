// Package docfields is the editor session of the document template builder.
//
// A Session ties together the document registry, the field store, the merge
// engine and the geometry controller. Documents are uploaded, normalized to
// PDF in the background and merged in registry order; fields are placed on
// document-local pages and translated to merged pages only when rendered,
// previewed or generated.
//
// Example:
//
//	s := docfields.New(docfields.WithTokens([]string{"buyerName"}))
//	defer s.Close()
//	docs, errs := s.AddDocuments(ctx, files)
//	...
//	res, err := s.Rebuild(ctx)
package docfields

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/field"
	"github.com/lvillar/docfields/geometry"
	"github.com/lvillar/docfields/merge"
	"github.com/lvillar/docfields/normalize"
	"github.com/lvillar/docfields/stamp"
	"github.com/lvillar/docfields/template"
)

// Session is one template-editing session. It is safe for concurrent use.
type Session struct {
	cfg      *sessionConfig
	logger   *zap.Logger
	registry *document.Registry
	fields   *field.Store
	engine   *merge.Engine
	geometry *geometry.Controller

	// mu serializes operations that span the registry and the field store.
	mu sync.Mutex

	subsMu  sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
}

// New creates an empty session.
func New(opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.normalizer == nil {
		cfg.normalizer = normalize.New(normalize.WithLogger(cfg.logger.Named("normalize")))
	}

	s := &Session{
		cfg:    cfg,
		logger: cfg.logger,
		subs:   make(map[uint64]chan Event),
	}
	s.registry = document.NewRegistry(cfg.normalizer,
		document.WithMaxFileSize(cfg.maxFileSize),
		document.WithLogger(cfg.logger.Named("registry")))
	s.fields = field.NewStore(s.registry,
		field.WithVocabulary(cfg.tokens),
		field.WithMinSize(cfg.minWidth, cfg.minHeight),
		field.WithLogger(cfg.logger.Named("fields")))
	s.engine = merge.NewEngine(cfg.logger.Named("merge"))
	s.geometry = geometry.NewController(s.fields, cfg.logger.Named("geometry"))
	return s
}

// Registry returns the session's document registry.
func (s *Session) Registry() *document.Registry { return s.registry }

// Fields returns the session's field store.
func (s *Session) Fields() *field.Store { return s.fields }

// Geometry returns the controller that turns pointer gestures into field
// edits.
func (s *Session) Geometry() *geometry.Controller { return s.geometry }

// AddDocuments validates and registers files. Rejected files are reported
// individually and never abort the batch.
func (s *Session) AddDocuments(ctx context.Context, files []document.File) ([]document.SourceDocument, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Add(ctx, files)
}

// RemoveDocument removes a document together with every field placed on it
// and returns how many fields were removed.
func (s *Session) RemoveDocument(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Remove(id); err != nil {
		return 0, newOpError("RemoveDocument", err)
	}
	n := s.fields.DeleteAllForDocument(id)
	s.publish(Event{Kind: EventFieldsRemoved, DocumentID: id, Version: s.fields.Version()})
	s.logger.Info("document removed", zap.String("document_id", id), zap.Int("fields_removed", n))
	return n, nil
}

// ReplaceDocument substitutes new content for a document, keeping its id,
// position and fields. Fields whose page no longer exists after
// normalization are reported by Generate and Preview.
func (s *Session) ReplaceDocument(ctx context.Context, id string, f document.File) (document.SourceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.registry.Replace(ctx, id, f)
	if err != nil {
		return document.SourceDocument{}, newOpError("ReplaceDocument", err)
	}
	return doc, nil
}

// Reorder sets the merge order. ids must be a permutation of the current
// document ids.
func (s *Session) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newOpError("Reorder", s.registry.Reorder(ids))
}

// Documents returns the documents in merge order.
func (s *Session) Documents() []document.SourceDocument {
	return s.registry.Documents()
}

// Artifact returns the merged artifact for the current documents without
// waiting for normalization. It is marked Pending while any document is
// still being normalized.
func (s *Session) Artifact() merge.Artifact {
	return merge.Build(s.registry.Documents())
}

// Rebuild waits for normalization to finish and rebuilds the merged PDF.
func (s *Session) Rebuild(ctx context.Context) (merge.Result, error) {
	res, err := s.engine.Rebuild(ctx, s.registry)
	if err != nil {
		return merge.Result{}, newOpError("Rebuild", err)
	}
	return res, nil
}

// Wait blocks until no document is being normalized.
func (s *Session) Wait(ctx context.Context) error {
	return s.registry.Wait(ctx)
}

// MergedPage returns the merged page a field currently lands on.
func (s *Session) MergedPage(fieldID string) (int, error) {
	f, err := s.fields.Get(fieldID)
	if err != nil {
		return 0, newOpError("MergedPage", err)
	}
	art := s.Artifact()
	if art.Pending {
		return 0, newOpError("MergedPage", fmt.Errorf("%w: merge order has documents still normalizing", ErrDocumentNotReady))
	}
	page, err := art.Translate(f.DocumentID, f.PageInDocument)
	if err != nil {
		return 0, newOpError("MergedPage", err)
	}
	return page, nil
}

// PlaceField creates a field on a page of a document.
func (s *Session) PlaceField(documentID string, page int, typ field.Type, pos field.Point, size field.Size) (field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fields.Create(documentID, page, typ, pos, size)
	if err != nil {
		return field.Field{}, newOpError("PlaceField", err)
	}
	s.publish(Event{Kind: EventFieldCreated, DocumentID: documentID, FieldID: f.ID, Version: f.Version})
	return f, nil
}

// UpdateField applies a partial update to a field.
func (s *Session) UpdateField(id string, p field.Patch) (field.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fields.Update(id, p)
	if err != nil {
		return field.Field{}, newOpError("UpdateField", err)
	}
	s.publish(Event{Kind: EventFieldUpdated, DocumentID: f.DocumentID, FieldID: id, Version: f.Version})
	return f, nil
}

// DeleteField removes a field.
func (s *Session) DeleteField(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fields.Get(id)
	if err != nil {
		return newOpError("DeleteField", err)
	}
	if err := s.fields.Delete(id); err != nil {
		return newOpError("DeleteField", err)
	}
	s.publish(Event{Kind: EventFieldDeleted, DocumentID: f.DocumentID, FieldID: id, Version: s.fields.Version()})
	return nil
}

// HitTest returns the topmost field at a document-space point of a page.
func (s *Session) HitTest(documentID string, page int, p field.Point) (field.Field, bool) {
	return geometry.HitTest(s.fields.ListByDocument(documentID), documentID, page, p)
}

// Generate rebuilds the merged artifact and resolves body and field values
// from token values. Validation problems are returned in the Generation.
func (s *Session) Generate(ctx context.Context, values map[string]string, body string) (template.Generation, error) {
	res, err := s.Rebuild(ctx)
	if err != nil {
		return template.Generation{}, err
	}
	return template.Generate(res.Artifact, s.fields.List(), values, body), nil
}

// Preview rebuilds the merged PDF and paints every field over it with the
// value it would receive from token values.
func (s *Session) Preview(ctx context.Context, values map[string]string, opts stamp.Options) ([]byte, error) {
	res, err := s.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	if res.PDF == nil {
		return nil, newOpError("Preview", ErrNoDocuments)
	}

	fields := s.fields.List()
	byField := make(map[string]string, len(fields))
	for _, f := range fields {
		byField[f.ID] = template.FieldValue(f, values)
	}
	overlays, err := stamp.Overlays(res.Artifact, fields, byField)
	if err != nil {
		return nil, newOpError("Preview", err)
	}
	out, err := stamp.Render(ctx, res.PDF, res.Artifact, overlays, opts)
	if err != nil {
		return nil, newOpError("Preview", err)
	}
	return out, nil
}

// Meta is the descriptive part of a saved template.
type Meta struct {
	ID          string // generated when empty
	Name        string
	Category    string
	Description string
	Body        string
	Status      template.Status // default: draft
}

// Save waits for normalization to finish, stores every document's source
// bytes in sources and the template record in repo, and returns the record.
func (s *Session) Save(ctx context.Context, repo template.Repository, sources template.SourceStore, meta Meta) (template.Template, error) {
	if err := s.registry.Wait(ctx); err != nil {
		return template.Template{}, newOpError("Save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.registry.Documents()
	for _, d := range docs {
		data, err := s.registry.Source(d.ID)
		if err != nil {
			return template.Template{}, newOpError("Save", err)
		}
		if err := sources.PutSource(ctx, d.ID, data); err != nil {
			return template.Template{}, newOpError("Save", err)
		}
	}

	t := template.Template{
		ID:          meta.ID,
		Name:        meta.Name,
		Category:    meta.Category,
		Description: meta.Description,
		Files:       docs,
		Fields:      s.fields.List(),
		Body:        meta.Body,
		Status:      meta.Status,
		UpdatedAt:   s.cfg.clock().UTC(),
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = template.StatusDraft
	}
	if err := repo.Save(ctx, t); err != nil {
		return template.Template{}, newOpError("Save", err)
	}
	s.logger.Info("template saved",
		zap.String("template_id", t.ID),
		zap.Int("documents", len(t.Files)),
		zap.Int("fields", len(t.Fields)))
	return t, nil
}

// Open loads a template into an empty session. Documents are restored under
// their saved ids and normalized again from their stored source bytes; the
// saved fields are restored as they were.
func (s *Session) Open(ctx context.Context, repo template.Repository, sources template.SourceStore, id string) (template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.registry.Documents()) > 0 {
		return template.Template{}, newOpError("Open", ErrSessionNotEmpty)
	}
	t, err := repo.Load(ctx, id)
	if err != nil {
		return template.Template{}, newOpError("Open", err)
	}

	restored := make([]string, 0, len(t.Files))
	undo := func() {
		for _, id := range restored {
			_ = s.registry.Remove(id)
		}
	}
	for _, d := range t.Files {
		data, err := sources.GetSource(ctx, d.ID)
		if err != nil {
			undo()
			return template.Template{}, newOpError("Open", err)
		}
		if _, err := s.registry.Restore(ctx, d, data); err != nil {
			undo()
			return template.Template{}, newOpError("Open", err)
		}
		restored = append(restored, d.ID)
	}
	if err := s.fields.Load(t.Fields); err != nil {
		undo()
		return template.Template{}, newOpError("Open", err)
	}

	s.logger.Info("template opened",
		zap.String("template_id", t.ID),
		zap.Int("documents", len(t.Files)),
		zap.Int("fields", len(t.Fields)))
	return t, nil
}

// Retained returns the number of document and merged bytes the session holds.
func (s *Session) Retained() int64 {
	n := s.registry.Retained()
	if res, ok := s.engine.Latest(); ok {
		n += int64(len(res.PDF))
	}
	return n
}

// Close removes every document and releases all buffers. Subscriptions end
// when their contexts are cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.registry.Documents() {
		_ = s.registry.Remove(d.ID)
		s.fields.DeleteAllForDocument(d.ID)
	}
	s.engine.Release()
}
