// Package template defines the persisted shape of a document template, the
// repository it is stored through, and the generation boundary that turns a
// template plus token values into resolved, validated output.
//
// A Template carries document metadata and fields only. The merged PDF is
// never persisted; it is rebuilt from the stored source documents.
package template

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/field"
)

// ErrNotFound is returned when a template or source document does not exist.
var ErrNotFound = errors.New("template: not found")

// Status is the lifecycle state of a template.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Template is the serializable template record.
type Template struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Category    string                    `json:"category,omitempty"`
	Description string                    `json:"description,omitempty"`
	Files       []document.SourceDocument `json:"files"`
	Fields      []field.Field             `json:"fields"`
	Body        string                    `json:"body,omitempty"`
	Status      Status                    `json:"status"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

// Validate checks the record: required metadata, a known status, and fields
// that reference a stored document page.
func (t Template) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&t.Category, validation.RuneLength(0, 100)),
		validation.Field(&t.Status, validation.Required, validation.In(StatusDraft, StatusActive, StatusArchived)),
		validation.Field(&t.Files, validation.Each(validation.By(checkFile))),
		validation.Field(&t.Fields, validation.By(t.checkFields)),
	)
}

func checkFile(v any) error {
	d, _ := v.(document.SourceDocument)
	return validation.Errors{
		"id":       validation.Validate(d.ID, validation.Required),
		"mimeKind": validation.Validate(d.Kind, validation.Required, validation.In(document.KindPDF, document.KindWordProcessor)),
	}.Filter()
}

func (t Template) checkFields(any) error {
	pages := make(map[string]int, len(t.Files))
	for _, d := range t.Files {
		pages[d.ID] = d.PageCount
	}
	for _, f := range t.Fields {
		count, ok := pages[f.DocumentID]
		if !ok {
			return fmt.Errorf("field %s references unknown document %s", f.ID, f.DocumentID)
		}
		if f.PageInDocument < 1 || (count > 0 && f.PageInDocument > count) {
			return fmt.Errorf("field %s is on page %d of a %d-page document", f.ID, f.PageInDocument, count)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("field %s has unknown type %q", f.ID, f.Type)
		}
	}
	return nil
}

// Summary is the list view of a template.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Status    Status    `json:"status"`
	Files     int       `json:"files"`
	Fields    int       `json:"fields"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository stores template records.
type Repository interface {
	Save(ctx context.Context, t Template) error
	Load(ctx context.Context, id string) (Template, error)
	List(ctx context.Context, status Status) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// SourceStore stores the original bytes of a template's documents, keyed by
// document id.
type SourceStore interface {
	PutSource(ctx context.Context, documentID string, data []byte) error
	GetSource(ctx context.Context, documentID string) ([]byte, error)
}
