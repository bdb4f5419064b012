package template

import (
	"github.com/lvillar/docfields/field"
	"github.com/lvillar/docfields/merge"
	"github.com/lvillar/docfields/token"
)

// Placement is a field positioned on the merged document.
type Placement struct {
	FieldID        string      `json:"fieldId"`
	DocumentID     string      `json:"documentId"`
	PageInDocument int         `json:"pageInDocument"`
	MergedPage     int         `json:"mergedPage"`
	Position       field.Point `json:"position"`
	Size           field.Size  `json:"size"`
}

// Generation is the output handed to the business layer: the filled body
// text, the value of every field, where each field lands in the merged
// document, and every problem found.
type Generation struct {
	Body       string            `json:"body"`
	Values     map[string]string `json:"values"`
	Placements []Placement       `json:"placements"`
	Errors     []error           `json:"-"`
}

// OK reports whether generation found no problems.
func (g Generation) OK() bool {
	return len(g.Errors) == 0
}

// Generate resolves body and field values from values, keyed by merge token.
// A field bound to a token takes that token's value; otherwise it takes its
// default value, in which tokens are resolved too. Every field is validated
// and every problem is collected; generation itself never fails. Fields that
// cannot be placed on the artifact are reported and left out of Placements.
func Generate(art merge.Artifact, fields []field.Field, values map[string]string, body string) Generation {
	g := Generation{
		Body:       token.Resolve(body, values),
		Values:     make(map[string]string, len(fields)),
		Placements: make([]Placement, 0, len(fields)),
	}

	for _, f := range fields {
		g.Values[f.ID] = FieldValue(f, values)

		page, err := art.Translate(f.DocumentID, f.PageInDocument)
		if err != nil {
			g.Errors = append(g.Errors, err)
			continue
		}
		g.Placements = append(g.Placements, Placement{
			FieldID:        f.ID,
			DocumentID:     f.DocumentID,
			PageInDocument: f.PageInDocument,
			MergedPage:     page,
			Position:       f.Position,
			Size:           f.Size,
		})
	}

	g.Errors = append(g.Errors, field.ValidateValues(fields, g.Values)...)
	return g
}

// FieldValue returns the value a field receives from token values.
func FieldValue(f field.Field, values map[string]string) string {
	if f.MergeField != "" {
		if v, ok := values[f.MergeField]; ok {
			return token.Resolve(v, values)
		}
	}
	return token.Resolve(f.DefaultValue, values)
}
