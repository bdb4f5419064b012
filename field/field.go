// Package field implements the field store: typed fields placed on pages of
// source documents, their placement invariants and their generation-time
// value rules.
//
// Field geometry is kept in document space (PDF points, origin top-left) and
// is relative to a page of the owning document. The merged page number is
// never stored; it is computed from the current merged artifact when needed.
package field

// Type specifies the kind of a field. The set is closed.
type Type string

const (
	TypeText      Type = "text"
	TypeTextarea  Type = "textarea"
	TypeNumber    Type = "number"
	TypeSignature Type = "signature"
	TypeDate      Type = "date"
	TypeCheckbox  Type = "checkbox"
	TypeDropdown  Type = "dropdown"
)

// Types returns every accepted field type.
func Types() []Type {
	return []Type{TypeText, TypeTextarea, TypeNumber, TypeSignature, TypeDate, TypeCheckbox, TypeDropdown}
}

// Valid reports whether t is one of the accepted types.
func (t Type) Valid() bool {
	for _, v := range Types() {
		if t == v {
			return true
		}
	}
	return false
}

// DateLayout is the layout date values must follow.
const DateLayout = "2006-01-02"

// Default minimum field size in document units.
const (
	DefaultMinWidth  = 20.0
	DefaultMinHeight = 10.0
)

// MaxLabelLength is the longest accepted label, in runes.
const MaxLabelLength = 120

// Point is a position in document space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width and height in document space.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rules are optional constraints on a field's value.
type Rules struct {
	Pattern   string   `json:"pattern,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// Field is a typed input placed on one page of a source document.
type Field struct {
	ID             string   `json:"id"`
	DocumentID     string   `json:"documentId"`
	PageInDocument int      `json:"pageInDocument"`
	Type           Type     `json:"type"`
	Label          string   `json:"label"`
	Placeholder    string   `json:"placeholder,omitempty"`
	Required       bool     `json:"required"`
	Position       Point    `json:"position"`
	Size           Size     `json:"size"`
	Options        []string `json:"options,omitempty"`
	DefaultValue   string   `json:"defaultValue,omitempty"`
	MergeField     string   `json:"mergeField,omitempty"`
	Validation     *Rules   `json:"validation,omitempty"`

	Z          int    `json:"z"`
	Version    uint64 `json:"version"`
	CreatedSeq uint64 `json:"createdSeq"`
}

// Contains reports whether p lies inside the field's rectangle, edges included.
func (f Field) Contains(p Point) bool {
	return p.X >= f.Position.X && p.X <= f.Position.X+f.Size.Width &&
		p.Y >= f.Position.Y && p.Y <= f.Position.Y+f.Size.Height
}

// Patch is a partial update. Nil members are left unchanged.
type Patch struct {
	PageInDocument *int
	Type           *Type
	Label          *string
	Placeholder    *string
	Required       *bool
	Position       *Point
	Size           *Size
	Options        *[]string
	DefaultValue   *string
	MergeField     *string
	Validation     *Rules // an empty Rules clears the constraints
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) apply(f Field) Field {
	if p.PageInDocument != nil {
		f.PageInDocument = *p.PageInDocument
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Label != nil {
		f.Label = *p.Label
	}
	if p.Placeholder != nil {
		f.Placeholder = *p.Placeholder
	}
	if p.Required != nil {
		f.Required = *p.Required
	}
	if p.Position != nil {
		f.Position = *p.Position
	}
	if p.Size != nil {
		f.Size = *p.Size
	}
	if p.Options != nil {
		f.Options = append([]string(nil), (*p.Options)...)
	}
	if p.DefaultValue != nil {
		f.DefaultValue = *p.DefaultValue
	}
	if p.MergeField != nil {
		f.MergeField = *p.MergeField
	}
	if p.Validation != nil {
		if *p.Validation == (Rules{}) {
			f.Validation = nil
		} else {
			r := *p.Validation
			f.Validation = &r
		}
	}
	return f
}

func (f Field) clone() Field {
	f.Options = append([]string(nil), f.Options...)
	if f.Validation != nil {
		r := *f.Validation
		f.Validation = &r
	}
	return f
}

var defaultLabels = map[Type]string{
	TypeText:      "Text",
	TypeTextarea:  "Text area",
	TypeNumber:    "Number",
	TypeSignature: "Signature",
	TypeDate:      "Date",
	TypeCheckbox:  "Checkbox",
	TypeDropdown:  "Dropdown",
}
