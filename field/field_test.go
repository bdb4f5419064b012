package field_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/docfields/docerr"
	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/field"
)

type pageInfo map[string]struct {
	pages  int
	status document.Status
}

func (p pageInfo) PageInfo(id string) (int, document.Status, error) {
	d, ok := p[id]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", docerr.ErrUnknownDocument, id)
	}
	return d.pages, d.status, nil
}

func newStore(opts ...field.Option) *field.Store {
	pages := pageInfo{
		"contract": {pages: 3, status: document.StatusNormalized},
		"annex":    {pages: 1, status: document.StatusNormalized},
		"loading":  {pages: 0, status: document.StatusRaw},
		"blank":    {pages: 0, status: document.StatusNormalized},
	}
	return field.NewStore(pages, opts...)
}

func ptr[T any](v T) *T { return &v }

var box = field.Size{Width: 120, Height: 24}

func TestCreate(t *testing.T) {
	s := newStore()

	f, err := s.Create("contract", 2, field.TypeSignature, field.Point{X: 40, Y: 600}, box)
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "contract", f.DocumentID)
	assert.Equal(t, 2, f.PageInDocument)
	assert.Equal(t, "Signature 1", f.Label)
	assert.NotZero(t, f.Version)

	got, err := s.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestCreateRejections(t *testing.T) {
	s := newStore()
	origin := field.Point{}

	tests := []struct {
		name string
		doc  string
		page int
		typ  field.Type
		pos  field.Point
		size field.Size
		want error
	}{
		{"unknown document", "missing", 1, field.TypeText, origin, box, docerr.ErrUnknownDocument},
		{"still normalizing", "loading", 1, field.TypeText, origin, box, docerr.ErrDocumentNotReady},
		{"no pages", "blank", 1, field.TypeText, origin, box, docerr.ErrEmptyDocument},
		{"page zero", "contract", 0, field.TypeText, origin, box, docerr.ErrPageBounds},
		{"page past end", "annex", 2, field.TypeText, origin, box, docerr.ErrPageBounds},
		{"too narrow", "contract", 1, field.TypeText, origin, field.Size{Width: 19, Height: 24}, docerr.ErrInvalidField},
		{"too short", "contract", 1, field.TypeText, origin, field.Size{Width: 120, Height: 9.5}, docerr.ErrInvalidField},
		{"zero width", "contract", 1, field.TypeText, origin, field.Size{Height: 24}, docerr.ErrInvalidField},
		{"negative x", "contract", 1, field.TypeText, field.Point{X: -1}, box, docerr.ErrInvalidField},
		{"unknown type", "contract", 1, field.Type("image"), origin, box, docerr.ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.doc, tt.page, tt.typ, tt.pos, tt.size)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, s.List())
}

func TestCreateAtMinimumSize(t *testing.T) {
	s := newStore(field.WithMinSize(30, 15))
	_, err := s.Create("contract", 1, field.TypeDate, field.Point{}, field.Size{Width: 30, Height: 15})
	assert.NoError(t, err)

	_, err = s.Create("contract", 1, field.TypeDate, field.Point{}, field.Size{Width: 25, Height: 15})
	assert.ErrorIs(t, err, docerr.ErrInvalidField)
}

// A rejected update leaves the stored field as it was.
func TestUpdateRejectionLeavesFieldUnchanged(t *testing.T) {
	s := newStore()
	f, err := s.Create("annex", 1, field.TypeText, field.Point{X: 10, Y: 10}, box)
	require.NoError(t, err)

	_, err = s.Update(f.ID, field.Patch{PageInDocument: ptr(2)})
	var pbe *docerr.PageBoundsError
	require.ErrorAs(t, err, &pbe)
	assert.Equal(t, 1, pbe.PageCount)

	_, err = s.Update(f.ID, field.Patch{Position: &field.Point{X: 50, Y: -3}})
	assert.ErrorIs(t, err, docerr.ErrInvalidField)

	got, err := s.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestUpdate(t *testing.T) {
	s := newStore(field.WithVocabulary([]string{"client.name", "contract.date"}))
	f, err := s.Create("contract", 1, field.TypeText, field.Point{}, box)
	require.NoError(t, err)

	updated, err := s.Update(f.ID, field.Patch{
		Label:      ptr("Client name"),
		Required:   ptr(true),
		MergeField: ptr("client.name"),
		Position:   &field.Point{X: 72, Y: 144},
		Validation: &field.Rules{MinLength: ptr(2), MaxLength: ptr(80)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Client name", updated.Label)
	assert.True(t, updated.Required)
	assert.Equal(t, field.Point{X: 72, Y: 144}, updated.Position)
	assert.Greater(t, updated.Version, f.Version)

	_, err = s.Update(f.ID, field.Patch{MergeField: ptr("client.ssn")})
	assert.ErrorIs(t, err, docerr.ErrInvalidField)

	cleared, err := s.Update(f.ID, field.Patch{Validation: &field.Rules{}})
	require.NoError(t, err)
	assert.Nil(t, cleared.Validation)

	_, err = s.Update("nope", field.Patch{Label: ptr("x")})
	assert.ErrorIs(t, err, docerr.ErrUnknownField)
}

func TestPlacementRules(t *testing.T) {
	s := newStore()
	f, err := s.Create("contract", 1, field.TypeText, field.Point{}, box)
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch field.Patch
		key   string
	}{
		{"options on text", field.Patch{Options: &[]string{"a"}}, "options"},
		{"empty label", field.Patch{Label: ptr("")}, "label"},
		{"min above max length", field.Patch{Validation: &field.Rules{MinLength: ptr(5), MaxLength: ptr(2)}}, "validation"},
		{"min above max", field.Patch{Validation: &field.Rules{Min: ptr(10.0), Max: ptr(1.0)}}, "validation"},
		{"bad pattern", field.Patch{Validation: &field.Rules{Pattern: "([a-z"}}, "validation"},
		{"required dropdown without options", field.Patch{Type: ptr(field.TypeDropdown), Required: ptr(true)}, "options"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(f.ID, tt.patch)
			require.ErrorIs(t, err, docerr.ErrInvalidField)

			var verrs validation.Errors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tt.key)
		})
	}

	dd, err := s.Update(f.ID, field.Patch{
		Type:     ptr(field.TypeDropdown),
		Required: ptr(true),
		Options:  &[]string{"Monthly", "Yearly"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Monthly", "Yearly"}, dd.Options)
}

// Deleting a document's fields removes exactly those fields.
func TestDeleteAllForDocument(t *testing.T) {
	s := newStore()
	for i := 0; i < 3; i++ {
		_, err := s.Create("contract", i+1, field.TypeText, field.Point{}, box)
		require.NoError(t, err)
	}
	kept, err := s.Create("annex", 1, field.TypeCheckbox, field.Point{}, field.Size{Width: 20, Height: 20})
	require.NoError(t, err)

	assert.Equal(t, 3, s.DeleteAllForDocument("contract"))
	assert.Empty(t, s.ListByDocument("contract"))
	assert.Equal(t, []field.Field{kept}, s.List())
	assert.Equal(t, 0, s.DeleteAllForDocument("contract"))
}

func TestDelete(t *testing.T) {
	s := newStore()
	f, err := s.Create("annex", 1, field.TypeDate, field.Point{}, box)
	require.NoError(t, err)

	require.NoError(t, s.Delete(f.ID))
	assert.ErrorIs(t, s.Delete(f.ID), docerr.ErrUnknownField)
	_, err = s.Get(f.ID)
	assert.ErrorIs(t, err, docerr.ErrUnknownField)
}

func TestBringToFront(t *testing.T) {
	s := newStore()
	a, _ := s.Create("annex", 1, field.TypeText, field.Point{}, box)
	b, _ := s.Create("annex", 1, field.TypeText, field.Point{}, box)

	front, err := s.BringToFront(a.ID)
	require.NoError(t, err)
	assert.Greater(t, front.Z, b.Z)

	_, err = s.BringToFront("nope")
	assert.ErrorIs(t, err, docerr.ErrUnknownField)
}

func TestConcurrentUpdatesGetDistinctVersions(t *testing.T) {
	s := newStore()
	f, err := s.Create("contract", 1, field.TypeText, field.Point{}, box)
	require.NoError(t, err)

	const writers = 20
	versions := make(chan uint64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := s.Update(f.ID, field.Patch{Position: &field.Point{X: float64(i), Y: float64(i)}})
			if err == nil {
				versions <- u.Version
			}
		}(i)
	}
	wg.Wait()
	close(versions)

	seen := make(map[uint64]bool)
	var last uint64
	for v := range versions {
		assert.False(t, seen[v], "version %d assigned twice", v)
		seen[v] = true
		last = max(last, v)
	}
	assert.Len(t, seen, writers)

	got, err := s.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, last, got.Version)
}

func TestLoad(t *testing.T) {
	s := newStore()
	persisted := []field.Field{
		{ID: "f2", DocumentID: "x", PageInDocument: 4, Type: field.TypeText, Label: "Second", Size: box, CreatedSeq: 2},
		{ID: "f1", DocumentID: "x", PageInDocument: 1, Type: field.TypeDate, Label: "First", Size: box, CreatedSeq: 1, Z: 3},
	}
	require.NoError(t, s.Load(persisted))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "f1", list[0].ID)

	next, err := s.Create("annex", 1, field.TypeText, field.Point{}, box)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.CreatedSeq)

	front, err := s.BringToFront(next.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, front.Z)

	bad := []field.Field{{ID: "f1", DocumentID: "x", PageInDocument: 1, Type: field.TypeText, Label: "A", Size: field.Size{Width: 1, Height: 1}}}
	assert.Error(t, s.Load(bad))
	assert.Len(t, s.List(), 3, "failed load must keep the previous contents")
}

func TestValidateValues(t *testing.T) {
	fields := []field.Field{
		{ID: "name", Label: "Name", Type: field.TypeText, Required: true, Validation: &field.Rules{MinLength: ptr(2)}},
		{ID: "zip", Label: "Postal code", Type: field.TypeText, Validation: &field.Rules{Pattern: `^\d{5}$`}},
		{ID: "notes", Label: "Notes", Type: field.TypeTextarea, Validation: &field.Rules{MaxLength: ptr(10)}},
		{ID: "qty", Label: "Quantity", Type: field.TypeNumber, Validation: &field.Rules{Min: ptr(1.0), Max: ptr(10.0)}},
		{ID: "start", Label: "Start", Type: field.TypeDate},
		{ID: "plan", Label: "Plan", Type: field.TypeDropdown, Options: []string{"Basic", "Pro"}},
		{ID: "sign", Label: "Signature", Type: field.TypeSignature, Required: true},
		{ID: "agree", Label: "Agree", Type: field.TypeCheckbox},
	}

	t.Run("all valid", func(t *testing.T) {
		values := map[string]string{
			"name": "Ada", "zip": "12345", "notes": "short", "qty": "3",
			"start": "2026-01-31", "plan": "Pro", "sign": "Ada L.", "agree": "yes",
		}
		assert.Empty(t, field.ValidateValues(fields, values))
	})

	t.Run("every problem reported", func(t *testing.T) {
		values := map[string]string{
			"name": "A", "zip": "1234", "notes": "far too long for this", "qty": "11",
			"start": "31/01/2026", "plan": "Enterprise",
		}
		errs := field.ValidateValues(fields, values)
		require.Len(t, errs, 7)

		var missing *docerr.MissingRequiredFieldError
		require.True(t, errors.As(errs[6], &missing))
		assert.Equal(t, "sign", missing.FieldID)

		for _, err := range errs[:6] {
			var fe *docerr.FieldError
			assert.ErrorAs(t, err, &fe)
			assert.ErrorIs(t, err, docerr.ErrInvalidValue)
		}
	})

	t.Run("non-numeric number", func(t *testing.T) {
		errs := field.ValidateValues(fields[3:4], map[string]string{"qty": "three"})
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], docerr.ErrInvalidValue)
	})
}

// A required dropdown without options can never be satisfied.
func TestValidateValuesRequiredDropdownWithoutOptions(t *testing.T) {
	fields := []field.Field{{ID: "tier", Label: "Tier", Type: field.TypeDropdown, Required: true}}

	errs := field.ValidateValues(fields, map[string]string{"tier": "Gold"})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], docerr.ErrMissingRequired)
}
