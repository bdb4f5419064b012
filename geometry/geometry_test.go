package geometry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/field"
	"github.com/lvillar/docfields/geometry"
)

type onePage struct{}

func (onePage) PageInfo(string) (int, document.Status, error) {
	return 2, document.StatusNormalized, nil
}

func newField(t *testing.T, s *field.Store, pos field.Point, size field.Size) field.Field {
	t.Helper()
	f, err := s.Create("doc", 1, field.TypeText, pos, size)
	require.NoError(t, err)
	return f
}

func TestTransformRoundTrip(t *testing.T) {
	tr := geometry.NewTransform(1.75, field.Point{X: 30, Y: 12})
	p := field.Point{X: 100, Y: 240}

	screen := tr.DocumentToScreen(p)
	assert.InDelta(t, 205, screen.X, 1e-9)
	assert.InDelta(t, 432, screen.Y, 1e-9)

	back := tr.ScreenToDocument(screen)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	dx, dy := tr.DeltaToDocument(35, -7)
	assert.InDelta(t, 20, dx, 1e-9)
	assert.InDelta(t, -4, dy, 1e-9)

	assert.Equal(t, 1.0, geometry.NewTransform(0, field.Point{}).Scale)
}

// The same document-space drag gives the same final position at any zoom.
func TestMoveIsZoomInvariant(t *testing.T) {
	var results []field.Point
	for _, zoom := range []float64{0.25, 0.5, 1, 1.5, 2, 3.2} {
		s := field.NewStore(onePage{})
		f := newField(t, s, field.Point{X: 50, Y: 80}, field.Size{Width: 100, Height: 20})

		c := geometry.NewController(s, nil)
		c.SetScale(zoom)

		start := field.Point{X: 300, Y: 300}
		_, ok := c.PointerDown(f.ID, geometry.HandleBody, start)
		require.True(t, ok)
		for i := 1; i <= 4; i++ {
			_, ok := c.PointerMove(field.Point{X: start.X + float64(i)*10*zoom, Y: start.Y + float64(i)*5*zoom})
			require.True(t, ok)
		}
		got, ok := c.PointerUp(field.Point{X: start.X + 40*zoom, Y: start.Y + 20*zoom})
		require.True(t, ok)
		results = append(results, got.Position)
	}
	for i, p := range results {
		assert.InDelta(t, 90, p.X, 1e-9, "zoom #%d", i)
		assert.InDelta(t, 100, p.Y, 1e-9, "zoom #%d", i)
	}
}

func TestZoomChangeDuringDrag(t *testing.T) {
	s := field.NewStore(onePage{})
	f := newField(t, s, field.Point{X: 10, Y: 10}, field.Size{Width: 50, Height: 20})
	c := geometry.NewController(s, nil)

	c.PointerDown(f.ID, geometry.HandleBody, field.Point{X: 0, Y: 0})
	live, _ := c.PointerMove(field.Point{X: 20, Y: 0})
	assert.InDelta(t, 30, live.Position.X, 1e-9)

	c.SetScale(2)
	live, _ = c.PointerMove(field.Point{X: 20, Y: 0})
	assert.InDelta(t, 30, live.Position.X, 1e-9, "zooming must not move the field")

	got, ok := c.PointerUp(field.Point{X: 40, Y: 0})
	require.True(t, ok)
	assert.InDelta(t, 40, got.Position.X, 1e-9)
}

// Clamping applies on every frame, not only on commit.
func TestClampingOnEveryFrame(t *testing.T) {
	s := field.NewStore(onePage{})
	f := newField(t, s, field.Point{X: 10, Y: 10}, field.Size{Width: 50, Height: 20})
	c := geometry.NewController(s, nil)
	c.SetScale(2)

	c.PointerDown(f.ID, geometry.HandleBody, field.Point{X: 100, Y: 100})
	live, ok := c.PointerMove(field.Point{X: 0, Y: 50})
	require.True(t, ok)
	assert.Equal(t, field.Point{X: 0, Y: 0}, live.Position)

	stored, err := s.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Position, stored.Position, "moves must not write to the store")

	c.Cancel()
	state, _ := c.State()
	assert.Equal(t, geometry.Idle, state)

	c.PointerDown(f.ID, geometry.HandleResize, field.Point{X: 100, Y: 100})
	state, id := c.State()
	assert.Equal(t, geometry.Resizing, state)
	assert.Equal(t, f.ID, id)

	live, _ = c.PointerMove(field.Point{X: 0, Y: 0})
	assert.Equal(t, field.Size{Width: field.DefaultMinWidth, Height: field.DefaultMinHeight}, live.Size)

	got, ok := c.PointerUp(field.Point{X: 140, Y: 120})
	require.True(t, ok)
	assert.Equal(t, field.Size{Width: 70, Height: 30}, got.Size)
	assert.Equal(t, f.Position, got.Position)
}

func TestMissingFieldIsNoOp(t *testing.T) {
	s := field.NewStore(onePage{})
	c := geometry.NewController(s, nil)

	_, ok := c.PointerDown("missing", geometry.HandleBody, field.Point{})
	assert.False(t, ok)
	state, _ := c.State()
	assert.Equal(t, geometry.Idle, state)

	_, ok = c.PointerMove(field.Point{X: 5})
	assert.False(t, ok)

	f := newField(t, s, field.Point{}, field.Size{Width: 50, Height: 20})
	c.PointerDown(f.ID, geometry.HandleBody, field.Point{})
	require.NoError(t, s.Delete(f.ID))

	_, ok = c.PointerUp(field.Point{X: 10, Y: 10})
	assert.False(t, ok)
	state, _ = c.State()
	assert.Equal(t, geometry.Idle, state)
}

func TestHitTest(t *testing.T) {
	s := field.NewStore(onePage{})
	bottom := newField(t, s, field.Point{X: 0, Y: 0}, field.Size{Width: 100, Height: 100})
	top := newField(t, s, field.Point{X: 50, Y: 50}, field.Size{Width: 100, Height: 100})
	other, err := s.Create("doc", 2, field.TypeText, field.Point{}, field.Size{Width: 200, Height: 200})
	require.NoError(t, err)

	got, ok := geometry.HitTest(s.List(), "doc", 1, field.Point{X: 60, Y: 60})
	require.True(t, ok)
	assert.Equal(t, top.ID, got.ID, "most recently created wins")

	_, err = s.BringToFront(bottom.ID)
	require.NoError(t, err)
	got, _ = geometry.HitTest(s.List(), "doc", 1, field.Point{X: 60, Y: 60})
	assert.Equal(t, bottom.ID, got.ID, "explicit z-order wins")

	got, _ = geometry.HitTest(s.List(), "doc", 1, field.Point{X: 10, Y: 10})
	assert.Equal(t, bottom.ID, got.ID)

	got, ok = geometry.HitTest(s.List(), "doc", 2, field.Point{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, other.ID, got.ID)

	_, ok = geometry.HitTest(s.List(), "doc", 1, field.Point{X: 170, Y: 170})
	assert.False(t, ok)
	_, ok = geometry.HitTest(s.List(), "other-doc", 1, field.Point{X: 10, Y: 10})
	assert.False(t, ok)
}
