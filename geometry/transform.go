// Package geometry converts between screen and document coordinates and
// turns pointer gestures into field moves and resizes.
//
// Every component outside this package works in document space only. Screen
// coordinates enter through a Transform, which is the single place where the
// zoom scale is applied.
package geometry

import (
	"github.com/lvillar/docfields/field"
)

// Transform maps a rendered page on screen to document space. Scale is the
// number of screen pixels per document unit; Origin is the screen position of
// the page's top-left corner.
type Transform struct {
	Scale  float64
	Origin field.Point
}

// NewTransform returns a Transform with the given scale and origin. A
// non-positive scale is treated as 1.
func NewTransform(scale float64, origin field.Point) Transform {
	if scale <= 0 {
		scale = 1
	}
	return Transform{Scale: scale, Origin: origin}
}

func (t Transform) scale() float64 {
	if t.Scale <= 0 {
		return 1
	}
	return t.Scale
}

// ScreenToDocument converts a screen position to document space.
func (t Transform) ScreenToDocument(p field.Point) field.Point {
	s := t.scale()
	return field.Point{X: (p.X - t.Origin.X) / s, Y: (p.Y - t.Origin.Y) / s}
}

// DocumentToScreen converts a document-space position to the screen.
func (t Transform) DocumentToScreen(p field.Point) field.Point {
	s := t.scale()
	return field.Point{X: p.X*s + t.Origin.X, Y: p.Y*s + t.Origin.Y}
}

// DeltaToDocument converts a screen displacement to a document-space one.
func (t Transform) DeltaToDocument(dx, dy float64) (float64, float64) {
	s := t.scale()
	return dx / s, dy / s
}

// SizeToScreen converts a document-space size to screen pixels.
func (t Transform) SizeToScreen(sz field.Size) field.Size {
	s := t.scale()
	return field.Size{Width: sz.Width * s, Height: sz.Height * s}
}
