package geometry

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/lvillar/docfields/field"
)

// Handle is the part of a field a gesture started on.
type Handle int

const (
	HandleBody   Handle = iota // moves the field
	HandleResize               // bottom-right corner, resizes the field
)

// State is the controller's interaction state.
type State int

const (
	Idle State = iota
	Moving
	Resizing
)

func (s State) String() string {
	switch s {
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Fields is the part of the field store the controller needs.
// *field.Store implements it.
type Fields interface {
	Get(id string) (field.Field, error)
	Update(id string, p field.Patch) (field.Field, error)
	MinSize() (width, height float64)
}

// Controller turns pointer gestures into field moves and resizes. Pointer
// positions are screen coordinates; the displacement is divided by the
// current scale, so the same pointer path moves a field by the same
// document-space distance at any zoom. The live geometry is clamped on every
// move; only PointerUp writes to the store.
//
// A gesture on a field that no longer exists is a no-op and leaves the
// controller idle.
type Controller struct {
	fields Fields
	logger *zap.Logger

	mu          sync.Mutex
	transform   Transform
	state       State
	fieldID     string
	start       field.Point // pointer position at PointerDown, screen space
	lastPointer field.Point
	startPos    field.Point
	startSize   field.Size
	live        field.Field
}

// NewController creates an idle controller at scale 1.
func NewController(fields Fields, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{fields: fields, logger: logger, transform: NewTransform(1, field.Point{})}
}

// State returns the current interaction state and the field being edited.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.fieldID
}

// Transform returns the current transform.
func (c *Controller) Transform() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transform
}

// SetScale changes the zoom scale. A gesture in progress keeps its
// document-space progress: its start pointer is rebased so that the live
// geometry does not jump.
func (c *Controller) SetScale(scale float64) {
	c.SetTransform(NewTransform(scale, c.Transform().Origin))
}

// SetTransform replaces the transform, rebasing a gesture in progress.
func (c *Controller) SetTransform(t Transform) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		// Keep the document-space delta so far: start' = last - delta*scale'.
		dx, dy := c.transform.DeltaToDocument(c.lastPointer.X-c.start.X, c.lastPointer.Y-c.start.Y)
		c.start = field.Point{X: c.lastPointer.X - dx*t.scale(), Y: c.lastPointer.Y - dy*t.scale()}
	}
	c.transform = t
}

// PointerDown starts a gesture on a field.
func (c *Controller) PointerDown(fieldID string, h Handle, screen field.Point) (field.Field, bool) {
	f, err := c.fields.Get(fieldID)
	if err != nil {
		c.logger.Debug("pointer down on missing field", zap.String("field_id", fieldID), zap.Error(err))
		c.Cancel()
		return field.Field{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Moving
	if h == HandleResize {
		c.state = Resizing
	}
	c.fieldID = fieldID
	c.start = screen
	c.lastPointer = screen
	c.startPos = f.Position
	c.startSize = f.Size
	c.live = f
	return f, true
}

// PointerMove updates the gesture and returns the clamped live geometry.
// It does not write to the store.
func (c *Controller) PointerMove(screen field.Point) (field.Field, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return field.Field{}, false
	}
	c.applyLocked(screen)
	return c.live, true
}

// PointerUp finishes the gesture and commits the final geometry through the
// store. If the field disappeared during the gesture nothing is written.
func (c *Controller) PointerUp(screen field.Point) (field.Field, bool) {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return field.Field{}, false
	}
	c.applyLocked(screen)
	state, id, live := c.state, c.fieldID, c.live
	c.resetLocked()
	c.mu.Unlock()

	var p field.Patch
	if state == Moving {
		p.Position = &live.Position
	} else {
		p.Size = &live.Size
	}
	f, err := c.fields.Update(id, p)
	if err != nil {
		c.logger.Debug("gesture not committed", zap.String("field_id", id), zap.Error(err))
		return field.Field{}, false
	}
	return f, true
}

// Cancel abandons the gesture without writing anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) applyLocked(screen field.Point) {
	c.lastPointer = screen
	dx, dy := c.transform.DeltaToDocument(screen.X-c.start.X, screen.Y-c.start.Y)

	switch c.state {
	case Moving:
		c.live.Position = field.Point{
			X: math.Max(0, c.startPos.X+dx),
			Y: math.Max(0, c.startPos.Y+dy),
		}
	case Resizing:
		minW, minH := c.fields.MinSize()
		c.live.Size = field.Size{
			Width:  math.Max(minW, c.startSize.Width+dx),
			Height: math.Max(minH, c.startSize.Height+dy),
		}
	}
}

func (c *Controller) resetLocked() {
	c.state = Idle
	c.fieldID = ""
	c.live = field.Field{}
}

// HitTest returns the topmost field of the given document page containing p,
// a document-space point. Higher z wins; among equal z the most recently
// created field wins.
func HitTest(fields []field.Field, documentID string, page int, p field.Point) (field.Field, bool) {
	var hits []field.Field
	for _, f := range fields {
		if f.DocumentID == documentID && f.PageInDocument == page && f.Contains(p) {
			hits = append(hits, f)
		}
	}
	if len(hits) == 0 {
		return field.Field{}, false
	}
	top := slices.MaxFunc(hits, func(a, b field.Field) int {
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		return cmp.Compare(a.CreatedSeq, b.CreatedSeq)
	})
	return top, true
}
