// Package view maps between model coordinates and screen pixels under pan,
// zoom, rotation and an optional horizontal mirror.
package view

import (
	"errors"
	"math"

	"falcomplot/pkg/geometry"
)

// Gesture constants.
const (
	ZoomInFactor      = 1.1
	ZoomOutFactor     = 0.9
	RotateSensitivity = 0.005 // radians per pixel
	DefaultPadding    = 40
)

// ErrDegenerateBounds is returned by AutoFit for non-finite or zero-area
// bounds.
var ErrDegenerateBounds = errors.New("degenerate bounds")

// Transform is the view state. A model point p lands on screen at
//
//	T + K*(Center + R(Angle)*F*(p - Center))
//
// where F mirrors x when FlipX is set.
type Transform struct {
	X, Y  float64
	K     float64
	Angle float64
	FlipX bool

	Center geometry.Point2D

	// Initial is the transform saved by the last successful AutoFit.
	Initial *Transform
}

// New returns the identity view.
func New() *Transform {
	return &Transform{K: 1}
}

// Matrix returns the model-to-screen transform.
func (t *Transform) Matrix() geometry.AffineTransform {
	flip := 1.0
	if t.FlipX {
		flip = -1
	}
	c := t.Center
	m := geometry.Translation(t.X, t.Y)
	m = m.Compose(geometry.Scale(t.K, t.K))
	m = m.Compose(geometry.Translation(c.X, c.Y))
	m = m.Compose(geometry.Rotation(t.Angle))
	m = m.Compose(geometry.Scale(flip, 1))
	return m.Compose(geometry.Translation(-c.X, -c.Y))
}

// ModelToScreen maps a model point to screen pixels.
func (t *Transform) ModelToScreen(p geometry.Point2D) geometry.Point2D {
	return t.Matrix().Apply(p)
}

// ScreenToModel is the inverse of ModelToScreen. A collapsed transform maps
// every point to NaN.
func (t *Transform) ScreenToModel(s geometry.Point2D) geometry.Point2D {
	inv, ok := t.Matrix().Inverse()
	if !ok {
		return geometry.Point2D{X: math.NaN(), Y: math.NaN()}
	}
	return inv.Apply(s)
}

// FitBounds extends block bounds by every finite node position.
func FitBounds(blockBounds geometry.Bounds, nodes []geometry.Point2D) geometry.Bounds {
	b := blockBounds
	for _, p := range nodes {
		if p.IsFinite() {
			b = b.Extend(p)
		}
	}
	return b
}

// AutoFit scales and centres b inside a width x height canvas with padding
// on every side, resets rotation and saves the result as Initial. On
// ErrDegenerateBounds the transform is left unchanged.
func (t *Transform) AutoFit(b geometry.Bounds, width, height, padding float64) error {
	if !b.HasArea() {
		return ErrDegenerateBounds
	}
	w := math.Max(1e-9, b.Width())
	h := math.Max(1e-9, b.Height())
	scale := math.Min((width-2*padding)/w, (height-2*padding)/h)
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return ErrDegenerateBounds
	}

	t.Center = b.Center()
	t.K = scale
	t.X = padding + (width-scale*(b.MinX+b.MaxX))/2
	t.Y = padding + (height-scale*(b.MinY+b.MaxY))/2
	t.Angle = 0
	t.saveInitial()
	return nil
}

func (t *Transform) saveInitial() {
	init := *t
	init.Initial = nil
	t.Initial = &init
}

// ZoomAt scales by factor keeping the model point under screen fixed in the
// way the wheel handler does: T -= m*(f-1)*K, then K *= f.
func (t *Transform) ZoomAt(screen geometry.Point2D, factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	m := t.ScreenToModel(screen)
	t.X -= m.X * (factor - 1) * t.K
	t.Y -= m.Y * (factor - 1) * t.K
	t.K *= factor
}

// Wheel zooms in for negative deltas and out otherwise.
func (t *Transform) Wheel(screen geometry.Point2D, deltaY float64) {
	if deltaY < 0 {
		t.ZoomAt(screen, ZoomInFactor)
		return
	}
	t.ZoomAt(screen, ZoomOutFactor)
}

// Pan moves the view by a screen delta.
func (t *Transform) Pan(dx, dy float64) {
	t.X += dx
	t.Y += dy
}

// Rotate sets the angle from a drag that started at startAngle and has moved
// dxPx pixels horizontally.
func (t *Transform) Rotate(startAngle, dxPx float64) {
	t.Angle = startAngle + dxPx*RotateSensitivity
}

// SetFlipX toggles the horizontal mirror.
func (t *Transform) SetFlipX(flip bool) {
	t.FlipX = flip
}

// Reset restores the transform saved by AutoFit. It reports false when there
// is none.
func (t *Transform) Reset() bool {
	if t.Initial == nil {
		return false
	}
	init := t.Initial
	flip := t.FlipX
	*t = *init
	t.FlipX = flip
	t.Initial = init
	return true
}

// Clone returns a copy sharing the saved Initial.
func (t *Transform) Clone() Transform {
	return *t
}
