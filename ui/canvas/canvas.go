// Package canvas provides the map canvas with pan, zoom, rotate and hover.
package canvas

import (
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"falcomplot/internal/app"
	"falcomplot/internal/render"
	"falcomplot/internal/session"
	"falcomplot/internal/view"
	"falcomplot/pkg/geometry"
)

// flashFrame is the redraw interval while a node highlight is flashing.
const flashFrame = 50 * time.Millisecond

// MapCanvas paints the session state and turns pointer input into view and
// highlight changes. Drag pans; a secondary-button drag rotates; the wheel
// zooms at the pointer.
type MapCanvas struct {
	widget.BaseWidget

	sess    *session.Session
	painter *render.Painter
	raster  *fynecanvas.Raster

	mu         sync.Mutex
	pixelScale float32
	fitted     bool
	secondary  bool
	rotating   bool
	dragAngle  float64
	dragDX     float64
	flashArmed bool

	onHover func(app.HoverResult)
}

// NewMapCanvas creates a canvas over sess.
func NewMapCanvas(sess *session.Session, painter *render.Painter) *MapCanvas {
	c := &MapCanvas{
		sess:       sess,
		painter:    painter,
		pixelScale: 1,
	}
	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels
	c.raster.SetMinSize(fyne.NewSize(400, 300))
	c.ExtendBaseWidget(c)
	return c
}

// OnHover registers a callback for every hover result.
func (c *MapCanvas) OnHover(f func(app.HoverResult)) {
	c.onHover = f
}

// draw is the raster drawing function. w and h are device pixels.
func (c *MapCanvas) draw(w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	c.mu.Lock()
	if size := c.Size(); size.Width > 0 {
		c.pixelScale = float32(w) / size.Width
	}
	fitted := c.fitted
	c.fitted = true
	c.mu.Unlock()

	vw, vh := c.sess.Viewport()
	if vw != float64(w) || vh != float64(h) {
		c.sess.SetViewport(float64(w), float64(h))
		if !fitted {
			c.sess.FitTree(c.sess.State.Tree())
		}
	}

	now := time.Now()
	snap := c.sess.State.Snapshot()
	t := c.sess.View()
	img := c.painter.Paint(snap, &t, w, h, now)

	if snap.NodeFlashing(now) {
		c.scheduleFlash()
	}
	return img
}

func (c *MapCanvas) scheduleFlash() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flashArmed {
		return
	}
	c.flashArmed = true
	time.AfterFunc(flashFrame, func() {
		c.mu.Lock()
		c.flashArmed = false
		c.mu.Unlock()
		c.Refresh()
	})
}

// toPixels converts a widget position to raster pixels.
func (c *MapCanvas) toPixels(p fyne.Position) (float64, float64) {
	c.mu.Lock()
	s := c.pixelScale
	c.mu.Unlock()
	return float64(p.X * s), float64(p.Y * s)
}

// ResetView restores the last fit.
func (c *MapCanvas) ResetView() {
	c.sess.UpdateView(func(t *view.Transform) { t.Reset() })
	c.Refresh()
}

// SetFlipX mirrors the map horizontally.
func (c *MapCanvas) SetFlipX(flip bool) {
	c.sess.UpdateView(func(t *view.Transform) { t.SetFlipX(flip) })
	c.Refresh()
}

// Refresh repaints the raster.
func (c *MapCanvas) Refresh() {
	c.raster.Refresh()
}

// MouseIn implements desktop.Hoverable.
func (c *MapCanvas) MouseIn(ev *desktop.MouseEvent) {
	c.hover(ev.Position)
}

// MouseMoved implements desktop.Hoverable.
func (c *MapCanvas) MouseMoved(ev *desktop.MouseEvent) {
	c.hover(ev.Position)
}

// MouseOut implements desktop.Hoverable.
func (c *MapCanvas) MouseOut() {
	if c.sess.State.ClearHighlight() {
		c.Refresh()
	}
	if c.onHover != nil {
		c.onHover(app.HoverResult{})
	}
}

func (c *MapCanvas) hover(pos fyne.Position) {
	x, y := c.toPixels(pos)
	res := c.sess.HoverAt(x, y, time.Now())
	if res.Changed {
		c.Refresh()
	}
	if c.onHover != nil {
		c.onHover(res)
	}
}

// MouseDown implements desktop.Mouseable; it records which button drags.
func (c *MapCanvas) MouseDown(ev *desktop.MouseEvent) {
	c.mu.Lock()
	c.secondary = ev.Button == desktop.MouseButtonSecondary
	c.mu.Unlock()
}

// MouseUp implements desktop.Mouseable.
func (c *MapCanvas) MouseUp(ev *desktop.MouseEvent) {
	c.mu.Lock()
	c.secondary = false
	c.mu.Unlock()
}

// Dragged implements fyne.Draggable.
func (c *MapCanvas) Dragged(ev *fyne.DragEvent) {
	c.mu.Lock()
	scale := float64(c.pixelScale)
	secondary := c.secondary
	if secondary && !c.rotating {
		c.rotating = true
		c.dragAngle = c.sess.View().Angle
		c.dragDX = 0
	}
	if secondary {
		c.dragDX += float64(ev.Dragged.DX) * scale
	}
	start, dx := c.dragAngle, c.dragDX
	c.mu.Unlock()

	if secondary {
		c.sess.UpdateView(func(t *view.Transform) { t.Rotate(start, dx) })
	} else {
		c.sess.UpdateView(func(t *view.Transform) {
			t.Pan(float64(ev.Dragged.DX)*scale, float64(ev.Dragged.DY)*scale)
		})
	}
	c.Refresh()
}

// DragEnd implements fyne.Draggable.
func (c *MapCanvas) DragEnd() {
	c.mu.Lock()
	c.rotating = false
	c.mu.Unlock()
}

// Scrolled implements fyne.Scrollable.
func (c *MapCanvas) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY == 0 {
		return
	}
	x, y := c.toPixels(ev.Position)
	// fyne reports wheel-up as positive, the opposite of a DOM deltaY
	dy := -float64(ev.Scrolled.DY)
	c.sess.UpdateView(func(t *view.Transform) {
		t.Wheel(geometry.Point2D{X: x, Y: y}, dy)
	})
	c.Refresh()
}

// CreateRenderer implements fyne.Widget.
func (c *MapCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.raster)
}

var (
	_ desktop.Hoverable = (*MapCanvas)(nil)
	_ desktop.Mouseable = (*MapCanvas)(nil)
	_ fyne.Draggable    = (*MapCanvas)(nil)
	_ fyne.Scrollable   = (*MapCanvas)(nil)
)
