// Package render paints a state snapshot into an image: the block background,
// the district overlay and the team tree.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"falcomplot/internal/app"
	"falcomplot/internal/config"
	"falcomplot/internal/view"
	"falcomplot/pkg/colorutil"
	"falcomplot/pkg/geometry"
)

const (
	dimAlpha       = 0.3
	boundaryAlpha  = 0.85
	lightenPercent = 20
	flashPeriodMs  = 100
	starSpikes     = 5
)

var (
	districtStroke       = colorutil.MustParse("rgba(0,0,0,0.3)")
	boundaryStroke       = colorutil.MustParse("rgba(0,0,0,0.6)")
	highlightStroke      = colorutil.MustParse("#ffffff")
	flashStroke          = color.NRGBA{R: 255, G: 255, B: 100, A: 255}
	labelColor           = colorutil.MustParse("rgba(255,255,255,0.85)")
	districtStrokeWidth  = 1.0
	highlightStrokeWidth = 3.0
	boundaryStrokeWidth  = 3.0
	boundaryHighlightW   = 4.0
)

type palette struct {
	greenFill, greenStroke color.NRGBA
	redFill                color.NRGBA
	rootFill, rootStroke   color.NRGBA
	linkStroke             color.NRGBA
	blockFill, blockStroke color.NRGBA
	background             color.NRGBA
}

func newPalette(c config.Colors) (palette, error) {
	var p palette
	for _, f := range []struct {
		name string
		css  string
		dst  *color.NRGBA
	}{
		{"green_fill", c.GreenFill, &p.greenFill},
		{"green_stroke", c.GreenStroke, &p.greenStroke},
		{"red_fill", c.RedFill, &p.redFill},
		{"root_fill", c.RootFill, &p.rootFill},
		{"root_stroke", c.RootStroke, &p.rootStroke},
		{"link_stroke", c.LinkStroke, &p.linkStroke},
		{"block_fill", c.BlockFill, &p.blockFill},
		{"block_stroke", c.BlockStroke, &p.blockStroke},
		{"background", c.Background, &p.background},
	} {
		v, err := colorutil.Parse(f.css)
		if err != nil {
			return palette{}, fmt.Errorf("color %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

// Painter draws snapshots. It holds no state besides its configuration, so
// one painter can serve several canvases.
type Painter struct {
	visual  config.Visual
	colors  palette
	ShowHUD bool
}

// NewPainter parses the configured colours.
func NewPainter(v config.Visual) (*Painter, error) {
	p, err := newPalette(v.Colors)
	if err != nil {
		return nil, err
	}
	return &Painter{visual: v, colors: p}, nil
}

// Paint renders snap at width x height through t.
func (p *Painter) Paint(snap app.Snapshot, t *view.Transform, width, height int, now time.Time) image.Image {
	dc := gg.NewContext(width, height)
	p.Draw(dc, snap, t, now)
	return dc.Image()
}

// Draw renders onto an existing context in fixed layer order.
func (p *Painter) Draw(dc *gg.Context, snap app.Snapshot, t *view.Transform, now time.Time) {
	m := t.Matrix()
	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.SetColor(p.colors.background)
	dc.Clear()

	p.drawBlocks(dc, snap, m)
	switch snap.ViewMode {
	case app.ViewDistrict:
		if len(snap.BlockToDistrict) > 0 {
			if snap.Coloring == app.Colored {
				p.drawDistrictsColored(dc, snap, m)
			} else {
				p.drawBoundaries(dc, snap, m)
			}
		}
	case app.ViewTree:
		p.drawTree(dc, snap, t, m, now)
	}
	if p.ShowHUD {
		p.drawHUD(dc, snap)
	}
}

func (p *Painter) drawBlocks(dc *gg.Context, snap app.Snapshot, m geometry.AffineTransform) {
	if snap.Blocks == nil {
		return
	}
	for _, b := range snap.Blocks.Blocks {
		for _, poly := range b.Polygons {
			fillStroke(dc, m, poly, p.colors.blockFill, p.colors.blockStroke, p.visual.BlockLineWidth)
		}
	}
}

// drawDistrictsColored fills assigned blocks in colour insertion order. When a
// district is highlighted every other district fades.
func (p *Painter) drawDistrictsColored(dc *gg.Context, snap app.Snapshot, m geometry.AffineTransform) {
	hl := snap.Highlight.DistrictID
	for _, id := range snap.ColorOrder {
		b, ok := snap.Blocks.Get(id)
		if !ok {
			continue
		}
		css := snap.DistrictColor[id]
		district := snap.BlockToDistrict[id]

		alpha := 1.0
		if hl != 0 && hl != district {
			alpha = dimAlpha
		}
		stroke, width := districtStroke, districtStrokeWidth
		if hl != 0 && hl == district {
			css = colorutil.Lighten(css, lightenPercent)
			stroke, width = highlightStroke, highlightStrokeWidth
		}
		fill := colorutil.WithAlpha(p.parse(css), alpha)
		stroke = colorutil.WithAlpha(stroke, alpha)
		for _, poly := range b.Polygons {
			fillStroke(dc, m, poly, fill, stroke, width)
		}
	}
}

// drawBoundaries draws the cached district outlines in ascending district id.
func (p *Painter) drawBoundaries(dc *gg.Context, snap app.Snapshot, m geometry.AffineTransform) {
	for _, id := range snap.Boundaries.Order() {
		bd, _ := snap.Boundaries.Get(id)
		if bd.Color == "" {
			continue
		}
		highlighted := snap.Highlight.DistrictID == id
		css, alpha := bd.Color, boundaryAlpha
		stroke, width := boundaryStroke, boundaryStrokeWidth
		if highlighted {
			css, alpha = colorutil.Lighten(bd.Color, lightenPercent), 1
			stroke, width = highlightStroke, boundaryHighlightW
		}
		fill := colorutil.WithAlpha(p.parse(css), alpha)
		stroke = colorutil.WithAlpha(stroke, alpha)
		for _, poly := range bd.Polygons {
			fillStroke(dc, m, poly, fill, stroke, width)
		}
	}
}

func (p *Painter) drawTree(dc *gg.Context, snap app.Snapshot, t *view.Transform, m geometry.AffineTransform, now time.Time) {
	tree := snap.Tree
	if tree == nil {
		return
	}
	anyHighlight := snap.Highlight.NodeID != ""

	if len(tree.Links) > 0 {
		alpha := 1.0
		if anyHighlight {
			alpha = dimAlpha
		}
		for _, l := range tree.Links {
			s, ok1 := tree.Node(l.Source)
			e, ok2 := tree.Node(l.Target)
			if !ok1 || !ok2 {
				continue
			}
			a, b := m.Apply(s.Pos()), m.Apply(e.Pos())
			dc.MoveTo(a.X, a.Y)
			dc.LineTo(b.X, b.Y)
		}
		dc.SetColor(colorutil.WithAlpha(p.colors.linkStroke, alpha))
		dc.SetLineWidth(p.visual.LinkLineWidth)
		dc.Stroke()
	}

	flashing := snap.Highlight.Flashing(now)
	phase := 0.0
	if flashing {
		ms := float64(now.UnixNano()) / float64(time.Millisecond)
		phase = math.Sin(ms / flashPeriodMs * 2 * math.Pi)
	}

	for _, n := range tree.Nodes {
		isRoot := n.ID == tree.RootID
		isHighlighted := flashing && n.ID == snap.Highlight.NodeID
		alpha := 1.0
		if anyHighlight && !isHighlighted {
			alpha = dimAlpha
		}

		override, hasOverride := snap.ColorOverride[n.ID]
		inTolerance := app.WithinTolerance(n, tree.Metadata)
		var fill color.NRGBA
		switch {
		case hasOverride:
			fill = p.parse(override)
		case isRoot:
			fill = p.colors.rootFill
		case inTolerance:
			fill = p.colors.greenFill
		default:
			fill = p.colors.redFill
		}
		fill = colorutil.WithAlpha(fill, alpha)

		if isRoot {
			// outer radius is in screen pixels, so size the star in model units
			p.starPath(dc, m, n.Pos(), p.visual.RootOuterPx/t.K)
			dc.SetColor(fill)
			dc.FillPreserve()
			dc.SetColor(colorutil.WithAlpha(p.colors.rootStroke, alpha))
			dc.SetLineWidth(p.visual.RootLineWidth)
			dc.Stroke()
			continue
		}

		c := m.Apply(n.Pos())
		dc.DrawCircle(c.X, c.Y, p.visual.NodeRadiusPx)
		dc.SetColor(fill)
		switch {
		case isHighlighted:
			dc.FillPreserve()
			if phase > 0 {
				dc.SetColor(colorutil.WithAlpha(flashStroke, 0.5+0.5*phase))
				dc.SetLineWidth(2 + 2*phase)
				dc.Stroke()
			} else {
				dc.ClearPath()
			}
		case !hasOverride && inTolerance:
			dc.FillPreserve()
			dc.SetColor(colorutil.WithAlpha(p.colors.greenStroke, alpha))
			dc.SetLineWidth(p.visual.NodeStrokePx)
			dc.Stroke()
		default:
			dc.Fill()
		}
	}
}

// starPath traces a star centred on c in model space and maps it to screen.
func (p *Painter) starPath(dc *gg.Context, m geometry.AffineTransform, c geometry.Point2D, outer float64) {
	inner := outer * p.visual.RootInset
	step := math.Pi / starSpikes
	rot := math.Pi / 2 * 3

	start := m.Apply(geometry.Point2D{X: c.X, Y: c.Y - outer})
	dc.NewSubPath()
	dc.MoveTo(start.X, start.Y)
	for i := 0; i < starSpikes; i++ {
		q := m.Apply(geometry.Point2D{X: c.X + math.Cos(rot)*outer, Y: c.Y + math.Sin(rot)*outer})
		dc.LineTo(q.X, q.Y)
		rot += step
		q = m.Apply(geometry.Point2D{X: c.X + math.Cos(rot)*inner, Y: c.Y + math.Sin(rot)*inner})
		dc.LineTo(q.X, q.Y)
		rot += step
	}
	dc.ClosePath()
}

func (p *Painter) drawHUD(dc *gg.Context, snap app.Snapshot) {
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(labelColor)
	label := fmt.Sprintf("iteration %d / %d  %s", snap.Iteration, snap.MaxIteration, snap.ViewMode)
	if snap.ViewMode == app.ViewDistrict {
		label += " " + snap.Coloring.String()
	}
	dc.DrawString(label, 8, 18)
}

// parse falls back to the block fill for colours it cannot read.
func (p *Painter) parse(css string) color.NRGBA {
	c, err := colorutil.Parse(css)
	if err != nil {
		return p.colors.blockFill
	}
	return c
}

// fillStroke fills poly even-odd and strokes every ring.
func fillStroke(dc *gg.Context, m geometry.AffineTransform, poly geometry.Polygon, fill, stroke color.NRGBA, width float64) {
	if !tracePolygon(dc, m, poly) {
		return
	}
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(stroke)
	dc.SetLineWidth(width)
	dc.Stroke()
}

func tracePolygon(dc *gg.Context, m geometry.AffineTransform, poly geometry.Polygon) bool {
	traced := false
	for _, ring := range poly {
		if len(ring) == 0 {
			continue
		}
		dc.NewSubPath()
		for i, pt := range ring {
			s := m.Apply(pt)
			if i == 0 {
				dc.MoveTo(s.X, s.Y)
			} else {
				dc.LineTo(s.X, s.Y)
			}
		}
		dc.ClosePath()
		traced = true
	}
	return traced
}
