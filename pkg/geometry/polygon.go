package geometry

import "math"

// degenerateArea is the doubled signed area below which a ring is treated as
// having no area.
const degenerateArea = 1e-12

// Ring is a sequence of vertices. Rings read from GeoJSON are usually closed
// (first == last) but nothing here requires it.
type Ring []Point2D

// Polygon is an outer ring followed by zero or more hole rings.
type Polygon []Ring

// Outer returns the first ring, or nil for an empty polygon.
func (p Polygon) Outer() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Bounds returns the bounds of every vertex in every ring.
func (p Polygon) Bounds() Bounds {
	b := EmptyBounds()
	for _, r := range p {
		b = b.Union(BoundsOf(r))
	}
	return b
}

// NeedsAxisSwap reports whether a raw coordinate pair looks like (lat, lon)
// for the region the datasets cover, in which case every coordinate must have
// its axes exchanged.
func NeedsAxisSwap(a, b float64) bool {
	return a > 40 && a < 43 && b < -80 && b > -90
}

// RingFromCoords converts raw coordinate pairs into a ring, exchanging axes
// when swap is set. Pairs with fewer than two components are skipped.
func RingFromCoords(coords [][]float64, swap bool) Ring {
	ring := make(Ring, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		p := Point2D{X: c[0], Y: c[1]}
		if swap {
			p = p.Swap()
		}
		ring = append(ring, p)
	}
	return ring
}

// PolygonFromCoords converts raw polygon rings, dropping empty rings. The
// result is nil when no ring survives.
func PolygonFromCoords(rings [][][]float64, swap bool) Polygon {
	var poly Polygon
	for _, rc := range rings {
		r := RingFromCoords(rc, swap)
		if len(r) == 0 {
			continue
		}
		poly = append(poly, r)
	}
	return poly
}

// edges calls f for every edge of the ring, adding the closing edge from the
// last vertex back to the first when the ring is left open.
func edges(ring Ring, f func(p0, p1 Point2D)) {
	n := len(ring)
	for i := 0; i < n-1; i++ {
		f(ring[i], ring[i+1])
	}
	if n > 2 && ring[0] != ring[n-1] {
		f(ring[n-1], ring[0])
	}
}

// SignedArea returns twice the signed area of the ring. Open rings are
// treated as closed.
func SignedArea(ring Ring) float64 {
	var a float64
	edges(ring, func(p0, p1 Point2D) {
		a += p0.X*p1.Y - p1.X*p0.Y
	})
	return a
}

// RingCentroid returns the area centroid of a ring using the shoelace formula.
// Open rings are treated as closed. Rings with (near) zero area fall back to
// the vertex mean. The second result is false for an empty ring.
func RingCentroid(ring Ring) (Point2D, bool) {
	if len(ring) == 0 {
		return Point2D{}, false
	}

	a := SignedArea(ring)
	if math.Abs(a) < degenerateArea {
		return Centroid(ring), true
	}

	var cx, cy float64
	edges(ring, func(p0, p1 Point2D) {
		cross := p0.X*p1.Y - p1.X*p0.Y
		cx += (p0.X + p1.X) * cross
		cy += (p0.Y + p1.Y) * cross
	})
	a *= 0.5
	return Point2D{X: cx / (6 * a), Y: cy / (6 * a)}, true
}

// PointInPolygon tests if a point is inside a ring using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}
