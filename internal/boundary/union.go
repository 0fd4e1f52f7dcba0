// Package boundary unions the blocks of each district into one outline for
// the uncolored district view.
package boundary

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"

	"falcomplot/internal/app"
	"falcomplot/pkg/geometry"
)

// ErrUnionFailed marks a member whose geometry could not be merged. The member
// is skipped and the district keeps what was merged so far.
var ErrUnionFailed = errors.New("union failed")

// Cache is the per-district boundary map kept on the state.
type Cache = app.BoundaryCache

// Unioner merges two polygon sets. Rings of one polygon are filled even-odd.
type Unioner interface {
	Union(acc, next []geometry.Polygon) ([]geometry.Polygon, error)
}

// GeomUnioner unions with github.com/ctessum/geom polygon clipping.
type GeomUnioner struct{}

// Union implements Unioner.
func (GeomUnioner) Union(acc, next []geometry.Polygon) ([]geometry.Polygon, error) {
	a, err := toGeom(acc)
	if err != nil {
		return nil, err
	}
	b, err := toGeom(next)
	if err != nil {
		return nil, err
	}
	res := a.Union(b)
	if res == nil {
		return nil, fmt.Errorf("%w: empty result", ErrUnionFailed)
	}
	return fromGeom(res.Polygons()), nil
}

// toGeom flattens polygons into one contour set, dropping the closing vertex
// of each ring.
func toGeom(polys []geometry.Polygon) (geom.Polygon, error) {
	var out geom.Polygon
	for _, poly := range polys {
		for _, ring := range poly {
			n := len(ring)
			if n > 1 && ring[0] == ring[n-1] {
				n--
			}
			if n < 3 {
				continue
			}
			path := make(geom.Path, 0, n)
			for _, p := range ring[:n] {
				if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
					return nil, fmt.Errorf("%w: non-finite vertex", ErrUnionFailed)
				}
				path = append(path, geom.Point{X: p.X, Y: p.Y})
			}
			out = append(out, path)
		}
	}
	return out, nil
}

func fromGeom(polys []geom.Polygon) []geometry.Polygon {
	out := make([]geometry.Polygon, 0, len(polys))
	for _, gp := range polys {
		var poly geometry.Polygon
		for _, path := range gp {
			if len(path) == 0 {
				continue
			}
			ring := make(geometry.Ring, 0, len(path)+1)
			for _, p := range path {
				ring = append(ring, geometry.Point2D{X: p.X, Y: p.Y})
			}
			ring = append(ring, ring[0])
			poly = append(poly, ring)
		}
		if len(poly) > 0 {
			out = append(out, poly)
		}
	}
	return out
}
