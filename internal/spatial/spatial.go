// Package spatial answers "what is under this model point": the nearest tree
// node within a radius, or the block whose outline contains the point.
package spatial

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"gonum.org/v1/gonum/spatial/r2"

	"falcomplot/internal/blocks"
	"falcomplot/pkg/geometry"
)

// NearestIndex scans n positions and returns the index of the closest one
// strictly nearer than maxDist, or -1. Ties keep the first.
func NearestIndex(n int, pos func(i int) geometry.Point2D, p geometry.Point2D, maxDist float64) int {
	best := -1
	minDist := maxDist
	target := r2.Vec{X: p.X, Y: p.Y}
	for i := 0; i < n; i++ {
		q := pos(i)
		d := r2.Norm(r2.Sub(r2.Vec{X: q.X, Y: q.Y}, target))
		if d < minDist {
			minDist = d
			best = i
		}
	}
	return best
}

// queryPad widens a point query so the tree's overlap test never misses a
// box whose edge passes exactly through the point.
const queryPad = 1e-9

// entry is the tree's view of a block: its outer rings as a geom.Polygon.
type entry struct {
	geom.Polygon
	order int
	block *blocks.Block
}

func outline(b *blocks.Block) geom.Polygon {
	out := make(geom.Polygon, 0, len(b.Polygons))
	for _, poly := range b.Polygons {
		ring := poly.Outer()
		if len(ring) == 0 {
			continue
		}
		path := make(geom.Path, len(ring))
		for i, pt := range ring {
			path[i] = geom.Point{X: pt.X, Y: pt.Y}
		}
		out = append(out, path)
	}
	return out
}

// BlockIndex finds the block containing a point. An R-tree narrows the
// candidates; each is rechecked against its exact bounding box and then ray
// cast against the outer ring of every member polygon. Holes are ignored.
type BlockIndex struct {
	tree    *rtree.Rtree
	entries []*entry
}

// NewBlockIndex indexes every identified block with geometry, keeping
// first-seen order for tie-breaking.
func NewBlockIndex(set *blocks.Set) *BlockIndex {
	idx := &BlockIndex{tree: rtree.NewTree(25, 50)}
	if set == nil {
		return idx
	}
	for i, b := range set.Identified() {
		if b == nil || b.Bounds.IsEmpty() {
			continue
		}
		poly := outline(b)
		if len(poly) == 0 {
			continue
		}
		e := &entry{Polygon: poly, order: i, block: b}
		idx.entries = append(idx.entries, e)
		idx.tree.Insert(e)
	}
	return idx
}

// Len returns the number of indexed blocks.
func (x *BlockIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// BlockContaining returns the id of the first block, in load order, whose
// outline contains p.
func (x *BlockIndex) BlockContaining(p geometry.Point2D) (string, bool) {
	if x == nil || len(x.entries) == 0 {
		return "", false
	}
	q := &geom.Bounds{
		Min: geom.Point{X: p.X - queryPad, Y: p.Y - queryPad},
		Max: geom.Point{X: p.X + queryPad, Y: p.Y + queryPad},
	}

	var hit *entry
	for _, s := range x.tree.SearchIntersect(q) {
		e, ok := s.(*entry)
		if !ok {
			continue
		}
		if hit != nil && e.order >= hit.order {
			continue
		}
		if Contains(e.block, p) {
			hit = e
		}
	}
	if hit == nil {
		return "", false
	}
	return hit.block.ID, true
}

// Contains reports whether p lies inside a block: inclusive bounding box test
// first, then ray casting on ring 0 of each member polygon.
func Contains(b *blocks.Block, p geometry.Point2D) bool {
	if b == nil || !b.Bounds.Contains(p) {
		return false
	}
	for _, poly := range b.Polygons {
		if geometry.PointInPolygon(p, poly.Outer()) {
			return true
		}
	}
	return false
}
