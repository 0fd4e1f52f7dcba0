package app

import (
	"time"

	"falcomplot/internal/spatial"
	"falcomplot/pkg/geometry"
)

// BlockHitter finds the block under a model point.
type BlockHitter interface {
	BlockContaining(p geometry.Point2D) (string, bool)
}

// HoverTarget says what a hover landed on.
type HoverTarget int

const (
	HoverNothing HoverTarget = iota
	HoverNode
	HoverDistrict
)

// HoverResult is what Hover found under the pointer.
type HoverResult struct {
	Target     HoverTarget
	Node       TreeNode
	BlockID    string
	DistrictID int

	// Changed reports whether the highlight moved.
	Changed bool
}

// Hover updates the highlight for a pointer at model point p with view scale
// k. In tree view the nearest node within the hit radius wins. In district
// view a block that carries a district colour highlights its district.
// Anything else clears the highlight.
func Hover(s *State, blocks BlockHitter, p geometry.Point2D, k float64, now time.Time) HoverResult {
	mode := s.ViewMode()

	if tree := s.Tree(); mode == ViewTree && tree != nil && k > 0 {
		nodes := tree.Nodes
		i := spatial.NearestIndex(len(nodes), func(i int) geometry.Point2D {
			return nodes[i].Pos()
		}, p, s.HitRadiusPx()/k)
		if i >= 0 {
			n := nodes[i]
			return HoverResult{
				Target:  HoverNode,
				Node:    n,
				BlockID: n.ID,
				Changed: s.HoverNode(n.ID, now),
			}
		}
	}

	if mode == ViewDistrict && blocks != nil {
		if id, ok := blocks.BlockContaining(p); ok {
			d, assigned := s.DistrictOf(id)
			_, colored := s.DistrictColor(id)
			if assigned && d != 0 && colored {
				return HoverResult{
					Target:     HoverDistrict,
					BlockID:    id,
					DistrictID: d,
					Changed:    s.HoverDistrict(d),
				}
			}
		}
	}

	return HoverResult{Changed: s.ClearHighlight()}
}
