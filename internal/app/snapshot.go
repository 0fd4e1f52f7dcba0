package app

import (
	"sort"
	"time"

	"falcomplot/internal/blocks"
	"falcomplot/pkg/geometry"
)

// Boundary is the unioned outline of one district.
type Boundary struct {
	DistrictID int
	Polygons   []geometry.Polygon
	Color      string
}

// BoundaryCache maps district ids to their boundaries. It is built wholesale
// and never patched.
type BoundaryCache struct {
	ByDistrict map[int]Boundary
}

// NewBoundaryCache returns an empty cache.
func NewBoundaryCache() *BoundaryCache {
	return &BoundaryCache{ByDistrict: make(map[int]Boundary)}
}

// Put stores a boundary.
func (c *BoundaryCache) Put(b Boundary) {
	c.ByDistrict[b.DistrictID] = b
}

// Get returns the boundary for a district.
func (c *BoundaryCache) Get(districtID int) (Boundary, bool) {
	if c == nil {
		return Boundary{}, false
	}
	b, ok := c.ByDistrict[districtID]
	return b, ok
}

// Len returns the number of districts with a boundary.
func (c *BoundaryCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ByDistrict)
}

// Order returns district ids ascending.
func (c *BoundaryCache) Order() []int {
	if c == nil {
		return nil
	}
	ids := make([]int, 0, len(c.ByDistrict))
	for id := range c.ByDistrict {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Snapshot is a consistent copy of the state for painting and panels. Maps
// are copies; Blocks, Tree and Boundaries are shared because they are replaced
// rather than mutated.
type Snapshot struct {
	Blocks     *blocks.Set
	Tree       *Tree
	Boundaries *BoundaryCache

	ColorOverride    map[string]string
	DistrictColor    map[string]string
	ColorOrder       []string
	BlockToDistrict  map[string]int
	DistrictMetadata map[int]map[string]interface{}

	Highlight Highlight
	ViewMode  ViewMode
	Coloring  Coloring
	DataMode  DataMode

	Iteration    int
	MaxIteration int
	HitRadiusPx  float64
}

// Snapshot copies the state under the read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Blocks:           s.blocks,
		Tree:             s.tree,
		Boundaries:       s.boundaries,
		ColorOverride:    make(map[string]string, len(s.colorOverride)),
		DistrictColor:    make(map[string]string, len(s.districtColor)),
		ColorOrder:       append([]string(nil), s.colorOrder...),
		BlockToDistrict:  make(map[string]int, len(s.blockToDistrict)),
		DistrictMetadata: make(map[int]map[string]interface{}, len(s.districtMetadata)),
		Highlight:        s.highlight,
		ViewMode:         s.viewMode,
		Coloring:         s.coloring,
		DataMode:         s.dataMode,
		Iteration:        s.iteration,
		MaxIteration:     s.maxIteration,
		HitRadiusPx:      s.hitRadiusPx,
	}
	for k, v := range s.colorOverride {
		snap.ColorOverride[k] = v
	}
	for k, v := range s.districtColor {
		snap.DistrictColor[k] = v
	}
	for k, v := range s.blockToDistrict {
		snap.BlockToDistrict[k] = v
	}
	for k, v := range s.districtMetadata {
		snap.DistrictMetadata[k] = v
	}
	return snap
}

// DistrictColorOf returns the colour of the first block assigned to a
// district, in colour insertion order.
func (s Snapshot) DistrictColorOf(districtID int) (string, bool) {
	for _, id := range s.ColorOrder {
		if s.BlockToDistrict[id] == districtID {
			c, ok := s.DistrictColor[id]
			return c, ok
		}
	}
	return "", false
}

// DistrictMembers groups block ids by district in colour insertion order.
func (s Snapshot) DistrictMembers() map[int][]string {
	out := make(map[int][]string)
	for _, id := range s.ColorOrder {
		if d, ok := s.BlockToDistrict[id]; ok {
			out[d] = append(out[d], id)
		}
	}
	return out
}

// NodeFlashing reports whether the highlighted node is still flashing.
func (s Snapshot) NodeFlashing(now time.Time) bool {
	return s.Highlight.Flashing(now)
}
