// Package blocks decodes the census-block document into immutable blocks with
// precomputed bounds, fill paths and a centroid lookup for tree nodes.
package blocks

import (
	"strconv"

	"falcomplot/pkg/geometry"
)

// Block is one census block. It is created once at load and never modified.
type Block struct {
	// ID is the feature id (or properties.id). It may be empty, in which case
	// the block is drawn but cannot be hit-tested or colored.
	ID string

	// Polygons holds one entry per member polygon, each with every non-empty
	// ring, in normalised axis order.
	Polygons []geometry.Polygon

	Bounds     geometry.Bounds
	Properties map[string]interface{}

	GEOID20    string
	GEOID      string
	Population *float64
}

// DisplayGEOID returns GEOID20, then GEOID, then "N/A".
func (b *Block) DisplayGEOID() string {
	if b.GEOID20 != "" {
		return b.GEOID20
	}
	if b.GEOID != "" {
		return b.GEOID
	}
	return "N/A"
}

// CentroidIndex resolves block identities to centroids.
type CentroidIndex struct {
	ByGEOID20   map[string]geometry.Point2D
	ByGEOID     map[string]geometry.Point2D
	ByFeatureID map[string]geometry.Point2D
}

// NewCentroidIndex returns an empty index.
func NewCentroidIndex() *CentroidIndex {
	return &CentroidIndex{
		ByGEOID20:   make(map[string]geometry.Point2D),
		ByGEOID:     make(map[string]geometry.Point2D),
		ByFeatureID: make(map[string]geometry.Point2D),
	}
}

// Resolve looks a node up by GEOID20, then GEOID, then feature id. Empty keys
// are skipped.
func (c *CentroidIndex) Resolve(geoid20, geoid, id string) (geometry.Point2D, bool) {
	if c == nil {
		return geometry.Point2D{}, false
	}
	if geoid20 != "" {
		if p, ok := c.ByGEOID20[geoid20]; ok {
			return p, true
		}
	}
	if geoid != "" {
		if p, ok := c.ByGEOID[geoid]; ok {
			return p, true
		}
	}
	p, ok := c.ByFeatureID[id]
	return p, ok
}

// Len returns the number of feature ids indexed.
func (c *CentroidIndex) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ByFeatureID)
}

// Stats counts what the decoder saw.
type Stats struct {
	Polygons      int
	MultiPolygons int
	NoGeometry    int
	Unsupported   int
	Paths         int
}

// Set is the decoded block document.
type Set struct {
	// Blocks lists every block with geometry in document order.
	Blocks []*Block

	// ByID maps identified blocks to their block.
	ByID map[string]*Block

	// Bounds covers every decoded vertex.
	Bounds geometry.Bounds

	// Swapped records whether axis order was exchanged on decode.
	Swapped bool

	Centroids *CentroidIndex
	Stats     Stats

	order []string
}

// Identified returns the blocks that carry an id, in first-seen order.
func (s *Set) Identified() []*Block {
	out := make([]*Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.ByID[id])
	}
	return out
}

// Get returns the identified block with the given id.
func (s *Set) Get(id string) (*Block, bool) {
	if s == nil {
		return nil, false
	}
	b, ok := s.ByID[id]
	return b, ok
}

// Len returns the number of blocks with geometry.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Blocks)
}

// FormatID renders a JSON scalar the way identifiers appear in the data files.
// Strings pass through; numbers drop trailing zeros; nil and empty values give
// "".
func FormatID(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if !x {
			return ""
		}
		return "true"
	}
	return ""
}
