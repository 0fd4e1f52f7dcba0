package app

import (
	"time"

	"falcomplot/pkg/geometry"
)

// TreeNode is one node of a tree snapshot with a resolved position.
type TreeNode struct {
	ID            string
	X, Y          float64
	Population    *float64
	HasFacility   bool
	ComplFacility bool
	Candidate     bool
}

// Pos returns the node position as a point.
func (n TreeNode) Pos() geometry.Point2D {
	return geometry.Point2D{X: n.X, Y: n.Y}
}

// Link is an edge between two resolved nodes.
type Link struct {
	Source string
	Target string
}

// TreeMetadata is the metadata block of a tree snapshot. Absent numeric
// fields stay nil.
type TreeMetadata struct {
	Root          string   `json:"root"`
	IdealPop      *float64 `json:"ideal_pop"`
	Epsilon       *float64 `json:"epsilon"`
	NTeams        *float64 `json:"n_teams"`
	TwoSided      *bool    `json:"two_sided"`
	TotCandidates *float64 `json:"tot_candidates"`
	TotPop        *float64 `json:"tot_pop"`
}

// Tree is one iteration's graph. It is replaced wholesale on every snapshot.
type Tree struct {
	Nodes     []TreeNode
	Links     []Link
	NodesByID map[string]int
	Metadata  *TreeMetadata
	RootID    string

	// Missing counts nodes dropped because no position resolved.
	Missing int
}

// NewTree indexes nodes by id. Later duplicates shadow earlier ones.
func NewTree(nodes []TreeNode, links []Link, meta *TreeMetadata) *Tree {
	t := &Tree{
		Nodes:     nodes,
		Links:     links,
		NodesByID: make(map[string]int, len(nodes)),
		Metadata:  meta,
	}
	for i, n := range nodes {
		t.NodesByID[n.ID] = i
	}
	if meta != nil {
		t.RootID = meta.Root
	}
	return t
}

// Node returns the node with the given id.
func (t *Tree) Node(id string) (TreeNode, bool) {
	if t == nil {
		return TreeNode{}, false
	}
	i, ok := t.NodesByID[id]
	if !ok {
		return TreeNode{}, false
	}
	return t.Nodes[i], true
}

// Degree counts links touching id.
func (t *Tree) Degree(id string) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, l := range t.Links {
		if l.Source == id || l.Target == id {
			n++
		}
	}
	return n
}

// DistrictDelta is the district born at one iteration.
type DistrictDelta struct {
	DistrictID int
	BlockIDs   []string
	Color      string
	Metadata   map[string]interface{}
}

// Highlight is the hover state. NodeID and DistrictID are never both set.
type Highlight struct {
	NodeID     string
	BlockID    string
	DistrictID int
	Until      time.Time
}

// Active reports whether anything is highlighted.
func (h Highlight) Active() bool {
	return h.NodeID != "" || h.BlockID != "" || h.DistrictID != 0
}

// Flashing reports whether the node highlight is still inside its window.
func (h Highlight) Flashing(now time.Time) bool {
	return h.NodeID != "" && now.Before(h.Until)
}

// ViewMode selects the overlay drawn above the block background.
type ViewMode int

const (
	ViewDistrict ViewMode = iota
	ViewTree
)

func (m ViewMode) String() string {
	if m == ViewTree {
		return "tree"
	}
	return "district"
}

// Coloring selects per-block fills or unioned boundaries in district view.
type Coloring int

const (
	Colored Coloring = iota
	Uncolored
)

func (c Coloring) String() string {
	if c == Uncolored {
		return "uncolored"
	}
	return "colored"
}

// DataMode selects the initial or intermediate artifact directories.
type DataMode int

const (
	DataInitial DataMode = iota
	DataIntermediate
)

func (m DataMode) String() string {
	if m == DataIntermediate {
		return "intermediate"
	}
	return "initial"
}

// ParseViewMode accepts "tree" or "district".
func ParseViewMode(s string) (ViewMode, bool) {
	switch s {
	case "tree":
		return ViewTree, true
	case "district":
		return ViewDistrict, true
	}
	return ViewDistrict, false
}

// ParseColoring accepts "colored" or "uncolored".
func ParseColoring(s string) (Coloring, bool) {
	switch s {
	case "colored":
		return Colored, true
	case "uncolored":
		return Uncolored, true
	}
	return Colored, false
}

// ParseDataMode accepts "initial" or "intermediate".
func ParseDataMode(s string) (DataMode, bool) {
	switch s {
	case "initial":
		return DataInitial, true
	case "intermediate":
		return DataIntermediate, true
	}
	return DataInitial, false
}
