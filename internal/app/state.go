// Package app holds the visualization state: loaded blocks, the current tree,
// accumulated district assignments, boundaries and hover highlight.
package app

import (
	"math"
	"sort"
	"sync"
	"time"

	"falcomplot/internal/blocks"
)

// Defaults for hover hit testing.
const (
	DefaultHitRadiusPx    = 6.0
	DefaultHoverHighlight = 100 * time.Second
)

// State is the single visualization aggregate. Every mutation happens in one
// critical section, so readers never observe a partly applied merge.
type State struct {
	mu sync.RWMutex

	blocks *blocks.Set
	tree   *Tree

	colorOverride    map[string]string
	districtColor    map[string]string
	colorOrder       []string
	blockToDistrict  map[string]int
	districtMetadata map[int]map[string]interface{}
	boundaries       *BoundaryCache

	highlight Highlight

	viewMode ViewMode
	coloring Coloring
	dataMode DataMode

	iteration    int
	maxIteration int
	speed        float64

	hitRadiusPx    float64
	hoverHighlight time.Duration

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different state events.
type EventType int

const (
	EventBlocksLoaded EventType = iota
	EventTreeChanged
	EventDistrictsChanged
	EventBoundariesChanged
	EventHighlightChanged
	EventModeChanged
	EventIterationChanged
	EventReset

	// EventRedraw follows every mutation that changes what is painted.
	EventRedraw
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates an empty state in district view, colored, initial data.
func NewState() *State {
	s := &State{
		speed:          1,
		hitRadiusPx:    DefaultHitRadiusPx,
		hoverHighlight: DefaultHoverHighlight,
		listeners:      make(map[EventType][]EventListener),
	}
	s.clearDistrictsLocked()
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type. Listeners run on
// the caller's goroutine without the state lock held.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

func (s *State) changed(event EventType, data interface{}) {
	s.Emit(event, data)
	s.Emit(EventRedraw, nil)
}

// SetHoverOptions overrides the node hit radius (screen pixels) and how long a
// hovered node stays highlighted.
func (s *State) SetHoverOptions(hitRadiusPx float64, highlight time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hitRadiusPx > 0 {
		s.hitRadiusPx = hitRadiusPx
	}
	if highlight > 0 {
		s.hoverHighlight = highlight
	}
}

// HitRadiusPx is the node hit radius in screen pixels.
func (s *State) HitRadiusPx() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hitRadiusPx
}

// SetBlocks installs the decoded block document.
func (s *State) SetBlocks(set *blocks.Set) {
	s.mu.Lock()
	s.blocks = set
	s.mu.Unlock()
	s.changed(EventBlocksLoaded, set)
}

// Blocks returns the block document, or nil before load.
func (s *State) Blocks() *blocks.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks
}

// MergeTreeSnapshot replaces nodes, links and metadata with tree.
func (s *State) MergeTreeSnapshot(tree *Tree) {
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
	s.changed(EventTreeChanged, tree)
}

// ClearTree drops the current tree.
func (s *State) ClearTree() {
	s.MergeTreeSnapshot(nil)
}

// Tree returns the current tree, or nil.
func (s *State) Tree() *Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// TreeMetadata returns the current tree's metadata, or nil.
func (s *State) TreeMetadata() *TreeMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return nil
	}
	return s.tree.Metadata
}

// MergeDistrictDelta records d.DistrictID and d.Color for every block in d and
// stores its metadata.
func (s *State) MergeDistrictDelta(d DistrictDelta) {
	s.mu.Lock()
	s.applyDeltaLocked(d)
	s.mu.Unlock()
	s.changed(EventDistrictsChanged, d.DistrictID)
}

// ReplayDistricts clears every assignment and applies deltas in ascending
// district order, so a block claimed twice ends with the later district.
func (s *State) ReplayDistricts(deltas []DistrictDelta) {
	sorted := make([]DistrictDelta, len(deltas))
	copy(sorted, deltas)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DistrictID < sorted[j].DistrictID
	})

	s.mu.Lock()
	s.clearDistrictsLocked()
	for _, d := range sorted {
		s.applyDeltaLocked(d)
	}
	s.mu.Unlock()
	s.changed(EventDistrictsChanged, len(sorted))
}

func (s *State) applyDeltaLocked(d DistrictDelta) {
	for _, id := range d.BlockIDs {
		s.colorOverride[id] = d.Color
		if _, ok := s.districtColor[id]; !ok {
			s.colorOrder = append(s.colorOrder, id)
		}
		s.districtColor[id] = d.Color
		s.blockToDistrict[id] = d.DistrictID
	}
	s.districtMetadata[d.DistrictID] = d.Metadata
}

func (s *State) clearDistrictsLocked() {
	s.colorOverride = make(map[string]string)
	s.districtColor = make(map[string]string)
	s.colorOrder = nil
	s.blockToDistrict = make(map[string]int)
	s.districtMetadata = make(map[int]map[string]interface{})
}

// Reset clears the tree, every assignment, boundaries and highlight, and sets
// the iteration back to 0. Blocks, modes and speed survive.
func (s *State) Reset() {
	s.mu.Lock()
	s.tree = nil
	s.clearDistrictsLocked()
	s.boundaries = nil
	s.highlight = Highlight{}
	s.iteration = 0
	s.mu.Unlock()
	s.changed(EventReset, nil)
}

// SetBoundaries installs a freshly computed boundary cache.
func (s *State) SetBoundaries(c *BoundaryCache) {
	s.mu.Lock()
	s.boundaries = c
	s.mu.Unlock()
	s.changed(EventBoundariesChanged, c)
}

// Boundaries returns the boundary cache, or nil when none was computed.
func (s *State) Boundaries() *BoundaryCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundaries
}

// DistrictOf returns the district a block belongs to.
func (s *State) DistrictOf(blockID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.blockToDistrict[blockID]
	return d, ok
}

// DistrictColor returns the display colour recorded for a block.
func (s *State) DistrictColor(blockID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.districtColor[blockID]
	return c, ok
}

// ColorOverride returns the node colour override for an id.
func (s *State) ColorOverride(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.colorOverride[id]
	return c, ok
}

// DistrictMetadata returns the metadata stored for a district.
func (s *State) DistrictMetadata(districtID int) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.districtMetadata[districtID]
	return m, ok
}

// DistrictBlockCount counts blocks assigned to a district.
func (s *State) DistrictBlockCount(districtID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.blockToDistrict {
		if d == districtID {
			n++
		}
	}
	return n
}

// ColoredBlocks returns the number of blocks with a district colour.
func (s *State) ColoredBlocks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.districtColor)
}

// Highlight returns the hover highlight.
func (s *State) Highlight() Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlight
}

// HoverNode highlights a node and the block of the same id, clearing any
// district highlight. The flash window restarts only when the node changes.
// It reports whether anything changed.
func (s *State) HoverNode(id string, now time.Time) bool {
	s.mu.Lock()
	if s.highlight.NodeID == id {
		s.mu.Unlock()
		return false
	}
	s.highlight = Highlight{
		NodeID:  id,
		BlockID: id,
		Until:   now.Add(s.hoverHighlight),
	}
	h := s.highlight
	s.mu.Unlock()
	s.changed(EventHighlightChanged, h)
	return true
}

// HoverDistrict highlights a whole district and clears node and block
// highlights. It reports whether anything changed.
func (s *State) HoverDistrict(districtID int) bool {
	s.mu.Lock()
	if s.highlight.DistrictID == districtID && s.highlight.NodeID == "" && s.highlight.BlockID == "" {
		s.mu.Unlock()
		return false
	}
	s.highlight = Highlight{DistrictID: districtID}
	h := s.highlight
	s.mu.Unlock()
	s.changed(EventHighlightChanged, h)
	return true
}

// ClearHighlight removes every highlight. It reports whether anything was
// highlighted.
func (s *State) ClearHighlight() bool {
	s.mu.Lock()
	if !s.highlight.Active() {
		s.mu.Unlock()
		return false
	}
	s.highlight = Highlight{}
	s.mu.Unlock()
	s.changed(EventHighlightChanged, Highlight{})
	return true
}

// ViewMode returns the active overlay.
func (s *State) ViewMode() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewMode
}

// SetViewMode switches between tree and district overlays.
func (s *State) SetViewMode(m ViewMode) {
	s.mu.Lock()
	s.viewMode = m
	s.mu.Unlock()
	s.changed(EventModeChanged, m)
}

// Coloring returns the district coloring mode.
func (s *State) Coloring() Coloring {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coloring
}

// SetColoring changes the coloring mode. Initial data is always colored, so
// Uncolored is refused there; the return value reports whether c took effect.
func (s *State) SetColoring(c Coloring) bool {
	s.mu.Lock()
	if c == Uncolored && s.dataMode == DataInitial {
		s.mu.Unlock()
		return false
	}
	s.coloring = c
	s.mu.Unlock()
	s.changed(EventModeChanged, c)
	return true
}

// DataMode returns which artifact directories are read.
func (s *State) DataMode() DataMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataMode
}

// SetDataMode switches artifact directories. Switching to initial forces the
// colored mode.
func (s *State) SetDataMode(m DataMode) {
	s.mu.Lock()
	s.dataMode = m
	if m == DataInitial {
		s.coloring = Colored
	}
	s.mu.Unlock()
	s.changed(EventModeChanged, m)
}

// Iteration returns the displayed iteration, 0 before the first step.
func (s *State) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// SetIteration records the displayed iteration.
func (s *State) SetIteration(i int) {
	s.mu.Lock()
	s.iteration = i
	s.mu.Unlock()
	s.Emit(EventIterationChanged, i)
}

// MaxIteration returns the last iteration with a tree, 0 when unknown.
func (s *State) MaxIteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxIteration
}

// SetMaxIteration records the probed iteration count.
func (s *State) SetMaxIteration(n int) {
	s.mu.Lock()
	s.maxIteration = n
	s.mu.Unlock()
	s.Emit(EventIterationChanged, n)
}

// Speed returns the playback speed multiplier.
func (s *State) Speed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speed
}

// SetSpeed sets the playback speed multiplier. Values that are not finite
// and positive are ignored.
func (s *State) SetSpeed(v float64) {
	if !(v > 0) || math.IsInf(v, 0) {
		return
	}
	s.mu.Lock()
	s.speed = v
	s.mu.Unlock()
}
