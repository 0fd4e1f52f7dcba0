package panels

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"falcomplot/internal/app"
)

var printer = message.NewPrinter(language.English)

func check(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func count(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return printer.Sprintf("%.0f", *v)
}

func plain(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *v)
}

// StatusText is the one-line mode and iteration summary.
func StatusText(snap app.Snapshot) string {
	return fmt.Sprintf("State: %s | View: %s | Coloring: %s | Iteration %d / %d",
		title(snap.DataMode.String()), title(snap.ViewMode.String()), title(snap.Coloring.String()),
		snap.Iteration, snap.MaxIteration)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TreeMetadataText lists the current tree's metadata.
func TreeMetadataText(snap app.Snapshot) string {
	if snap.Tree == nil || snap.Tree.Metadata == nil {
		return "No tree loaded"
	}
	m := snap.Tree.Metadata
	two := "N/A"
	if m.TwoSided != nil {
		two = fmt.Sprintf("%t", *m.TwoSided)
	}
	root := m.Root
	if root == "" {
		root = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ideal_pop: %s\n", count(m.IdealPop))
	fmt.Fprintf(&b, "root: %s\n", root)
	fmt.Fprintf(&b, "n_teams: %s\n", plain(m.NTeams))
	fmt.Fprintf(&b, "epsilon: %s\n", plain(m.Epsilon))
	fmt.Fprintf(&b, "two_sided: %s\n", two)
	fmt.Fprintf(&b, "tot_candidates: %s\n", plain(m.TotCandidates))
	fmt.Fprintf(&b, "tot_pop: %s", count(m.TotPop))
	return b.String()
}

// NodeText describes a hovered tree node.
func NodeText(n app.TreeNode, snap app.Snapshot) string {
	var meta *app.TreeMetadata
	degree := 0
	root := ""
	if snap.Tree != nil {
		meta = snap.Tree.Metadata
		degree = snap.Tree.Degree(n.ID)
		if n.ID == snap.Tree.RootID {
			root = " (root)"
		}
	}
	within := "outside"
	if app.WithinTolerance(n, meta) {
		within = "within"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Node ID %s%s\n", n.ID, root)
	fmt.Fprintf(&b, "Lon %.6f\n", n.X)
	fmt.Fprintf(&b, "Lat %.6f\n", n.Y)
	fmt.Fprintf(&b, "Degree %d\n", degree)
	fmt.Fprintf(&b, "Population: %s (%s)\n\n", count(n.Population), within)
	fmt.Fprintf(&b, "Has Facility: %s\n", check(n.HasFacility))
	fmt.Fprintf(&b, "Compl. Facility: %s\n", check(n.ComplFacility))
	fmt.Fprintf(&b, "Candidate: %s", check(n.Candidate))
	if c, ok := snap.ColorOverride[n.ID]; ok {
		fmt.Fprintf(&b, "\nDistrict Color: %s", c)
	}
	return b.String()
}

// districtKeys are the district metadata fields worth showing, in order.
var districtKeys = []struct{ key, label string }{
	{"iteration", "Iteration"},
	{"district_id", "District ID"},
	{"timestamp", "Timestamp"},
	{"root", "Root"},
	{"center_node", "Center Node"},
	{"population", "Dist. Pop"},
	{"tot_pop", "Total Pop"},
	{"hired_teams", "Hired Teams"},
	{"radius", "Radius"},
	{"debt", "Debt"},
}

// DistrictText describes a hovered district.
func DistrictText(id int, snap app.Snapshot) string {
	blocks := 0
	for _, d := range snap.BlockToDistrict {
		if d == id {
			blocks++
		}
	}
	color, ok := snap.DistrictColorOf(id)
	if !ok {
		color = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "District %d\nColor: %s\nBlocks: %d", id, color, blocks)
	meta := snap.DistrictMetadata[id]
	for _, k := range districtKeys {
		v, ok := meta[k.key]
		if !ok || v == nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", k.label, formatValue(k.key, v))
	}
	return b.String()
}

func formatValue(key string, v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	switch key {
	case "debt":
		return fmt.Sprintf("%.2f", f)
	case "radius":
		return fmt.Sprintf("%.4f", f)
	case "population", "tot_pop":
		return printer.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%g", f)
}

// BlockText describes a block and the district holding it.
func BlockText(id string, snap app.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Block ID: %s", id)
	if blk, ok := snap.Blocks.Get(id); ok {
		fmt.Fprintf(&b, "\nGEOID: %s\nPopulation: %s", blk.DisplayGEOID(), count(blk.Population))
	}
	if d, ok := snap.BlockToDistrict[id]; ok {
		fmt.Fprintf(&b, "\n\n%s", DistrictText(d, snap))
	}
	return b.String()
}

// HoverText picks the description for a hover result.
func HoverText(res app.HoverResult, snap app.Snapshot) string {
	switch res.Target {
	case app.HoverNode:
		return NodeText(res.Node, snap)
	case app.HoverDistrict:
		if res.BlockID != "" {
			return BlockText(res.BlockID, snap)
		}
		return DistrictText(res.DistrictID, snap)
	}
	return "Hover over a node or district..."
}
