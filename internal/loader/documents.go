package loader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"falcomplot/internal/app"
	"falcomplot/internal/blocks"
)

// treeDoc is tree_<i>.json. Ids and GEOIDs may be strings or numbers.
type treeDoc struct {
	Nodes    json.RawMessage `json:"nodes"`
	Links    json.RawMessage `json:"links"`
	Metadata *metadataDoc    `json:"metadata"`
}

type nodeDoc struct {
	ID            interface{} `json:"id"`
	GEOID20       interface{} `json:"GEOID20"`
	GEOID         interface{} `json:"GEOID"`
	X             *float64    `json:"x"`
	Y             *float64    `json:"y"`
	HasFacility   interface{} `json:"has_facility"`
	ComplFacility interface{} `json:"compl_facility"`
	Population    interface{} `json:"population"`
	Candidate     interface{} `json:"candidate"`
}

type linkDoc struct {
	Source interface{} `json:"source"`
	Target interface{} `json:"target"`
}

type metadataDoc struct {
	Root          interface{} `json:"root"`
	IdealPop      *float64    `json:"ideal_pop"`
	Epsilon       *float64    `json:"epsilon"`
	NTeams        *float64    `json:"n_teams"`
	TwoSided      interface{} `json:"two_sided"`
	TotCandidates *float64    `json:"tot_candidates"`
	TotPop        *float64    `json:"tot_pop"`
}

// districtDoc is district_<i>.json.
type districtDoc struct {
	District json.RawMessage        `json:"district"`
	Metadata map[string]interface{} `json:"metadata"`
}

// decodeArray decodes raw into v only when raw is a JSON array.
func decodeArray(field string, raw json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: %s is not an array", ErrMalformed, field)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, field, err)
	}
	return nil
}

// truthy follows loose JSON truthiness for flag fields.
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

func number(v interface{}) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func (m *metadataDoc) toMetadata() *app.TreeMetadata {
	if m == nil {
		return nil
	}
	out := &app.TreeMetadata{
		Root:          blocks.FormatID(m.Root),
		IdealPop:      m.IdealPop,
		Epsilon:       m.Epsilon,
		NTeams:        m.NTeams,
		TotCandidates: m.TotCandidates,
		TotPop:        m.TotPop,
	}
	if m.TwoSided != nil {
		b := truthy(m.TwoSided)
		out.TwoSided = &b
	}
	return out
}

// ParseTree decodes a tree document and resolves node positions through
// centroids: GEOID20, then GEOID, then id, then explicit x/y. Nodes that do
// not resolve are dropped and counted in Tree.Missing, and so are links that
// touch them.
func ParseTree(data []byte, centroids *blocks.CentroidIndex) (*app.Tree, error) {
	var doc treeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var rawNodes []nodeDoc
	if err := decodeArray("nodes", doc.Nodes, &rawNodes); err != nil {
		return nil, err
	}
	var rawLinks []linkDoc
	if err := decodeArray("links", doc.Links, &rawLinks); err != nil {
		return nil, err
	}

	nodes := make([]app.TreeNode, 0, len(rawNodes))
	seen := make(map[string]bool, len(rawNodes))
	missing := 0
	for _, n := range rawNodes {
		id := blocks.FormatID(n.ID)
		pos, ok := centroids.Resolve(blocks.FormatID(n.GEOID20), blocks.FormatID(n.GEOID), id)
		if !ok && n.X != nil && n.Y != nil {
			pos.X, pos.Y, ok = *n.X, *n.Y, true
		}
		if !ok {
			missing++
			continue
		}
		nodes = append(nodes, app.TreeNode{
			ID:            id,
			X:             pos.X,
			Y:             pos.Y,
			Population:    number(n.Population),
			HasFacility:   truthy(n.HasFacility),
			ComplFacility: truthy(n.ComplFacility),
			Candidate:     truthy(n.Candidate),
		})
		seen[id] = true
	}

	links := make([]app.Link, 0, len(rawLinks))
	for _, e := range rawLinks {
		src, tgt := blocks.FormatID(e.Source), blocks.FormatID(e.Target)
		if seen[src] && seen[tgt] {
			links = append(links, app.Link{Source: src, Target: tgt})
		}
	}

	tree := app.NewTree(nodes, links, doc.Metadata.toMetadata())
	tree.Missing = missing
	return tree, nil
}

// ParseDistrict decodes a district document. A missing metadata object
// becomes an empty map.
func ParseDistrict(data []byte) ([]string, map[string]interface{}, error) {
	var doc districtDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var raw []interface{}
	if err := decodeArray("district", doc.District, &raw); err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(raw))
	for i, v := range raw {
		ids[i] = blocks.FormatID(v)
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	return ids, doc.Metadata, nil
}
