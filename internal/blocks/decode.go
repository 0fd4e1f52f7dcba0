package blocks

import (
	"errors"
	"fmt"
	"io"

	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"

	"falcomplot/pkg/geometry"
)

// ErrNoFeatures is returned when the document has no features array.
var ErrNoFeatures = errors.New("invalid GeoJSON: missing features array")

// Decode reads a GeoJSON feature collection from r.
func Decode(r io.Reader, logger *zap.Logger) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data, logger)
}

// DecodeBytes parses a GeoJSON feature collection. Axis order is detected once
// from the first feature and applied to every ring.
func DecodeBytes(data []byte, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	if fc.Features == nil {
		return nil, ErrNoFeatures
	}

	set := &Set{
		ByID:      make(map[string]*Block),
		Bounds:    geometry.EmptyBounds(),
		Centroids: NewCentroidIndex(),
	}

	set.Swapped = DetectSwap(fc)
	logger.Info("coordinate order",
		zap.Bool("swap", set.Swapped),
		zap.Int("features", len(fc.Features)))

	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			set.Stats.NoGeometry++
			continue
		}

		var raw [][][][]float64
		switch {
		case f.Geometry.IsPolygon():
			set.Stats.Polygons++
			raw = [][][][]float64{f.Geometry.Polygon}
		case f.Geometry.IsMultiPolygon():
			set.Stats.MultiPolygons++
			raw = f.Geometry.MultiPolygon
		default:
			set.Stats.Unsupported++
			continue
		}

		b := &Block{
			Bounds:     geometry.EmptyBounds(),
			Properties: f.Properties,
		}
		for _, rings := range raw {
			b.Polygons = append(b.Polygons, geometry.PolygonFromCoords(rings, set.Swapped))
		}
		b.Polygons = FillPaths(b.Polygons)
		for _, poly := range b.Polygons {
			b.Bounds = b.Bounds.Union(poly.Bounds())
		}
		set.Stats.Paths += len(b.Polygons)
		if !b.Bounds.IsEmpty() {
			set.Bounds = set.Bounds.Union(b.Bounds)
		}

		b.ID = FormatID(f.ID)
		if b.ID == "" && f.Properties != nil {
			b.ID = FormatID(f.Properties["id"])
		}
		if f.Properties != nil {
			b.GEOID20 = FormatID(f.Properties["GEOID20"])
			b.GEOID = FormatID(f.Properties["GEOID"])
			if pop, ok := f.Properties["population"].(float64); ok {
				b.Population = &pop
			}
		}
		set.Blocks = append(set.Blocks, b)

		outer := outerRing(raw, set.Swapped)
		if len(outer) == 0 || b.ID == "" {
			continue
		}
		c, _ := geometry.RingCentroid(outer)
		set.Centroids.ByFeatureID[b.ID] = c
		if b.GEOID20 != "" {
			set.Centroids.ByGEOID20[b.GEOID20] = c
		}
		if b.GEOID != "" {
			set.Centroids.ByGEOID[b.GEOID] = c
		}
		if _, seen := set.ByID[b.ID]; !seen {
			set.order = append(set.order, b.ID)
		}
		set.ByID[b.ID] = b
	}

	logger.Info("blocks loaded",
		zap.Int("polygons", set.Stats.Polygons),
		zap.Int("multipolygons", set.Stats.MultiPolygons),
		zap.Int("no_geometry", set.Stats.NoGeometry),
		zap.Int("paths", set.Stats.Paths),
		zap.Int("centroids", set.Centroids.Len()))

	return set, nil
}

// DetectSwap samples the first point of the first ring of the first feature.
// The answer applies to the whole collection.
func DetectSwap(fc *geojson.FeatureCollection) bool {
	if fc == nil || len(fc.Features) == 0 {
		return false
	}
	f := fc.Features[0]
	if f == nil || f.Geometry == nil {
		return false
	}
	var ring [][]float64
	switch {
	case f.Geometry.IsPolygon() && len(f.Geometry.Polygon) > 0:
		ring = f.Geometry.Polygon[0]
	case f.Geometry.IsMultiPolygon() && len(f.Geometry.MultiPolygon) > 0 && len(f.Geometry.MultiPolygon[0]) > 0:
		ring = f.Geometry.MultiPolygon[0][0]
	}
	if len(ring) == 0 || len(ring[0]) < 2 {
		return false
	}
	return geometry.NeedsAxisSwap(ring[0][0], ring[0][1])
}

// outerRing returns the first ring of the first polygon, whatever its content.
func outerRing(raw [][][][]float64, swap bool) geometry.Ring {
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil
	}
	return geometry.RingFromCoords(raw[0][0], swap)
}

// FillPaths keeps one path per member polygon, dropping empty rings and
// polygons left with no rings.
func FillPaths(polys []geometry.Polygon) []geometry.Polygon {
	var out []geometry.Polygon
	for _, poly := range polys {
		var kept geometry.Polygon
		for _, r := range poly {
			if len(r) > 0 {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
