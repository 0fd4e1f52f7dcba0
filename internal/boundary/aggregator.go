package boundary

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"falcomplot/internal/app"
	"falcomplot/internal/metrics"
	"falcomplot/pkg/geometry"
)

// Aggregator rebuilds the boundary cache from the current assignments.
type Aggregator struct {
	unioner Unioner
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithUnioner replaces the default ctessum/geom unioner.
func WithUnioner(u Unioner) Option {
	return func(a *Aggregator) {
		if u != nil {
			a.unioner = u
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l.Named("boundary")
		}
	}
}

// WithMetrics counts failed unions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		unioner: GeomUnioner{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecomputeAll groups assigned blocks by district and unions each group left
// to right in colour insertion order. A member whose union fails is skipped.
// The boundary takes the colour of the district's first member; districts
// with no geometry are left out.
func (a *Aggregator) RecomputeAll(snap app.Snapshot) *Cache {
	cache := app.NewBoundaryCache()
	members := snap.DistrictMembers()

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	failed := 0
	for _, districtID := range ids {
		blockIDs := members[districtID]
		var merged []geometry.Polygon
		for _, blockID := range blockIDs {
			b, ok := snap.Blocks.Get(blockID)
			if !ok || len(b.Polygons) == 0 {
				continue
			}
			if merged == nil {
				merged = b.Polygons
				continue
			}
			next, err := a.union(merged, b.Polygons)
			if err != nil {
				failed++
				a.metrics.UnionFailed()
				a.logger.Warn("union skipped",
					zap.Int("district", districtID),
					zap.String("block", blockID),
					zap.Error(err))
				continue
			}
			merged = next
		}
		if len(merged) == 0 {
			continue
		}
		cache.Put(app.Boundary{
			DistrictID: districtID,
			Polygons:   merged,
			Color:      snap.DistrictColor[blockIDs[0]],
		})
	}

	a.logger.Info("boundaries computed",
		zap.Int("districts", cache.Len()),
		zap.Int("failed_unions", failed))
	return cache
}

// Recompute rebuilds the cache from s and stores it back.
func (a *Aggregator) Recompute(s *app.State) *Cache {
	cache := a.RecomputeAll(s.Snapshot())
	s.SetBoundaries(cache)
	return cache
}

func (a *Aggregator) union(acc, next []geometry.Polygon) (out []geometry.Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrUnionFailed, r)
		}
	}()
	out, err = a.unioner.Union(acc, next)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnionFailed, err)
	}
	return out, nil
}
