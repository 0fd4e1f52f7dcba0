// Package loader fetches the block document and the per-iteration tree and
// district documents from a directory or an HTTP server.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"falcomplot/internal/app"
	"falcomplot/internal/blocks"
	"falcomplot/internal/metrics"
	"falcomplot/pkg/colorutil"
)

// DefaultMaxProbe bounds the iteration probe.
const DefaultMaxProbe = 9999

// Loader reads documents from a Source. Tree and district paths follow the
// data mode reported by ModeFunc.
type Loader struct {
	src        Source
	logger     *zap.Logger
	metrics    *metrics.Metrics
	blocksFile string
	maxProbe   int
	mode       func() app.DataMode
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l.Named("loader")
		}
	}
}

// WithMetrics records load outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ld *Loader) { ld.metrics = m }
}

// WithBlocksFile overrides "blocks.json".
func WithBlocksFile(name string) Option {
	return func(ld *Loader) {
		if name != "" {
			ld.blocksFile = name
		}
	}
}

// WithMaxProbe bounds ProbeMaxIteration.
func WithMaxProbe(n int) Option {
	return func(ld *Loader) {
		if n > 0 {
			ld.maxProbe = n
		}
	}
}

// WithModeFunc reads the data mode on every call, typically State.DataMode.
func WithModeFunc(f func() app.DataMode) Option {
	return func(ld *Loader) {
		if f != nil {
			ld.mode = f
		}
	}
}

// New creates a loader over src.
func New(src Source, opts ...Option) *Loader {
	l := &Loader{
		src:        src,
		logger:     zap.NewNop(),
		blocksFile: "blocks.json",
		maxProbe:   DefaultMaxProbe,
		mode:       func() app.DataMode { return app.DataInitial },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source returns the underlying source.
func (l *Loader) Source() Source {
	return l.src
}

// TreeDir returns the tree directory for the current mode.
func (l *Loader) TreeDir() string {
	if l.mode() == app.DataIntermediate {
		return "int_trees"
	}
	return "trees"
}

// DistrictDir returns the district directory for the current mode.
func (l *Loader) DistrictDir() string {
	if l.mode() == app.DataIntermediate {
		return "int_districts"
	}
	return "districts"
}

// TreePath returns the relative path of iteration i's tree.
func (l *Loader) TreePath(i int) string {
	return fmt.Sprintf("%s/tree_%d.json", l.TreeDir(), i)
}

// DistrictPath returns the relative path of iteration i's district.
func (l *Loader) DistrictPath(i int) string {
	return fmt.Sprintf("%s/district_%d.json", l.DistrictDir(), i)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrMalformed):
		return metrics.OutcomeMalformed
	}
	return metrics.OutcomeError
}

// LoadBlocks fetches and decodes the block document. Every failure is
// returned: without blocks there is nothing to draw.
func (l *Loader) LoadBlocks(ctx context.Context) (set *blocks.Set, err error) {
	start := time.Now()
	defer func() { l.metrics.ObserveLoad(metrics.KindBlocks, outcome(err), time.Since(start)) }()

	data, err := l.src.Fetch(ctx, l.blocksFile)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	set, err = blocks.Decode(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w: %w", ErrMalformed, err)
	}
	l.logger.Info("blocks ready",
		zap.Int("blocks", set.Len()),
		zap.Int("identified", len(set.ByID)),
		zap.Bool("swapped", set.Swapped))
	return set, nil
}

// LoadTree fetches iteration i's tree. ErrNotFound and ErrMalformed mean "no
// tree"; a TransportError is a real failure.
func (l *Loader) LoadTree(ctx context.Context, i int, centroids *blocks.CentroidIndex) (tree *app.Tree, err error) {
	start := time.Now()
	p := l.TreePath(i)
	defer func() {
		l.metrics.ObserveLoad(metrics.KindTree, outcome(err), time.Since(start))
		l.logAbsent("tree", p, err)
	}()

	data, err := l.src.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	tree, err = ParseTree(data, centroids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if tree.Missing > 0 {
		l.logger.Warn("nodes missing centroids", zap.Int("missing", tree.Missing), zap.Int("iteration", i))
	}
	l.logger.Debug("tree loaded",
		zap.Int("iteration", i),
		zap.Int("nodes", len(tree.Nodes)),
		zap.Int("links", len(tree.Links)))
	return tree, nil
}

// LoadDistrict fetches the district born at iteration i and colours it with
// the iteration's stable colour.
func (l *Loader) LoadDistrict(ctx context.Context, i int) (d app.DistrictDelta, err error) {
	start := time.Now()
	p := l.DistrictPath(i)
	defer func() {
		l.metrics.ObserveLoad(metrics.KindDistrict, outcome(err), time.Since(start))
		l.logAbsent("district", p, err)
	}()

	data, err := l.src.Fetch(ctx, p)
	if err != nil {
		return app.DistrictDelta{}, err
	}
	ids, meta, err := ParseDistrict(data)
	if err != nil {
		return app.DistrictDelta{}, fmt.Errorf("%s: %w", p, err)
	}
	l.logger.Debug("district loaded", zap.Int("iteration", i), zap.Int("blocks", len(ids)))
	return app.DistrictDelta{
		DistrictID: i,
		BlockIDs:   ids,
		Color:      colorutil.DistrictColor(i),
		Metadata:   meta,
	}, nil
}

func (l *Loader) logAbsent(kind, p string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		l.logger.Debug(kind+" not found", zap.String("path", p))
	case errors.Is(err, ErrMalformed):
		l.logger.Warn(kind+" malformed", zap.String("path", p), zap.Error(err))
	}
}

// ProbeMaxIteration checks tree_1, tree_2, ... until one is missing or the
// check fails, and returns the last present iteration (at least 1). Only
// context cancellation is reported as an error.
func (l *Loader) ProbeMaxIteration(ctx context.Context) (int, error) {
	last := 1
	for i := 1; i <= l.maxProbe; i++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		ok, err := l.src.Exists(ctx, l.TreePath(i))
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			l.logger.Warn("probe stopped", zap.Int("iteration", i), zap.Error(err))
			break
		}
		if !ok {
			break
		}
		last = i
	}
	l.logger.Info("max iteration", zap.Int("max", last))
	return last, nil
}
