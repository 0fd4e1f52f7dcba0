// Package session wires the loader, state, hit tester, boundary aggregator
// and playback controller for one data source. The desktop viewer and the
// headless commands share it.
package session

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"falcomplot/internal/app"
	"falcomplot/internal/boundary"
	"falcomplot/internal/config"
	"falcomplot/internal/loader"
	"falcomplot/internal/metrics"
	"falcomplot/internal/playback"
	"falcomplot/internal/spatial"
	"falcomplot/internal/view"
	"falcomplot/pkg/geometry"
)

// Session is one loaded data source.
type Session struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	State      *app.State
	Loader     *loader.Loader
	Index      *spatial.BlockIndex
	Boundaries *boundary.Aggregator
	Playback   *playback.Controller

	mu        sync.Mutex
	transform *view.Transform
	width     float64
	height    float64
}

// Open reads the block document and probes the last iteration. Playback and
// view settings come from cfg; opts are applied to the controller after them.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, opts ...playback.Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		State:     app.NewState(),
		transform: view.New(),
		width:     float64(cfg.Viewer.Width),
		height:    float64(cfg.Viewer.Height),
	}
	s.transform.SetFlipX(cfg.Viewer.FlipX)

	if err := s.applyModes(); err != nil {
		return nil, err
	}
	s.State.SetHoverOptions(cfg.Visual.HitRadiusPx, cfg.Playback.HoverHighlight)
	s.State.SetSpeed(cfg.Playback.Speed)

	src, err := loader.NewSource(cfg.Data.Source, &http.Client{Timeout: cfg.Data.HTTPTimeout})
	if err != nil {
		return nil, err
	}
	s.Loader = loader.New(src,
		loader.WithLogger(logger),
		loader.WithMetrics(m),
		loader.WithBlocksFile(cfg.Data.BlocksFile),
		loader.WithMaxProbe(cfg.Data.MaxProbe),
		loader.WithModeFunc(s.State.DataMode),
	)

	set, err := s.Loader.LoadBlocks(ctx)
	if err != nil {
		return nil, err
	}
	s.State.SetBlocks(set)
	s.Index = spatial.NewBlockIndex(set)
	logger.Info("blocks loaded",
		zap.Int("blocks", set.Len()),
		zap.Int("identified", len(set.ByID)),
		zap.Bool("swapped", set.Swapped))

	if err := s.Probe(ctx); err != nil {
		return nil, err
	}

	s.Boundaries = boundary.NewAggregator(boundary.WithLogger(logger), boundary.WithMetrics(m))
	s.Playback = playback.NewController(s.State, s.Loader, append([]playback.Option{
		playback.WithLogger(logger),
		playback.WithMetrics(m),
		playback.WithBoundaries(s.Boundaries),
		playback.WithFitter(s.FitTree),
		playback.WithFrame(cfg.Playback.AnimationDuration),
		playback.WithConcurrency(cfg.Data.FetchConcurrency),
	}, opts...)...)

	s.FitTree(nil)
	return s, nil
}

func (s *Session) applyModes() error {
	cfg := s.Config.Viewer
	vm, ok := app.ParseViewMode(cfg.ViewMode)
	if !ok {
		return fmt.Errorf("view mode %q", cfg.ViewMode)
	}
	c, ok := app.ParseColoring(cfg.Coloring)
	if !ok {
		return fmt.Errorf("coloring %q", cfg.Coloring)
	}
	dm, ok := app.ParseDataMode(s.Config.Data.Mode)
	if !ok {
		return fmt.Errorf("data mode %q", s.Config.Data.Mode)
	}
	s.State.SetViewMode(vm)
	s.State.SetDataMode(dm)
	if !s.State.SetColoring(c) {
		s.Logger.Warn("initial data is always colored", zap.String("coloring", cfg.Coloring))
	}
	return nil
}

// Probe refreshes the state's max iteration for the current data mode.
func (s *Session) Probe(ctx context.Context) error {
	n, err := s.Loader.ProbeMaxIteration(ctx)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	s.State.SetMaxIteration(n)
	s.Logger.Info("iterations probed",
		zap.String("mode", s.State.DataMode().String()),
		zap.Int("max", n))
	return nil
}

// SetDataMode stops playback, clears tree and districts, switches the
// artifact directories and re-probes.
func (s *Session) SetDataMode(ctx context.Context, m app.DataMode) error {
	s.Playback.Stop()
	s.State.SetDataMode(m)
	return s.Probe(ctx)
}

// Final jumps to the last probed iteration, which also rebuilds boundaries.
func (s *Session) Final(ctx context.Context) error {
	max := s.State.MaxIteration()
	if max < 1 {
		return nil
	}
	return s.Playback.JumpTo(ctx, max)
}

// RecomputeBoundaries unions the current districts on request. Playback only
// does this on a jump to the last iteration. It returns the number of
// districts with a boundary.
func (s *Session) RecomputeBoundaries() int {
	if s.State.ColoredBlocks() == 0 {
		return 0
	}
	return s.Boundaries.Recompute(s.State).Len()
}

// Watcher builds an iteration watcher. Local sources watch the tree
// directory; remote ones poll.
func (s *Session) Watcher() *app.IterationWatcher {
	dir := ""
	if ds, ok := s.Loader.Source().(*loader.DirSource); ok {
		dir = filepath.Join(ds.Root(), filepath.FromSlash(s.Loader.TreeDir()))
	}
	return app.NewIterationWatcher(s.State, s.Loader, dir, s.Config.Data.WatchInterval, nil, s.Logger)
}

// SetViewport records the canvas size used by fits.
func (s *Session) SetViewport(width, height float64) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

// Viewport returns the canvas size.
func (s *Session) Viewport() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// FitTree fits the view to the blocks plus every finite node of tree.
func (s *Session) FitTree(tree *app.Tree) {
	var nodes []geometry.Point2D
	if tree != nil {
		nodes = make([]geometry.Point2D, 0, len(tree.Nodes))
		for _, n := range tree.Nodes {
			nodes = append(nodes, n.Pos())
		}
	}
	b := view.FitBounds(s.State.Blocks().Bounds, nodes)

	s.mu.Lock()
	err := s.transform.AutoFit(b, s.width, s.height, s.Config.Visual.FramePadding)
	s.mu.Unlock()
	if err != nil {
		s.Logger.Debug("fit skipped", zap.Error(err))
	}
}

// View returns a copy of the current transform.
func (s *Session) View() view.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform.Clone()
}

// UpdateView mutates the transform under the session lock.
func (s *Session) UpdateView(f func(t *view.Transform)) {
	s.mu.Lock()
	f(s.transform)
	s.mu.Unlock()
}

// HoverAt runs the hit tester at a screen point.
func (s *Session) HoverAt(x, y float64, now time.Time) app.HoverResult {
	t := s.View()
	p := t.ScreenToModel(geometry.Point2D{X: x, Y: y})
	return app.Hover(s.State, s.Index, p, t.K, now)
}

// Close stops playback.
func (s *Session) Close() {
	if s.Playback != nil {
		s.Playback.Stop()
	}
}
