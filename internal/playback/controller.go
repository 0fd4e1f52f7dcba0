// Package playback drives the iteration animation and jump-to-iteration
// replays against an app.State.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"falcomplot/internal/app"
	"falcomplot/internal/blocks"
	"falcomplot/internal/loader"
	"falcomplot/internal/metrics"
	"falcomplot/internal/timeutil"
)

// ErrInvalidIteration is returned by JumpTo for targets below 1.
var ErrInvalidIteration = errors.New("invalid iteration")

const (
	// DefaultFrame is the delay between steps at speed 1.
	DefaultFrame = 400 * time.Millisecond

	// DefaultConcurrency bounds district fetches during a jump.
	DefaultConcurrency = 8
)

// Documents loads per-iteration documents. *loader.Loader satisfies it.
type Documents interface {
	LoadTree(ctx context.Context, i int, centroids *blocks.CentroidIndex) (*app.Tree, error)
	LoadDistrict(ctx context.Context, i int) (app.DistrictDelta, error)
}

// BoundaryComputer rebuilds and stores district boundaries.
// *boundary.Aggregator satisfies it.
type BoundaryComputer interface {
	Recompute(s *app.State) *app.BoundaryCache
}

// Fitter re-centres the view on a freshly loaded tree.
type Fitter func(tree *app.Tree)

// Controller owns the single playback loop. At most one operation (the loop,
// a step or a jump) is in flight: starting another cancels the current one
// and waits for it to exit. Steps and jumps apply nothing once cancelled, so
// no state change from a superseded operation lands after its successor
// starts.
type Controller struct {
	state       *app.State
	docs        Documents
	boundaries  BoundaryComputer
	fitter      Fitter
	clock       timeutil.Clock
	logger      *zap.Logger
	metrics     *metrics.Metrics
	frame       time.Duration
	concurrency int
	onError     func(error)

	mu  sync.Mutex
	cur *operation
}

// operation is the in-flight loop, step or jump.
type operation struct {
	loop   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c timeutil.Clock) Option {
	return func(pc *Controller) {
		if c != nil {
			pc.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(pc *Controller) {
		if l != nil {
			pc.logger = l.Named("playback")
		}
	}
}

// WithMetrics records steps and the current iteration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pc *Controller) { pc.metrics = m }
}

// WithBoundaries enables boundary recomputation on jumps to the last
// iteration.
func WithBoundaries(b BoundaryComputer) Option {
	return func(pc *Controller) { pc.boundaries = b }
}

// WithFitter is called after a jump loads its tree.
func WithFitter(f Fitter) Option {
	return func(pc *Controller) { pc.fitter = f }
}

// WithFrame sets the delay between steps at speed 1.
func WithFrame(d time.Duration) Option {
	return func(pc *Controller) {
		if d > 0 {
			pc.frame = d
		}
	}
}

// WithConcurrency bounds parallel district fetches during a jump.
func WithConcurrency(n int) Option {
	return func(pc *Controller) {
		if n > 0 {
			pc.concurrency = n
		}
	}
}

// WithErrorHandler receives transport errors that stop Play.
func WithErrorHandler(f func(error)) Option {
	return func(pc *Controller) { pc.onError = f }
}

// NewController creates a controller for state.
func NewController(state *app.State, docs Documents, opts ...Option) *Controller {
	c := &Controller{
		state:       state,
		docs:        docs,
		clock:       timeutil.RealClock{},
		logger:      zap.NewNop(),
		frame:       DefaultFrame,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Running reports whether the loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil && c.cur.loop
}

// SetSpeed changes the speed multiplier; it applies from the next wait.
func (c *Controller) SetSpeed(v float64) {
	c.state.SetSpeed(v)
}

// begin cancels whatever is in flight, waits for it, and registers a new
// operation. The caller must call end when done.
func (c *Controller) begin(ctx context.Context, loop bool) (context.Context, *operation) {
	c.mu.Lock()
	for c.cur != nil {
		prev := c.cur
		c.cur = nil
		c.mu.Unlock()
		prev.cancel()
		<-prev.done
		c.mu.Lock()
	}
	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{loop: loop, cancel: cancel, done: make(chan struct{})}
	c.cur = op
	c.mu.Unlock()
	return opCtx, op
}

func (c *Controller) end(op *operation) {
	c.mu.Lock()
	if c.cur == op {
		c.cur = nil
	}
	c.mu.Unlock()
	op.cancel()
	close(op.done)
}

// halt cancels the current operation, or only the loop when loopOnly is set,
// and waits for it to exit.
func (c *Controller) halt(loopOnly bool) bool {
	c.mu.Lock()
	op := c.cur
	if op == nil || (loopOnly && !op.loop) {
		c.mu.Unlock()
		return false
	}
	c.cur = nil
	c.mu.Unlock()

	op.cancel()
	<-op.done
	return true
}

// Play starts the loop from the current iteration. It is a no-op when
// already running; an in-flight step or jump is cancelled first.
func (c *Controller) Play(ctx context.Context) {
	if c.Running() {
		return
	}
	runCtx, op := c.begin(ctx, true)

	log := c.logger.With(zap.String("run", uuid.NewString()))
	log.Info("playback started", zap.Int("from", c.state.Iteration()))
	go c.loop(runCtx, op, log)
}

func (c *Controller) loop(ctx context.Context, op *operation, log *zap.Logger) {
	defer c.end(op)

	for {
		next := c.state.Iteration() + 1
		if max := c.state.MaxIteration(); max > 0 && next > max {
			log.Info("playback complete", zap.Int("iteration", next-1))
			return
		}
		if err := c.advance(ctx, next); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("step failed", zap.Int("iteration", next), zap.Error(err))
			if c.onError != nil {
				c.onError(err)
			}
			return
		}

		wait := time.Duration(float64(c.frame) / c.state.Speed())
		t := c.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C():
		}
	}
}

// Pause stops the loop and keeps the state. A step cancelled mid-fetch
// applies nothing, so resuming repeats it.
func (c *Controller) Pause() {
	if c.halt(true) {
		c.logger.Info("playback paused", zap.Int("iteration", c.state.Iteration()))
	}
}

// Stop cancels any operation and resets the state.
func (c *Controller) Stop() {
	c.halt(false)
	c.state.Reset()
	c.metrics.SetIteration(0)
	c.logger.Info("playback stopped")
}

// Step cancels playback and advances one iteration. At the last iteration it
// does nothing.
func (c *Controller) Step(ctx context.Context) error {
	opCtx, op := c.begin(ctx, false)
	defer c.end(op)

	next := c.state.Iteration() + 1
	if max := c.state.MaxIteration(); max > 0 && next > max {
		return nil
	}
	return c.advance(opCtx, next)
}

func (c *Controller) centroids() *blocks.CentroidIndex {
	if set := c.state.Blocks(); set != nil {
		return set.Centroids
	}
	return nil
}

// advance loads iteration i's tree and district, then applies both and moves
// to i. Absent documents are skipped. A transport error or cancellation
// during either fetch applies nothing.
func (c *Controller) advance(ctx context.Context, i int) error {
	tree, err := c.docs.LoadTree(ctx, i, c.centroids())
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err != nil {
		if !loader.IsAbsent(err) {
			return fmt.Errorf("step %d: %w", i, err)
		}
		tree = nil
	}

	d, err := c.docs.LoadDistrict(ctx, i)
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	hasDistrict := err == nil
	if err != nil && !loader.IsAbsent(err) {
		return fmt.Errorf("step %d: %w", i, err)
	}

	if tree != nil {
		c.state.MergeTreeSnapshot(tree)
	}
	if hasDistrict {
		c.state.MergeDistrictDelta(d)
		c.logger.Debug("district merged", zap.Int("iteration", i), zap.Int("blocks", len(d.BlockIDs)))
	}
	c.state.SetIteration(i)
	c.metrics.Stepped(i)
	c.state.Emit(app.EventRedraw, i)
	return nil
}

// JumpTo cancels playback and rebuilds the state for target: its tree, and
// every district from 1 to target replayed in ascending order. When the tree
// is absent only the iteration changes. Boundaries are recomputed when target
// is the last iteration. A transport error, or a newer operation superseding
// the jump, leaves the state untouched.
func (c *Controller) JumpTo(ctx context.Context, target int) error {
	if target < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidIteration, target)
	}
	opCtx, op := c.begin(ctx, false)
	defer c.end(op)

	log := c.logger.With(zap.String("jump", uuid.NewString()), zap.Int("target", target))
	start := c.clock.Now()

	tree, err := c.docs.LoadTree(opCtx, target, c.centroids())
	if cerr := opCtx.Err(); cerr != nil {
		return fmt.Errorf("jump %d: %w", target, cerr)
	}
	if err != nil {
		if loader.IsAbsent(err) {
			log.Warn("no tree for jump target")
			c.state.SetIteration(target)
			c.metrics.SetIteration(target)
			return nil
		}
		return fmt.Errorf("jump %d: %w", target, err)
	}

	deltas, err := c.fetchDistricts(opCtx, target)
	if err != nil {
		return fmt.Errorf("jump %d: %w", target, err)
	}

	c.state.MergeTreeSnapshot(tree)
	if c.fitter != nil {
		c.fitter(tree)
	}
	c.state.ReplayDistricts(deltas)
	c.state.SetIteration(target)
	c.metrics.SetIteration(target)

	if target == c.state.MaxIteration() && c.boundaries != nil {
		c.boundaries.Recompute(c.state)
	}
	log.Info("jump complete",
		zap.Int("districts", len(deltas)),
		zap.Int("colored_blocks", c.state.ColoredBlocks()),
		zap.Duration("took", c.clock.Now().Sub(start)))
	c.state.Emit(app.EventRedraw, target)
	return nil
}

// fetchDistricts loads districts 1..n concurrently and returns those present
// in ascending order.
func (c *Controller) fetchDistricts(ctx context.Context, n int) ([]app.DistrictDelta, error) {
	results := make([]*app.DistrictDelta, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 1; i <= n; i++ {
		i := i
		g.Go(func() error {
			d, err := c.docs.LoadDistrict(gctx, i)
			if err != nil {
				if loader.IsAbsent(err) {
					return nil
				}
				return err
			}
			results[i-1] = &d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deltas := make([]app.DistrictDelta, 0, n)
	for _, d := range results {
		if d != nil {
			deltas = append(deltas, *d)
		}
	}
	return deltas, nil
}
