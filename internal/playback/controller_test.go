package playback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"falcomplot/internal/app"
	"falcomplot/internal/blocks"
	"falcomplot/internal/loader"
	"falcomplot/internal/timeutil"
)

type fakeDocs struct {
	mu        sync.Mutex
	trees     map[int]*app.Tree
	districts map[int]app.DistrictDelta
	broken    map[int]bool
	calls     map[int]int

	// held districts block until released or the caller's context ends;
	// entered receives the iteration as each held fetch starts.
	held    map[int]chan struct{}
	entered chan int
}

// hold makes LoadDistrict(i) block and returns the function releasing it.
func (f *fakeDocs) hold(i int) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.held[i] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func newFakeDocs(n int) *fakeDocs {
	f := &fakeDocs{
		trees:     make(map[int]*app.Tree),
		districts: make(map[int]app.DistrictDelta),
		broken:    make(map[int]bool),
		calls:     make(map[int]int),
		held:      make(map[int]chan struct{}),
		entered:   make(chan int, 16),
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("n%d", i)
		f.trees[i] = app.NewTree([]app.TreeNode{{ID: id, X: float64(i), Y: float64(i)}}, nil, nil)
		f.districts[i] = app.DistrictDelta{
			DistrictID: i,
			BlockIDs:   []string{fmt.Sprintf("b%d", i)},
			Color:      fmt.Sprintf("c%d", i),
			Metadata:   map[string]interface{}{},
		}
	}
	return f
}

func (f *fakeDocs) LoadTree(ctx context.Context, i int, _ *blocks.CentroidIndex) (*app.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trees[i]
	if !ok {
		return nil, fmt.Errorf("tree_%d: %w", i, loader.ErrNotFound)
	}
	return t, nil
}

func (f *fakeDocs) LoadDistrict(ctx context.Context, i int) (app.DistrictDelta, error) {
	f.mu.Lock()
	gate := f.held[i]
	f.mu.Unlock()
	if gate != nil {
		f.entered <- i
		select {
		case <-gate:
		case <-ctx.Done():
			return app.DistrictDelta{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[i]++
	if f.broken[i] {
		return app.DistrictDelta{}, &loader.TransportError{Op: "GET", Path: fmt.Sprintf("district_%d.json", i), StatusCode: http.StatusServiceUnavailable}
	}
	d, ok := f.districts[i]
	if !ok {
		return app.DistrictDelta{}, fmt.Errorf("district_%d: %w", i, loader.ErrNotFound)
	}
	return d, nil
}

type countingBoundaries struct{ n int }

func (c *countingBoundaries) Recompute(s *app.State) *app.BoundaryCache {
	c.n++
	cache := app.NewBoundaryCache()
	s.SetBoundaries(cache)
	return cache
}

type view struct {
	Iteration       int
	Nodes           []app.TreeNode
	BlockToDistrict map[string]int
	DistrictColor   map[string]string
	ColorOrder      []string
}

func viewOf(s *app.State) view {
	snap := s.Snapshot()
	v := view{
		Iteration:       snap.Iteration,
		BlockToDistrict: snap.BlockToDistrict,
		DistrictColor:   snap.DistrictColor,
		ColorOrder:      snap.ColorOrder,
	}
	if snap.Tree != nil {
		v.Nodes = snap.Tree.Nodes
	}
	return v
}

func TestJumpTo_Idempotent(t *testing.T) {
	docs := newFakeDocs(5)
	// B is claimed by districts 2 and 5
	d2 := docs.districts[2]
	d2.BlockIDs = append(d2.BlockIDs, "B")
	docs.districts[2] = d2
	d5 := docs.districts[5]
	d5.BlockIDs = append(d5.BlockIDs, "B")
	docs.districts[5] = d5

	s := app.NewState()
	s.SetMaxIteration(5)
	bounds := &countingBoundaries{}
	fits := 0
	c := NewController(s, docs, WithBoundaries(bounds), WithFitter(func(*app.Tree) { fits++ }), WithConcurrency(2))

	require.NoError(t, c.JumpTo(context.Background(), 5))
	first := viewOf(s)
	require.NoError(t, c.JumpTo(context.Background(), 5))
	second := viewOf(s)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second jump changed state (-first +second):\n%s", diff)
	}
	assert.Equal(t, 5, first.BlockToDistrict["B"])
	assert.Equal(t, "c5", first.DistrictColor["B"])
	assert.Len(t, first.BlockToDistrict, 6)
	assert.Equal(t, "n5", first.Nodes[0].ID)
	assert.Equal(t, 2, bounds.n)
	assert.Equal(t, 2, fits)
}

func TestJumpTo_NotFinalLeavesBoundaries(t *testing.T) {
	docs := newFakeDocs(5)
	s := app.NewState()
	s.SetMaxIteration(5)
	bounds := &countingBoundaries{}
	c := NewController(s, docs, WithBoundaries(bounds))

	require.NoError(t, c.JumpTo(context.Background(), 3))
	assert.Equal(t, 0, bounds.n)
	assert.Nil(t, s.Boundaries())
	assert.Equal(t, 3, s.ColoredBlocks())
}

func TestJumpTo_MissingDistrictsAreSkipped(t *testing.T) {
	docs := newFakeDocs(4)
	delete(docs.districts, 2)
	s := app.NewState()
	c := NewController(s, docs)

	require.NoError(t, c.JumpTo(context.Background(), 4))
	_, ok := s.DistrictOf("b2")
	assert.False(t, ok)
	assert.Equal(t, 3, s.ColoredBlocks())
}

func TestJumpTo_AbsentTree(t *testing.T) {
	docs := newFakeDocs(2)
	s := app.NewState()
	c := NewController(s, docs)

	require.NoError(t, c.JumpTo(context.Background(), 1))
	require.NoError(t, c.JumpTo(context.Background(), 9))
	assert.Equal(t, 9, s.Iteration())
	assert.Equal(t, "n1", s.Tree().Nodes[0].ID, "tree kept")
	assert.Equal(t, 1, s.ColoredBlocks(), "districts kept")

	docs.mu.Lock()
	_, fetched := docs.calls[9]
	docs.mu.Unlock()
	assert.False(t, fetched)
}

func TestJumpTo_TransportError(t *testing.T) {
	docs := newFakeDocs(3)
	docs.broken[2] = true
	s := app.NewState()
	c := NewController(s, docs)

	err := c.JumpTo(context.Background(), 3)
	var te *loader.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, 0, s.ColoredBlocks(), "no partial replay")
}

func TestJumpTo_Invalid(t *testing.T) {
	c := NewController(app.NewState(), newFakeDocs(1))
	assert.ErrorIs(t, c.JumpTo(context.Background(), 0), ErrInvalidIteration)
}

func TestStep(t *testing.T) {
	docs := newFakeDocs(2)
	s := app.NewState()
	s.SetMaxIteration(2)
	redraws := 0
	s.On(app.EventRedraw, func(interface{}) { redraws++ })
	c := NewController(s, docs)

	require.NoError(t, c.Step(context.Background()))
	assert.Equal(t, 1, s.Iteration())
	assert.Equal(t, "n1", s.Tree().Nodes[0].ID)
	require.NoError(t, c.Step(context.Background()))
	require.NoError(t, c.Step(context.Background()))
	assert.Equal(t, 2, s.Iteration())
	assert.Equal(t, 2, s.ColoredBlocks())
	assert.Positive(t, redraws)
}

func TestStep_TransportError(t *testing.T) {
	docs := newFakeDocs(2)
	docs.broken[1] = true
	s := app.NewState()
	c := NewController(s, docs)

	err := c.Step(context.Background())
	var te *loader.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Nil(t, s.Tree(), "a failed step applies nothing")
	assert.Equal(t, 0, s.Iteration())

	docs.broken[1] = false
	require.NoError(t, c.Step(context.Background()))
	assert.Equal(t, 1, s.Iteration())
	assert.Equal(t, 1, s.ColoredBlocks())
}

func waitStep(t *testing.T, s *app.State, clk *timeutil.MockClock, i int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Iteration() == i && clk.PendingTimers() == 1
	}, time.Second, time.Millisecond)
}

func TestPlay_PausesAtMax(t *testing.T) {
	docs := newFakeDocs(3)
	s := app.NewState()
	s.SetMaxIteration(3)
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewController(s, docs, WithClock(clk), WithFrame(400*time.Millisecond))

	c.Play(context.Background())
	assert.True(t, c.Running())
	c.Play(context.Background())

	waitStep(t, s, clk, 1)
	clk.Advance(400 * time.Millisecond)
	waitStep(t, s, clk, 2)
	clk.Advance(400 * time.Millisecond)
	waitStep(t, s, clk, 3)
	clk.Advance(400 * time.Millisecond)

	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, 3, s.Iteration())
	assert.Equal(t, 3, s.ColoredBlocks())
	assert.Equal(t, 0, clk.PendingTimers())
}

func TestPlay_SpeedShortensWait(t *testing.T) {
	docs := newFakeDocs(3)
	s := app.NewState()
	s.SetMaxIteration(3)
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewController(s, docs, WithClock(clk), WithFrame(400*time.Millisecond))
	c.SetSpeed(2)

	c.Play(context.Background())
	waitStep(t, s, clk, 1)
	clk.Advance(200 * time.Millisecond)
	waitStep(t, s, clk, 2)
	c.Pause()
}

func TestPauseAndStop(t *testing.T) {
	docs := newFakeDocs(5)
	s := app.NewState()
	s.SetMaxIteration(5)
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewController(s, docs, WithClock(clk))

	c.Play(context.Background())
	waitStep(t, s, clk, 1)
	c.Pause()
	assert.False(t, c.Running())
	assert.Equal(t, 0, clk.PendingTimers())

	// a late tick must not run another step
	clk.Advance(time.Hour)
	assert.Equal(t, 1, s.Iteration())
	assert.Equal(t, 1, s.ColoredBlocks())

	// resume from where it paused
	c.Play(context.Background())
	waitStep(t, s, clk, 2)

	c.Stop()
	assert.False(t, c.Running())
	assert.Equal(t, 0, s.Iteration())
	assert.Nil(t, s.Tree())
	assert.Equal(t, 0, s.ColoredBlocks())
}

func TestPlay_TransportErrorStops(t *testing.T) {
	docs := newFakeDocs(3)
	docs.broken[2] = true
	s := app.NewState()
	s.SetMaxIteration(3)
	clk := timeutil.NewMockClock(time.Unix(0, 0))

	errs := make(chan error, 1)
	c := NewController(s, docs, WithClock(clk), WithErrorHandler(func(err error) { errs <- err }))
	c.Play(context.Background())
	waitStep(t, s, clk, 1)
	clk.Advance(DefaultFrame)

	select {
	case err := <-errs:
		var te *loader.TransportError
		assert.True(t, errors.As(err, &te))
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, s.Iteration(), "the failed step is not counted")
	assert.Equal(t, "n1", s.Tree().Nodes[0].ID)
}

func TestJumpTo_CancelsPlayback(t *testing.T) {
	docs := newFakeDocs(4)
	s := app.NewState()
	s.SetMaxIteration(4)
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewController(s, docs, WithClock(clk))

	c.Play(context.Background())
	waitStep(t, s, clk, 1)
	require.NoError(t, c.JumpTo(context.Background(), 3))
	assert.False(t, c.Running())

	clk.Advance(time.Hour)
	assert.Equal(t, 3, s.Iteration())
}

func waitEntered(t *testing.T, docs *fakeDocs, i int) {
	t.Helper()
	select {
	case got := <-docs.entered:
		require.Equal(t, i, got)
	case <-time.After(time.Second):
		t.Fatalf("district %d never fetched", i)
	}
}

func TestPause_MidStepIsResumable(t *testing.T) {
	docs := newFakeDocs(3)
	release := docs.hold(1)
	defer release()
	s := app.NewState()
	s.SetMaxIteration(3)
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewController(s, docs, WithClock(clk))

	c.Play(context.Background())
	waitEntered(t, docs, 1)
	c.Pause()

	assert.False(t, c.Running())
	assert.Equal(t, 0, s.Iteration(), "the interrupted step is not counted")
	assert.Nil(t, s.Tree())
	_, ok := s.DistrictOf("b1")
	assert.False(t, ok)

	release()
	require.NoError(t, c.Step(context.Background()))
	assert.Equal(t, 1, s.Iteration())
	assert.Equal(t, "n1", s.Tree().Nodes[0].ID)
	d, ok := s.DistrictOf("b1")
	require.True(t, ok)
	assert.Equal(t, 1, d)
}

func TestPlay_SupersedesJump(t *testing.T) {
	docs := newFakeDocs(3)
	release := docs.hold(1)
	s := app.NewState()
	s.SetMaxIteration(3)
	clk := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewController(s, docs, WithClock(clk))

	jumped := make(chan error, 1)
	go func() { jumped <- c.JumpTo(context.Background(), 2) }()
	waitEntered(t, docs, 1)

	c.Play(context.Background())
	select {
	case err := <-jumped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("jump did not return")
	}
	assert.Equal(t, 0, s.Iteration(), "the cancelled jump applied nothing")

	// the loop's own fetch of district 1 waits on the same gate
	release()
	waitStep(t, s, clk, 1)
	clk.Advance(DefaultFrame)
	waitStep(t, s, clk, 2)
	clk.Advance(DefaultFrame)
	waitStep(t, s, clk, 3)
	clk.Advance(DefaultFrame)
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)

	assert.Equal(t, 3, s.Iteration())
	assert.Equal(t, "n3", s.Tree().Nodes[0].ID)
	for i := 1; i <= 3; i++ {
		d, ok := s.DistrictOf(fmt.Sprintf("b%d", i))
		require.True(t, ok, "district %d kept", i)
		assert.Equal(t, i, d)
	}
}

func TestJumpTo_SupersededAppliesNothing(t *testing.T) {
	docs := newFakeDocs(3)
	release := docs.hold(2)
	defer release()
	s := app.NewState()
	s.SetMaxIteration(3)
	c := NewController(s, docs)

	jumped := make(chan error, 1)
	go func() { jumped <- c.JumpTo(context.Background(), 3) }()
	waitEntered(t, docs, 2)

	c.Stop()
	select {
	case err := <-jumped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("jump did not return")
	}
	assert.Equal(t, 0, s.Iteration())
	assert.Nil(t, s.Tree())
	assert.Equal(t, 0, s.ColoredBlocks())
}
