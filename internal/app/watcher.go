package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"falcomplot/internal/timeutil"
)

// Prober reports the last iteration with a tree document.
type Prober interface {
	ProbeMaxIteration(ctx context.Context) (int, error)
}

// IterationWatcher keeps State.MaxIteration current while the external
// algorithm is still writing iterations. A local tree directory is watched
// with fsnotify; anything else is re-probed on a timer.
type IterationWatcher struct {
	state    *State
	prober   Prober
	dir      string
	interval time.Duration
	clock    timeutil.Clock
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIterationWatcher creates a watcher. dir is the local tree directory, or
// "" to poll every interval.
func NewIterationWatcher(state *State, prober Prober, dir string, interval time.Duration, clock timeutil.Clock, logger *zap.Logger) *IterationWatcher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &IterationWatcher{
		state:    state,
		prober:   prober,
		dir:      dir,
		interval: interval,
		clock:    clock,
		logger:   logger.Named("watcher"),
	}
}

// Start begins watching in a background goroutine. Calling Start on a running
// watcher restarts it.
func (w *IterationWatcher) Start(ctx context.Context) error {
	w.Stop()

	var fw *fsnotify.Watcher
	if w.dir != "" {
		var err error
		fw, err = fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		if err := fw.Add(w.dir); err != nil {
			fw.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		if fw != nil {
			defer fw.Close()
			w.watchDir(ctx, fw)
			return
		}
		w.poll(ctx)
	}()
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *IterationWatcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Check probes once and records a changed maximum. It reports the probed
// value and whether it differed from the state's.
func (w *IterationWatcher) Check(ctx context.Context) (int, bool) {
	n, err := w.prober.ProbeMaxIteration(ctx)
	if err != nil {
		w.logger.Warn("probe failed", zap.Error(err))
		return w.state.MaxIteration(), false
	}
	if n == w.state.MaxIteration() {
		return n, false
	}
	w.logger.Info("max iteration changed",
		zap.Int("from", w.state.MaxIteration()),
		zap.Int("to", n))
	w.state.SetMaxIteration(n)
	return n, true
}

func (w *IterationWatcher) poll(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			w.Check(ctx)
		}
	}
}

func (w *IterationWatcher) watchDir(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !IsTreeFile(ev.Name) {
				continue
			}
			w.Check(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// IsTreeFile reports whether path names a tree_<i>.json document.
func IsTreeFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "tree_") && strings.HasSuffix(base, ".json")
}
