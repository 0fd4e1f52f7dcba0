// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"falcomplot/internal/app"
	"falcomplot/internal/render"
	"falcomplot/internal/session"
	"falcomplot/internal/version"
	"falcomplot/internal/view"
	"falcomplot/ui/canvas"
	"falcomplot/ui/panels"
	"falcomplot/ui/prefs"
)

var (
	viewOptions     = []string{"District", "Tree"}
	coloringOptions = []string{"Colored", "Uncolored"}
	dataOptions     = []string{"Initial", "Intermediate"}
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app  fyne.App
	ctx   context.Context
	sess  *session.Session
	prefs *prefs.Prefs

	canvas    *canvas.MapCanvas
	info      *panels.InfoPanel
	statusBar *widget.Label

	iterEntry      *widget.Entry
	speedLabel     *widget.Label
	viewSelect     *widget.Select
	coloringSelect *widget.Select
	dataSelect     *widget.Select

	flipItem *fyne.MenuItem
	flipped  bool
}

// New creates the main window over sess. ctx bounds every load started from
// the window. Remembered settings in p override the configured ones.
func New(ctx context.Context, fyneApp fyne.App, sess *session.Session, painter *render.Painter, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("falcomplot - " + sess.Config.Data.Source)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		ctx:    ctx,
		sess:   sess,
		prefs:  p,
	}

	mw.canvas = canvas.NewMapCanvas(sess, painter)
	mw.info = panels.NewInfoPanel()

	size := mw.applyPrefs()
	mw.flipped = sess.View().FlipX

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.syncControls()

	win.Resize(size)
	win.SetOnClosed(func() {
		s := win.Canvas().Size()
		mw.prefs.Update(func(v *prefs.Values) {
			v.WindowWidth, v.WindowHeight = s.Width, s.Height
		})
		mw.savePrefs()
	})
	return mw
}

// applyPrefs restores remembered speed, flip and view mode, and returns the
// initial window size.
func (mw *MainWindow) applyPrefs() fyne.Size {
	cfg := mw.sess.Config.Viewer
	size := fyne.NewSize(float32(cfg.Width), float32(cfg.Height))

	v := mw.prefs.Values()
	if v.Speed > 0 {
		mw.sess.Playback.SetSpeed(v.Speed)
	}
	if v.FlipX != nil {
		flip := *v.FlipX
		mw.sess.UpdateView(func(t *view.Transform) { t.SetFlipX(flip) })
	}
	if m, ok := app.ParseViewMode(v.ViewMode); ok {
		mw.sess.State.SetViewMode(m)
	}
	if v.WindowWidth > 0 && v.WindowHeight > 0 {
		size = fyne.NewSize(v.WindowWidth, v.WindowHeight)
	}
	return size
}

func (mw *MainWindow) savePrefs() {
	if err := mw.prefs.Save(); err != nil {
		mw.sess.Logger.Debug("preferences not saved", zap.Error(err))
	}
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.statusBar = widget.NewLabel("Ready")
	mw.canvas.OnHover(func(res app.HoverResult) {
		mw.info.ShowHover(res, mw.sess.State.Snapshot())
	})

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil,                // bottom
		nil,                // left
		nil,                // right
		mw.canvas,          // center
	)

	split := container.NewHSplit(canvasArea, mw.info.Container())
	split.SetOffset(0.75)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	)
	mw.SetContent(content)
}

// createToolbar creates the playback and mode controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	play := widget.NewButtonWithIcon("", theme.MediaPlayIcon(), mw.onPlay)
	pause := widget.NewButtonWithIcon("", theme.MediaPauseIcon(), mw.onPause)
	stop := widget.NewButtonWithIcon("", theme.MediaStopIcon(), mw.onStop)
	step := widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), mw.onStep)
	final := widget.NewButtonWithIcon("Final", theme.MediaFastForwardIcon(), mw.onFinal)

	mw.iterEntry = widget.NewEntry()
	mw.iterEntry.SetPlaceHolder("iteration")
	mw.iterEntry.OnSubmitted = func(string) { mw.onGo() }
	goBtn := widget.NewButton("Go", mw.onGo)

	speed := widget.NewSlider(0.25, 4)
	speed.Step = 0.25
	speed.SetValue(mw.sess.State.Speed())
	mw.speedLabel = widget.NewLabel(formatSpeed(speed.Value))
	speed.OnChanged = func(v float64) {
		mw.sess.Playback.SetSpeed(v)
		mw.speedLabel.SetText(formatSpeed(v))
		mw.prefs.Update(func(p *prefs.Values) { p.Speed = v })
	}

	mw.viewSelect = widget.NewSelect(viewOptions, mw.onViewMode)
	mw.coloringSelect = widget.NewSelect(coloringOptions, mw.onColoring)
	mw.dataSelect = widget.NewSelect(dataOptions, mw.onDataMode)

	resetBtn := widget.NewButtonWithIcon("", theme.ViewRestoreIcon(), mw.canvas.ResetView)

	return container.NewVBox(
		container.NewHBox(
			play, pause, stop, step, final,
			widget.NewSeparator(),
			container.NewGridWrap(fyne.NewSize(90, mw.iterEntry.MinSize().Height), mw.iterEntry),
			goBtn,
			widget.NewSeparator(),
			widget.NewLabel("Speed:"),
			container.NewGridWrap(fyne.NewSize(120, speed.MinSize().Height), speed),
			mw.speedLabel,
		),
		container.NewHBox(
			widget.NewLabel("View:"), mw.viewSelect,
			widget.NewLabel("Districts:"), mw.coloringSelect,
			widget.NewLabel("State:"), mw.dataSelect,
			resetBtn,
		),
	)
}

func formatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "x"
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Re-probe Iterations", mw.onProbe),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	mw.flipItem = fyne.NewMenuItem("Flip Horizontally", mw.onToggleFlip)
	mw.flipItem.Checked = mw.flipped

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Reset View", mw.canvas.ResetView),
		mw.flipItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Recompute Boundaries", mw.onRecomputeBoundaries),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

// setupEventHandlers registers for state events. Listeners may run on the
// playback goroutine, so they only refresh widgets.
func (mw *MainWindow) setupEventHandlers() {
	mw.sess.State.On(app.EventRedraw, func(interface{}) {
		mw.canvas.Refresh()
		mw.info.Update(mw.sess.State.Snapshot())
	})

	mw.sess.State.On(app.EventIterationChanged, func(interface{}) {
		snap := mw.sess.State.Snapshot()
		mw.info.Update(snap)
		mw.updateStatus(fmt.Sprintf("Iteration %d / %d", snap.Iteration, snap.MaxIteration))
	})

	mw.sess.State.On(app.EventModeChanged, func(interface{}) {
		mw.syncControls()
	})
}

// syncControls makes the selectors match the state without re-triggering
// their callbacks.
func (mw *MainWindow) syncControls() {
	snap := mw.sess.State.Snapshot()
	setSelected(mw.viewSelect, viewOptions[int(snap.ViewMode)], mw.onViewMode)
	setSelected(mw.coloringSelect, coloringOptions[int(snap.Coloring)], mw.onColoring)
	setSelected(mw.dataSelect, dataOptions[int(snap.DataMode)], mw.onDataMode)

	if snap.DataMode == app.DataIntermediate && snap.ViewMode == app.ViewDistrict {
		mw.coloringSelect.Enable()
	} else {
		mw.coloringSelect.Disable()
	}
	mw.info.Update(snap)
}

func setSelected(s *widget.Select, value string, onChanged func(string)) {
	if s.Selected == value {
		return
	}
	s.OnChanged = nil
	s.SetSelected(value)
	s.OnChanged = onChanged
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// ShowError reports an asynchronous failure.
func (mw *MainWindow) ShowError(err error) {
	mw.sess.Logger.Error("viewer", zap.Error(err))
	mw.updateStatus("Error: " + err.Error())
	dialog.ShowError(err, mw.Window)
}

// run executes a blocking load off the UI goroutine.
func (mw *MainWindow) run(status string, f func(ctx context.Context) error) {
	mw.updateStatus(status)
	go func() {
		if err := f(mw.ctx); err != nil {
			mw.ShowError(err)
			return
		}
		snap := mw.sess.State.Snapshot()
		mw.updateStatus(fmt.Sprintf("Iteration %d / %d", snap.Iteration, snap.MaxIteration))
	}()
}

// Toolbar and menu handlers

func (mw *MainWindow) onPlay() {
	mw.sess.Playback.Play(mw.ctx)
	mw.updateStatus("Playing")
}

func (mw *MainWindow) onPause() {
	mw.sess.Playback.Pause()
	mw.updateStatus("Paused")
}

func (mw *MainWindow) onStop() {
	mw.sess.Playback.Stop()
	mw.updateStatus("Stopped")
}

func (mw *MainWindow) onStep() {
	mw.run("Stepping...", mw.sess.Playback.Step)
}

func (mw *MainWindow) onFinal() {
	max := mw.sess.State.MaxIteration()
	mw.run(fmt.Sprintf("Jumping to final iteration %d...", max), mw.sess.Final)
}

func (mw *MainWindow) onGo() {
	target, err := strconv.Atoi(strings.TrimSpace(mw.iterEntry.Text))
	if err != nil || target < 1 {
		mw.updateStatus("Invalid iteration number")
		return
	}
	mw.run(fmt.Sprintf("Jumping to iteration %d...", target), func(ctx context.Context) error {
		return mw.sess.Playback.JumpTo(ctx, target)
	})
}

func (mw *MainWindow) onViewMode(v string) {
	if m, ok := app.ParseViewMode(strings.ToLower(v)); ok {
		mw.sess.State.SetViewMode(m)
		mw.prefs.Update(func(p *prefs.Values) { p.ViewMode = m.String() })
	}
}

func (mw *MainWindow) onColoring(v string) {
	c, ok := app.ParseColoring(strings.ToLower(v))
	if !ok {
		return
	}
	if !mw.sess.State.SetColoring(c) {
		mw.syncControls()
	}
}

func (mw *MainWindow) onDataMode(v string) {
	m, ok := app.ParseDataMode(strings.ToLower(v))
	if !ok || m == mw.sess.State.DataMode() {
		return
	}
	mw.run("Switching to "+v+" data...", func(ctx context.Context) error {
		return mw.sess.SetDataMode(ctx, m)
	})
}

// onRecomputeBoundaries unions the districts colored so far, off the UI
// goroutine.
func (mw *MainWindow) onRecomputeBoundaries() {
	mw.run("Recomputing boundaries...", func(ctx context.Context) error {
		mw.sess.RecomputeBoundaries()
		return nil
	})
}

func (mw *MainWindow) onProbe() {
	mw.run("Probing iterations...", mw.sess.Probe)
}

func (mw *MainWindow) onToggleFlip() {
	mw.flipped = !mw.flipped
	mw.flipItem.Checked = mw.flipped
	mw.canvas.SetFlipX(mw.flipped)
	mw.MainMenu().Refresh()
	flip := mw.flipped
	mw.prefs.Update(func(p *prefs.Values) { p.FlipX = &flip })
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About falcomplot",
		fmt.Sprintf("falcomplot v%s\n\n"+
			"Replays a redistricting run: census blocks, the spanning\n"+
			"tree of each iteration and the districts carved off so far.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
