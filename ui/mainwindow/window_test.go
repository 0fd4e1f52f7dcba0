package mainwindow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"falcomplot/internal/app"
	"falcomplot/internal/config"
	"falcomplot/internal/render"
	"falcomplot/internal/session"
	"falcomplot/ui/prefs"
)

func newWindow(t *testing.T) *MainWindow {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	dir := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write("blocks.json", `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"a","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
 {"type":"Feature","id":"b","properties":{},"geometry":{"type":"Polygon","coordinates":[[[1,0],[2,0],[2,1],[1,1],[1,0]]]}}
]}`)
	for _, mode := range []string{"", "int_"} {
		write(mode+"trees/tree_1.json", `{"nodes":[{"id":"a"}],"links":[]}`)
		write(mode+"trees/tree_2.json", `{"nodes":[{"id":"b"}],"links":[]}`)
		write(mode+"districts/district_1.json", `{"district":["a"]}`)
		write(mode+"districts/district_2.json", `{"district":["b"]}`)
	}

	cfg := config.Default()
	cfg.Data.Source = dir
	sess, err := session.Open(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	painter, err := render.NewPainter(cfg.Visual)
	require.NoError(t, err)
	return New(context.Background(), a, sess, painter, prefs.Load(t.TempDir()))
}

func TestControlsFollowState(t *testing.T) {
	mw := newWindow(t)
	assert.Equal(t, "District", mw.viewSelect.Selected)
	assert.Equal(t, "Initial", mw.dataSelect.Selected)
	assert.True(t, mw.coloringSelect.Disabled(), "initial data is always colored")

	mw.sess.State.SetDataMode(app.DataIntermediate)
	assert.Equal(t, "Intermediate", mw.dataSelect.Selected)
	assert.False(t, mw.coloringSelect.Disabled())

	mw.viewSelect.SetSelected("Tree")
	assert.Equal(t, app.ViewTree, mw.sess.State.ViewMode())
	assert.True(t, mw.coloringSelect.Disabled())
}

func TestGo(t *testing.T) {
	mw := newWindow(t)

	mw.iterEntry.SetText("zero")
	mw.onGo()
	assert.Equal(t, "Invalid iteration number", mw.statusBar.Text)

	mw.iterEntry.SetText("2")
	mw.onGo()
	require.Eventually(t, func() bool {
		return mw.sess.State.Iteration() == 2 && mw.sess.State.ColoredBlocks() == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return mw.statusBar.Text == "Iteration 2 / 2"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRecomputeBoundaries(t *testing.T) {
	mw := newWindow(t)
	mw.sess.State.SetDataMode(app.DataIntermediate)
	require.NoError(t, mw.sess.Probe(context.Background()))
	require.NoError(t, mw.sess.Playback.JumpTo(context.Background(), 1))
	assert.Nil(t, mw.sess.State.Boundaries())

	mw.coloringSelect.SetSelected("Uncolored")
	assert.Equal(t, app.Uncolored, mw.sess.State.Coloring())
	assert.Nil(t, mw.sess.State.Boundaries(), "toggling coloring does not union")

	mw.onRecomputeBoundaries()
	require.Eventually(t, func() bool {
		return mw.sess.State.Boundaries().Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return mw.statusBar.Text == "Iteration 1 / 2"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStop(t *testing.T) {
	mw := newWindow(t)
	require.NoError(t, mw.sess.Final(context.Background()))
	mw.onStop()
	assert.Equal(t, 0, mw.sess.State.Iteration())
	assert.Equal(t, 0, mw.sess.State.ColoredBlocks())
	assert.Equal(t, "Stopped", mw.statusBar.Text)
}

func TestRememberedPrefs(t *testing.T) {
	mw := newWindow(t)
	flip := false
	mw.prefs.Update(func(v *prefs.Values) {
		v.Speed = 2
		v.FlipX = &flip
		v.ViewMode = "tree"
	})
	mw.applyPrefs()
	assert.Equal(t, 2.0, mw.sess.State.Speed())
	assert.False(t, mw.sess.View().FlipX)
	assert.Equal(t, app.ViewTree, mw.sess.State.ViewMode())

	mw.viewSelect.SetSelected("District")
	assert.Equal(t, "district", mw.prefs.Values().ViewMode)
}
