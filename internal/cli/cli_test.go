package cli

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "blocks.json", `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"a","properties":{"population":10},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
 {"type":"Feature","id":"b","properties":{"population":20},"geometry":{"type":"Polygon","coordinates":[[[1,0],[2,0],[2,1],[1,1],[1,0]]]}},
 {"type":"Feature","id":"c","properties":{"population":30},"geometry":{"type":"Polygon","coordinates":[[[2,0],[3,0],[3,1],[2,1],[2,0]]]}}
]}`)
	writeFile(t, dir, "trees/tree_1.json", `{"nodes":[{"id":"a"},{"id":"b"}],"links":[{"source":"a","target":"b"}]}`)
	writeFile(t, dir, "trees/tree_2.json", `{"nodes":[{"id":"c"}],"links":[]}`)
	writeFile(t, dir, "districts/district_1.json", `{"district":["a"]}`)
	writeFile(t, dir, "districts/district_2.json", `{"district":["b","c"],"metadata":{"population":50}}`)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "falcomplot 0.1.0")
}

func TestProbe(t *testing.T) {
	dir := dataDir(t)

	out, err := run(t, "probe", "--data", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = run(t, "probe", "--data", dir, "--mode", "intermediate", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestBadMode(t *testing.T) {
	_, err := run(t, "probe", "--data", dataDir(t), "--mode", "final")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	dir := dataDir(t)
	png1 := filepath.Join(t.TempDir(), "out.png")

	out, err := run(t, "render", "--data", dir, "--log-level", "error",
		"--out", png1, "--width", "200", "--height", "100", "--coloring", "uncolored")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration 2 of 2")

	f, err := os.Open(png1)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestRender_Boundaries(t *testing.T) {
	dir := dataDir(t)
	out := filepath.Join(t.TempDir(), "out.png")

	got, err := run(t, "render", "--data", dir, "--log-level", "error",
		"--out", out, "--iteration", "1", "--width", "50", "--height", "50")
	require.NoError(t, err)
	assert.Contains(t, got, "iteration 1 of 2, 0 boundaries")

	got, err = run(t, "render", "--data", dir, "--log-level", "error",
		"--out", out, "--iteration", "1", "--width", "50", "--height", "50", "--boundaries")
	require.NoError(t, err)
	assert.Contains(t, got, "iteration 1 of 2, 1 boundaries")
}

func TestRender_BadView(t *testing.T) {
	_, err := run(t, "render", "--data", dataDir(t), "--view", "sideways",
		"--out", filepath.Join(t.TempDir(), "x.png"))
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	dir := dataDir(t)
	chart := filepath.Join(t.TempDir(), "chart.png")

	out, err := run(t, "report", "--data", dir, "--log-level", "error", "--out", chart)
	require.NoError(t, err)
	assert.Contains(t, out, "iteration 2")
	assert.Contains(t, out, "metadata")
	assert.Contains(t, out, "Districts: 2")
	assert.Contains(t, out, "total 60")
	assert.FileExists(t, chart)

	out, err = run(t, "report", "--data", dir, "--log-level", "error", "--iteration", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Districts: 1")
}

func TestServe_RemoteSource(t *testing.T) {
	_, err := run(t, "serve", "--data", "http://example.invalid/data")
	assert.ErrorContains(t, err, "local data directory")
}

func TestFromCommand_NoContext(t *testing.T) {
	_, err := FromCommand(&cobra.Command{})
	assert.ErrorIs(t, err, ErrNoContext)
}
