package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"falcomplot/internal/metrics"
)

func write(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func get(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestHandler_Routes(t *testing.T) {
	data, assets := t.TempDir(), t.TempDir()
	write(t, data, "trees/tree_1.json", `{"nodes":[],"links":[]}`)
	write(t, assets, "index.html", "<html>viewer</html>")
	write(t, assets, "js/main.js", "console.log(1)")

	s, err := New(data, WithAssetsDir(assets), WithMetrics(metrics.New()))
	require.NoError(t, err)
	h := s.Handler()

	for _, tc := range []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/data/trees/tree_1.json", http.StatusOK, `{"nodes":[],"links":[]}`},
		{http.MethodHead, "/data/trees/tree_1.json", http.StatusOK, ""},
		{http.MethodHead, "/data/trees/tree_2.json", http.StatusNotFound, ""},
		{http.MethodGet, "/", http.StatusOK, "<html>viewer</html>"},
		{http.MethodGet, "/js/main.js", http.StatusOK, "console.log(1)"},
		{http.MethodGet, "/health", http.StatusOK, "ok"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			code, body := get(t, h, tc.method, tc.path)
			assert.Equal(t, tc.code, code)
			if tc.body != "" {
				assert.Equal(t, tc.body, body)
			}
		})
	}

	code, body := get(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "falcomplot_")
}

func TestHandler_NoAssets(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	h := s.Handler()

	code, body := get(t, h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/data/")

	code, _ = get(t, h, http.MethodGet, "/app.js")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNew_MissingDataDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrNoDataDir)
}

func TestServe_Shutdown(t *testing.T) {
	data := t.TempDir()
	write(t, data, "blocks.json", "{}")
	s, err := New(data)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/data/blocks.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
