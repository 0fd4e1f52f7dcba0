package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"falcomplot/internal/app"
	"falcomplot/internal/blocks"
	"falcomplot/internal/metrics"
	"falcomplot/pkg/geometry"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const blocksDoc = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"b1","properties":{"GEOID20":"170310001"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
 {"type":"Feature","id":7,"properties":{"GEOID":"G7"},"geometry":{"type":"Polygon","coordinates":[[[10,10],[12,10],[12,12],[10,12],[10,10]]]}}
]}`

const treeDocJSON = `{
 "nodes":[
  {"id":"b1","population":1100,"has_facility":true},
  {"id":99,"GEOID20":"170310001"},
  {"id":"n3","GEOID":"G7","candidate":1},
  {"id":"n4","x":5,"y":6},
  {"id":"lost"}
 ],
 "links":[{"source":"b1","target":99},{"source":"n3","target":"lost"},{"source":"n4","target":"b1"}],
 "metadata":{"root":99,"ideal_pop":1000,"epsilon":0.1,"two_sided":true}
}`

func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func decodeBlocks(t *testing.T) *blocks.Set {
	t.Helper()
	set, err := blocks.DecodeBytes([]byte(blocksDoc), nil)
	require.NoError(t, err)
	return set
}

func TestParseTree(t *testing.T) {
	set := decodeBlocks(t)
	tree, err := ParseTree([]byte(treeDocJSON), set.Centroids)
	require.NoError(t, err)

	require.Len(t, tree.Nodes, 4)
	assert.Equal(t, 1, tree.Missing)
	assert.Equal(t, "99", tree.RootID)

	b1, _ := tree.Node("b1")
	assert.Equal(t, geometry.Point2D{X: 1, Y: 1}, b1.Pos())
	require.NotNil(t, b1.Population)
	assert.Equal(t, 1100.0, *b1.Population)
	assert.True(t, b1.HasFacility)

	n99, _ := tree.Node("99")
	assert.Equal(t, geometry.Point2D{X: 1, Y: 1}, n99.Pos(), "resolved by GEOID20")

	n3, _ := tree.Node("n3")
	assert.Equal(t, geometry.Point2D{X: 11, Y: 11}, n3.Pos(), "resolved by GEOID")
	assert.True(t, n3.Candidate)

	n4, _ := tree.Node("n4")
	assert.Equal(t, geometry.Point2D{X: 5, Y: 6}, n4.Pos(), "explicit coordinates")

	assert.Equal(t, []app.Link{{Source: "b1", Target: "99"}, {Source: "n4", Target: "b1"}}, tree.Links)

	require.NotNil(t, tree.Metadata)
	assert.Equal(t, 1000.0, *tree.Metadata.IdealPop)
	assert.True(t, *tree.Metadata.TwoSided)
	assert.Nil(t, tree.Metadata.TotPop)
}

func TestParseTree_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     `{"nodes":`,
		"no nodes":     `{"links":[]}`,
		"no links":     `{"nodes":[]}`,
		"nodes object": `{"nodes":{},"links":[]}`,
		"null nodes":   `{"nodes":null,"links":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTree([]byte(body), nil)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseDistrict(t *testing.T) {
	ids, meta, err := ParseDistrict([]byte(`{"district":["a",12,"c"],"metadata":{"population":1234}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "12", "c"}, ids)
	assert.Equal(t, 1234.0, meta["population"])

	_, meta, err = ParseDistrict([]byte(`{"district":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, meta)

	_, _, err = ParseDistrict([]byte(`{"metadata":{}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoader_DirSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blocks.json", blocksDoc)
	writeFile(t, dir, "trees/tree_1.json", treeDocJSON)
	writeFile(t, dir, "trees/tree_2.json", treeDocJSON)
	writeFile(t, dir, "districts/district_1.json", `{"district":["b1"],"metadata":{}}`)
	writeFile(t, dir, "districts/district_2.json", `{"district":"oops"}`)
	writeFile(t, dir, "int_trees/tree_1.json", treeDocJSON)

	m := metrics.New()
	mode := app.DataInitial
	l := New(NewDirSource(dir), WithMetrics(m), WithModeFunc(func() app.DataMode { return mode }))
	ctx := context.Background()

	set, err := l.LoadBlocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	tree, err := l.LoadTree(ctx, 1, set.Centroids)
	require.NoError(t, err)
	assert.Len(t, tree.Nodes, 4)

	_, err = l.LoadTree(ctx, 3, set.Centroids)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsAbsent(err))

	d, err := l.LoadDistrict(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.DistrictID)
	assert.Equal(t, []string{"b1"}, d.BlockIDs)
	assert.Equal(t, "hsl(137.508, 70%, 55%)", d.Color)

	_, err = l.LoadDistrict(ctx, 2)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.True(t, IsAbsent(err))

	n, err := l.ProbeMaxIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mode = app.DataIntermediate
	assert.Equal(t, "int_trees/tree_4.json", l.TreePath(4))
	assert.Equal(t, "int_districts/district_4.json", l.DistrictPath(4))
	n, err = l.ProbeMaxIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsLoaded.WithLabelValues(metrics.KindTree, metrics.OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsLoaded.WithLabelValues(metrics.KindDistrict, metrics.OutcomeMalformed)))
}

func TestLoader_ProbeMinimumIsOne(t *testing.T) {
	l := New(NewDirSource(t.TempDir()))
	n, err := l.ProbeMaxIteration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoader_BlocksErrors(t *testing.T) {
	dir := t.TempDir()
	l := New(NewDirSource(dir))
	_, err := l.LoadBlocks(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	writeFile(t, dir, "blocks.json", `{"type":"FeatureCollection"}`)
	_, err = l.LoadBlocks(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, blocks.ErrNoFeatures)
}

func TestHTTPSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/trees/tree_1.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(treeDocJSON))
	})
	mux.HandleFunc("/data/trees/tree_2.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(treeDocJSON))
	})
	mux.HandleFunc("/data/trees/tree_3.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/data/districts/district_1.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL+"/data", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/data/trees/tree_1.json", src.URL("trees/tree_1.json"))

	ctx := context.Background()
	ok, err := src.Exists(ctx, "trees/tree_1.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = src.Exists(ctx, "trees/tree_9.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = src.Fetch(ctx, "trees/tree_9.json")
	assert.ErrorIs(t, err, ErrNotFound)

	l := New(src)
	_, err = l.LoadDistrict(ctx, 1)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.False(t, IsAbsent(err))

	// a 500 on tree_3 stops the probe at 2
	n, err := l.ProbeMaxIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type failingClient struct{}

func (failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestHTTPSource_NetworkError(t *testing.T) {
	src, err := NewHTTPSource("http://example.invalid/", failingClient{})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), "blocks.json")
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "GET", te.Op)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewSource(t *testing.T) {
	s, err := NewSource("https://example.com/data", nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, s)

	s, err = NewSource("/srv/data", nil)
	require.NoError(t, err)
	assert.IsType(t, &DirSource{}, s)

	_, err = NewHTTPSource("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestDirSource_PathStaysInRoot(t *testing.T) {
	s := NewDirSource("/srv/data")
	assert.Equal(t, filepath.FromSlash("/srv/data/etc/passwd"), s.Path("../../etc/passwd"))
}
