package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomline/loomline/internal/graph"
	"github.com/loomline/loomline/internal/storage"
)

func newTestServer(t *testing.T, saveRate float64, saveBurst int) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()

	session, err := storage.Open(context.Background(), filepath.Join(dir, "main"+storage.FileExt))
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	srv := NewServer(session, dir, saveRate, saveBurst)
	srv.RegisterRoutes()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, dir
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, 100, 100)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveAndLoadGraph(t *testing.T) {
	ts, _ := newTestServer(t, 100, 100)

	a := *graph.NewNode("", "start", 10, 10)
	b := *graph.NewNode("", "end", 90, 90)
	snap := graph.Snapshot{
		Nodes: []graph.Node{a, b},
		Edges: []graph.Edge{*graph.NewEdge("", a.ID, b.ID)},
		Scale: 1.5,
		Meta:  graph.Meta{Name: "api test"},
	}

	resp := postJSON(t, ts.URL+"/api/graph", snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(ts.URL + "/api/graph")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var out struct {
		Data graph.Snapshot `json:"data"`
	}
	decodeBody(t, getResp, &out)
	assert.Len(t, out.Data.Nodes, 2)
	assert.Len(t, out.Data.Edges, 1)
	assert.Equal(t, 1.5, out.Data.Scale)
	assert.Equal(t, "api test", out.Data.Meta.Name)
}

func TestSaveRejectsDanglingEdges(t *testing.T) {
	ts, _ := newTestServer(t, 100, 100)

	a := *graph.NewNode("", "lonely", 0, 0)
	snap := graph.Snapshot{
		Nodes: []graph.Node{a},
		Edges: []graph.Edge{*graph.NewEdge("", a.ID, "missing-node")},
	}

	resp := postJSON(t, ts.URL+"/api/graph", snap)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "DANGLING_EDGES", body["code"])
}

func TestSwitchFileAndCatalog(t *testing.T) {
	ts, _ := newTestServer(t, 100, 100)

	// Save something into the initial file.
	first := graph.Snapshot{Nodes: []graph.Node{*graph.NewNode("", "one", 0, 0)}}
	resp := postJSON(t, ts.URL+"/api/graph", first)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Switch to a new file (relative name, extension added server-side).
	resp = postJSON(t, ts.URL+"/api/session/file", map[string]string{"path": "other"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var info struct {
		Path string `json:"path"`
	}
	getResp, err := http.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	decodeBody(t, getResp, &info)
	assert.Equal(t, "other"+storage.FileExt, filepath.Base(info.Path))

	// The new file is empty — nothing bled over from the first one.
	getResp, err = http.Get(ts.URL + "/api/graph")
	require.NoError(t, err)
	var out struct {
		Data graph.Snapshot `json:"data"`
	}
	decodeBody(t, getResp, &out)
	assert.Empty(t, out.Data.Nodes)

	// Both files show up in the catalog.
	listResp, err := http.Get(ts.URL + "/api/graphs")
	require.NoError(t, err)
	var list struct {
		Data struct {
			Graphs []storage.GraphInfo `json:"graphs"`
		} `json:"data"`
	}
	decodeBody(t, listResp, &list)
	assert.Len(t, list.Data.Graphs, 2)
}

func TestSwitchFileRejectsTraversal(t *testing.T) {
	ts, _ := newTestServer(t, 100, 100)

	resp := postJSON(t, ts.URL+"/api/session/file", map[string]string{"path": "../escape"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, 1, 1)

	snap := graph.Snapshot{Nodes: []graph.Node{*graph.NewNode("", "n", 0, 0)}}

	resp := postJSON(t, ts.URL+"/api/graph", snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Burst of 1 is spent; the immediate retry is throttled.
	resp = postJSON(t, ts.URL+"/api/graph", snap)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
