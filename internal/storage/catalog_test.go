package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomline/loomline/internal/graph"
)

func TestListGraphs(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, filepath.Join(dir, "alpha"+FileExt))
	require.NoError(t, err)
	n1 := *graph.NewNode("", "a", 0, 0)
	n2 := *graph.NewNode("", "b", 1, 1)
	require.NoError(t, s.SaveGraph(ctx, &graph.Snapshot{
		Nodes: []graph.Node{n1, n2},
		Edges: []graph.Edge{*graph.NewEdge("", n1.ID, n2.ID)},
		Scale: 1,
		Meta:  graph.Meta{Name: "Alpha Diagram"},
	}))

	require.NoError(t, s.SwitchFile(ctx, filepath.Join(dir, "beta"+FileExt)))
	require.NoError(t, s.SaveGraph(ctx, &graph.Snapshot{
		Nodes: []graph.Node{*graph.NewNode("", "solo", 0, 0)},
		Scale: 1,
		Meta:  graph.Meta{Name: "Beta Diagram"},
	}))
	require.NoError(t, s.Close())

	// A file with the right extension but no SQLite inside is skipped,
	// not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt"+FileExt), []byte("not a database"), 0o644))
	// Files without the extension are ignored entirely.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	infos, err := ListGraphs(ctx, dir)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := make(map[string]GraphInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	alpha := byID["alpha"]
	assert.Equal(t, "Alpha Diagram", alpha.Name)
	assert.Equal(t, 2, alpha.NodeCount)
	assert.Equal(t, 1, alpha.EdgeCount)
	assert.False(t, alpha.CreatedAt.IsZero())
	assert.False(t, alpha.ModifiedAt.IsZero())

	beta := byID["beta"]
	assert.Equal(t, "Beta Diagram", beta.Name)
	assert.Equal(t, 1, beta.NodeCount)
	assert.Equal(t, 0, beta.EdgeCount)
}

func TestListGraphsMissingDir(t *testing.T) {
	_, err := ListGraphs(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestListGraphsEmptyDir(t *testing.T) {
	infos, err := ListGraphs(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, infos)
}
