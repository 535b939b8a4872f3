package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loomline/loomline/internal/graph"
	"github.com/loomline/loomline/internal/observability"
)

// LoadGraph reads the whole persisted graph back into a snapshot. A file
// that has never been saved to yields an empty snapshot with the default
// viewport (scale 1, offset 0,0). Edges come back exactly as stored —
// dangling references, if the caller ever managed to persist any, are
// not filtered here.
func (s *Session) LoadGraph(ctx context.Context) (*graph.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrNoFile
	}
	defer func(start time.Time) {
		observability.LoadDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	snap := graph.NewSnapshot()

	if err := s.loadGraphRow(ctx, snap); err != nil {
		return nil, fmt.Errorf("storage: read graph row of %q: %w", s.path, err)
	}

	nodeRows, err := readNodeRows(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("storage: read nodes from %q: %w", s.path, err)
	}
	snap.Nodes = make([]graph.Node, 0, len(nodeRows))
	for _, r := range nodeRows {
		snap.Nodes = append(snap.Nodes, graph.Node{
			ID:             DecodeKey(r.key),
			X:              r.x,
			Y:              r.y,
			Label:          r.label,
			SecondaryLabel: r.secondaryLabel,
			Color:          r.color,
			Radius:         r.radius,
			Category:       r.category.String,
			Layers:         splitLayers(r.layers),
			CreatedAt:      r.createdAt,
			ModifiedAt:     r.modifiedAt,
		})
	}

	edgeRows, err := readEdgeRows(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("storage: read edges from %q: %w", s.path, err)
	}
	snap.Edges = make([]graph.Edge, 0, len(edgeRows))
	for _, r := range edgeRows {
		snap.Edges = append(snap.Edges, graph.Edge{
			ID:         DecodeKey(r.key),
			FromID:     DecodeKey(r.fromKey),
			ToID:       DecodeKey(r.toKey),
			Weight:     r.weight,
			Category:   r.category.String,
			CreatedAt:  r.createdAt,
			ModifiedAt: r.modifiedAt,
		})
	}

	return snap, nil
}

func (s *Session) loadGraphRow(ctx context.Context, snap *graph.Snapshot) error {
	const q = `SELECT name, description, scale, offset_x, offset_y, metadata
		FROM graphs WHERE key = ?`

	var meta string
	err := s.db.QueryRowContext(ctx, q, graphKey[:]).Scan(
		&snap.Meta.Name, &snap.Meta.Description,
		&snap.Scale, &snap.OffsetX, &snap.OffsetY, &meta,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh file: keep NewSnapshot defaults.
		return nil
	}
	if err != nil {
		return err
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &snap.Meta.Extra); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return nil
}

// splitLayers reverses the layerSeparator join: split, trim, drop empties.
func splitLayers(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, layerSeparator)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
