package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/loomline/loomline/internal/graph"
	"github.com/loomline/loomline/internal/observability"
)

// layerSeparator joins a node's ordered layer tags into the single
// layers column. Tags are trimmed on load, so the separator never leaks
// back into tag text.
const layerSeparator = ","

// nodeRow and edgeRow mirror the table columns exactly. The diff below
// compares rows, not graph types, so "observable field" and "column"
// stay the same thing.
type nodeRow struct {
	key            Key
	x, y           float64
	label          string
	secondaryLabel string
	color          string
	radius         float64
	category       sql.NullString
	layers         string
	createdAt      time.Time
	modifiedAt     time.Time
}

type edgeRow struct {
	key        Key
	fromKey    Key
	toKey      Key
	weight     float64
	category   sql.NullString
	createdAt  time.Time
	modifiedAt time.Time
}

func nodeRowFrom(n *graph.Node) nodeRow {
	return nodeRow{
		key:            EncodeID(n.ID),
		x:              n.X,
		y:              n.Y,
		label:          n.Label,
		secondaryLabel: n.SecondaryLabel,
		color:          n.Color,
		radius:         n.Radius,
		category:       nullIfEmpty(n.Category),
		layers:         strings.Join(n.Layers, layerSeparator),
	}
}

func edgeRowFrom(e *graph.Edge) edgeRow {
	return edgeRow{
		key:      EncodeID(e.ID),
		fromKey:  EncodeID(e.FromID),
		toKey:    EncodeID(e.ToID),
		weight:   e.Weight,
		category: nullIfEmpty(e.Category),
	}
}

// sameNodeFields compares every observable node column. Floats are
// compared exactly: REAL columns hold IEEE doubles and round-trip
// losslessly, so fuzzy comparison would only mask real changes.
func sameNodeFields(a, b nodeRow) bool {
	return a.x == b.x &&
		a.y == b.y &&
		a.label == b.label &&
		a.secondaryLabel == b.secondaryLabel &&
		a.color == b.color &&
		a.radius == b.radius &&
		a.category == b.category &&
		a.layers == b.layers
}

func sameEdgeFields(a, b edgeRow) bool {
	return a.fromKey == b.fromKey &&
		a.toKey == b.toKey &&
		a.weight == b.weight &&
		a.category == b.category
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// SaveGraph makes the file's contents match snap by applying the minimal
// set of row changes inside one transaction.
//
// The naive alternative — truncate everything and re-insert — would reset
// every created_at and make every row look freshly modified on every
// save. Instead, existing rows are read up front and each incoming node
// and edge is diffed field-by-field against its persisted row: new keys
// are inserted with created_at = modified_at = now, changed rows are
// updated (created_at untouched, modified_at = now), and identical rows
// get no write at all, so an unchanged row's modified_at survives any
// number of saves. Keys absent from snap are deleted. On any failure the
// transaction rolls back and the file is exactly as it was before the
// call.
func (s *Session) SaveGraph(ctx context.Context, snap *graph.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrNoFile
	}
	defer func(start time.Time) {
		observability.SaveDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	existingNodes, err := readNodeRows(ctx, s.db)
	if err != nil {
		return fmt.Errorf("storage: read nodes from %q: %w", s.path, err)
	}
	existingEdges, err := readEdgeRows(ctx, s.db)
	if err != nil {
		return fmt.Errorf("storage: read edges from %q: %w", s.path, err)
	}
	nodeByKey := make(map[Key]nodeRow, len(existingNodes))
	for _, r := range existingNodes {
		nodeByKey[r.key] = r
	}
	edgeByKey := make(map[Key]edgeRow, len(existingEdges))
	for _, r := range existingEdges {
		edgeByKey[r.key] = r
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin save of %q: %w", s.path, err)
	}
	defer tx.Rollback()

	if err := upsertGraphRow(ctx, tx, snap, now); err != nil {
		return fmt.Errorf("storage: write graph row of %q: %w", s.path, err)
	}

	writes, err := syncNodes(ctx, tx, snap.Nodes, nodeByKey, now)
	if err != nil {
		return fmt.Errorf("storage: sync nodes of %q: %w", s.path, err)
	}
	edgeWrites, err := syncEdges(ctx, tx, snap.Edges, edgeByKey, now)
	if err != nil {
		return fmt.Errorf("storage: sync edges of %q: %w", s.path, err)
	}
	writes += edgeWrites

	// Absent nodes go last: their incident edges were deleted by
	// syncEdges, so the declared references no longer block the delete.
	// An edge the caller kept alive against a node it dropped trips the
	// foreign key here and rolls the whole save back.
	if err := deleteAbsentNodes(ctx, tx, snap.Nodes, nodeByKey); err != nil {
		return fmt.Errorf("storage: delete nodes of %q: %w", s.path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit save of %q: %w", s.path, err)
	}
	if writes == 0 {
		observability.NoopSavesTotal.Inc()
	}
	return nil
}

// upsertGraphRow writes the singleton graphs row unconditionally. Unlike
// node and edge rows it is not diffed — the viewport changes on nearly
// every save anyway — but created_at is still preserved across the
// conflict.
func upsertGraphRow(ctx context.Context, tx *sql.Tx, snap *graph.Snapshot, now time.Time) error {
	meta := "{}"
	if len(snap.Meta.Extra) > 0 {
		b, err := json.Marshal(snap.Meta.Extra)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}

	const q = `INSERT INTO graphs
		(key, name, description, scale, offset_x, offset_y, metadata, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			scale       = excluded.scale,
			offset_x    = excluded.offset_x,
			offset_y    = excluded.offset_y,
			metadata    = excluded.metadata,
			modified_at = excluded.modified_at`

	_, err := tx.ExecContext(ctx, q,
		graphKey[:], snap.Meta.Name, snap.Meta.Description,
		snap.Scale, snap.OffsetX, snap.OffsetY, meta, now, now,
	)
	return err
}

// syncNodes applies the node half of the diff and returns the number of
// rows written.
func syncNodes(ctx context.Context, tx *sql.Tx, nodes []graph.Node, existing map[Key]nodeRow, now time.Time) (int, error) {
	insert, err := tx.PrepareContext(ctx, `INSERT INTO nodes
		(key, x, y, label, secondary_label, color, radius, category, layers, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare node insert: %w", err)
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, `UPDATE nodes SET
		x = ?, y = ?, label = ?, secondary_label = ?, color = ?, radius = ?,
		category = ?, layers = ?, modified_at = ?
		WHERE key = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare node update: %w", err)
	}
	defer update.Close()

	writes := 0
	for i := range nodes {
		want := nodeRowFrom(&nodes[i])
		have, ok := existing[want.key]
		switch {
		case !ok:
			if _, err := insert.ExecContext(ctx,
				want.key[:], want.x, want.y, want.label, want.secondaryLabel,
				want.color, want.radius, want.category, want.layers, now, now,
			); err != nil {
				return writes, fmt.Errorf("insert node %q: %w", nodes[i].ID, err)
			}
			observability.RowsWrittenTotal.WithLabelValues("nodes", "insert").Inc()
			writes++
		case !sameNodeFields(want, have):
			if _, err := update.ExecContext(ctx,
				want.x, want.y, want.label, want.secondaryLabel,
				want.color, want.radius, want.category, want.layers, now,
				want.key[:],
			); err != nil {
				return writes, fmt.Errorf("update node %q: %w", nodes[i].ID, err)
			}
			observability.RowsWrittenTotal.WithLabelValues("nodes", "update").Inc()
			writes++
		}
		// Identical row: no write, modified_at stays put.
	}
	return writes, nil
}

// syncEdges applies the edge half of the diff: absent edges are deleted
// first so node deletion later in the transaction is not blocked by
// references that are going away in the same save.
func syncEdges(ctx context.Context, tx *sql.Tx, edges []graph.Edge, existing map[Key]edgeRow, now time.Time) (int, error) {
	incoming := make(map[Key]bool, len(edges))
	for i := range edges {
		incoming[EncodeID(edges[i].ID)] = true
	}

	del, err := tx.PrepareContext(ctx, `DELETE FROM edges WHERE key = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare edge delete: %w", err)
	}
	defer del.Close()
	writes := 0
	for key := range existing {
		if incoming[key] {
			continue
		}
		if _, err := del.ExecContext(ctx, key[:]); err != nil {
			return writes, fmt.Errorf("delete edge %q: %w", DecodeKey(key), err)
		}
		observability.RowsWrittenTotal.WithLabelValues("edges", "delete").Inc()
		writes++
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO edges
		(key, from_key, to_key, weight, category, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return writes, fmt.Errorf("prepare edge insert: %w", err)
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, `UPDATE edges SET
		from_key = ?, to_key = ?, weight = ?, category = ?, modified_at = ?
		WHERE key = ?`)
	if err != nil {
		return writes, fmt.Errorf("prepare edge update: %w", err)
	}
	defer update.Close()

	for i := range edges {
		want := edgeRowFrom(&edges[i])
		have, ok := existing[want.key]
		switch {
		case !ok:
			if _, err := insert.ExecContext(ctx,
				want.key[:], want.fromKey[:], want.toKey[:],
				want.weight, want.category, now, now,
			); err != nil {
				return writes, fmt.Errorf("insert edge %q: %w", edges[i].ID, err)
			}
			observability.RowsWrittenTotal.WithLabelValues("edges", "insert").Inc()
			writes++
		case !sameEdgeFields(want, have):
			if _, err := update.ExecContext(ctx,
				want.fromKey[:], want.toKey[:], want.weight, want.category, now,
				want.key[:],
			); err != nil {
				return writes, fmt.Errorf("update edge %q: %w", edges[i].ID, err)
			}
			observability.RowsWrittenTotal.WithLabelValues("edges", "update").Inc()
			writes++
		}
	}
	return writes, nil
}

func deleteAbsentNodes(ctx context.Context, tx *sql.Tx, nodes []graph.Node, existing map[Key]nodeRow) error {
	incoming := make(map[Key]bool, len(nodes))
	for i := range nodes {
		incoming[EncodeID(nodes[i].ID)] = true
	}

	del, err := tx.PrepareContext(ctx, `DELETE FROM nodes WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("prepare node delete: %w", err)
	}
	defer del.Close()

	for key := range existing {
		if incoming[key] {
			continue
		}
		if _, err := del.ExecContext(ctx, key[:]); err != nil {
			return fmt.Errorf("delete node %q: %w", DecodeKey(key), err)
		}
		observability.RowsWrittenTotal.WithLabelValues("nodes", "delete").Inc()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row readers (shared with the loader)
// ---------------------------------------------------------------------------

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readNodeRows(ctx context.Context, q querier) ([]nodeRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, x, y, label, secondary_label,
		color, radius, category, layers, created_at, modified_at
		FROM nodes ORDER BY created_at, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []nodeRow
	for rows.Next() {
		var r nodeRow
		var key []byte
		if err := rows.Scan(&key, &r.x, &r.y, &r.label, &r.secondaryLabel,
			&r.color, &r.radius, &r.category, &r.layers, &r.createdAt, &r.modifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		r.key = keyOf(key)
		result = append(result, r)
	}
	return result, rows.Err()
}

func readEdgeRows(ctx context.Context, q querier) ([]edgeRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, from_key, to_key, weight,
		category, created_at, modified_at
		FROM edges ORDER BY created_at, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []edgeRow
	for rows.Next() {
		var r edgeRow
		var key, from, to []byte
		if err := rows.Scan(&key, &from, &to, &r.weight,
			&r.category, &r.createdAt, &r.modifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		r.key = keyOf(key)
		r.fromKey = keyOf(from)
		r.toKey = keyOf(to)
		result = append(result, r)
	}
	return result, rows.Err()
}
