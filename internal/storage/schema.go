package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// schemaSQL creates the three tables and their indexes. Keys are 16-byte
// BLOBs produced by EncodeID. Edge endpoints are declared against
// nodes(key); with foreign_keys=ON SQLite enforces the declaration, so a
// save containing a dangling edge fails as a constraint violation and
// rolls back — this package adds no further referential checks of its own.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS graphs (
    key         BLOB PRIMARY KEY CHECK (length(key) = 16),
    name        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    scale       REAL NOT NULL DEFAULT 1.0,
    offset_x    REAL NOT NULL DEFAULT 0,
    offset_y    REAL NOT NULL DEFAULT 0,
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  DATETIME NOT NULL,
    modified_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
    key             BLOB PRIMARY KEY CHECK (length(key) = 16),
    x               REAL NOT NULL,
    y               REAL NOT NULL,
    label           TEXT NOT NULL DEFAULT '',
    secondary_label TEXT NOT NULL DEFAULT '',
    color           TEXT NOT NULL DEFAULT '',
    radius          REAL NOT NULL DEFAULT 0,
    category        TEXT,
    layers          TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL,
    modified_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_created ON nodes(created_at);

CREATE TABLE IF NOT EXISTS edges (
    key         BLOB PRIMARY KEY CHECK (length(key) = 16),
    from_key    BLOB NOT NULL REFERENCES nodes(key),
    to_key      BLOB NOT NULL REFERENCES nodes(key),
    weight      REAL NOT NULL DEFAULT 1.0,
    category    TEXT,
    created_at  DATETIME NOT NULL,
    modified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_created   ON edges(created_at);
CREATE INDEX IF NOT EXISTS idx_edges_endpoints ON edges(from_key, to_key);
`

// legacyColumns are node-table columns from the old multi-graph-per-file
// layout. Their presence means the file predates the one-graph-per-file
// design and cannot be read by the current queries.
var legacyColumns = map[string]bool{
	"graph_key": true,
	"graph_id":  true,
}

// ensureSchema creates the tables and indexes if absent. Idempotent; runs
// on every open.
//
// If the nodes table carries a legacy per-row graph foreign key, all
// three tables are dropped and recreated instead of migrated. Data in the
// legacy layout is lost — the warning below is the user-visible record of
// that, so it must never be downgraded or removed.
func ensureSchema(ctx context.Context, db *sql.DB, path string) error {
	legacy, err := hasLegacyLayout(ctx, db)
	if err != nil {
		return fmt.Errorf("storage: inspect schema of %q: %w", path, err)
	}
	if legacy {
		slog.Warn("legacy multi-graph schema detected; dropping and recreating tables, existing data in this file is discarded",
			"path", path,
		)
		const dropSQL = `
			DROP TABLE IF EXISTS edges;
			DROP TABLE IF EXISTS nodes;
			DROP TABLE IF EXISTS graphs;
		`
		if _, err := db.ExecContext(ctx, dropSQL); err != nil {
			return fmt.Errorf("storage: drop legacy tables in %q: %w", path, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("storage: create schema in %q: %w", path, err)
	}
	return nil
}

// hasLegacyLayout inspects the nodes table's columns for the legacy
// graph foreign key. A missing nodes table is not legacy — it just means
// a fresh file.
func hasLegacyLayout(ctx context.Context, db *sql.DB) (bool, error) {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(nodes)`)
	if err != nil {
		return false, fmt.Errorf("table_info(nodes): %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scan table_info row: %w", err)
		}
		if legacyColumns[name] {
			return true, nil
		}
	}
	return false, rows.Err()
}
