package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileExt is the extension graph files are created with and the one
// ListGraphs scans for.
const FileExt = ".db"

// GraphInfo is a catalog entry for one graph file, as shown in
// file-picker UIs.
type GraphInfo struct {
	ID         string    `json:"id"` // file name without extension
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListGraphs scans dir for graph files and summarises each one. Files
// that cannot be opened or read are skipped with a warning — one corrupt
// file should not hide the rest of the catalog. Each file is opened
// read-only on its own short-lived connection; the active Session's
// connection is never touched.
func ListGraphs(ctx context.Context, dir string) ([]GraphInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list graphs in %q: %w", dir, err)
	}

	var infos []GraphInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := describeGraphFile(ctx, path)
		if err != nil {
			slog.Warn("skipping unreadable graph file", "path", path, "error", err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func describeGraphFile(ctx context.Context, path string) (GraphInfo, error) {
	info := GraphInfo{
		ID:   strings.TrimSuffix(filepath.Base(path), FileExt),
		Path: path,
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return info, fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	err = db.QueryRowContext(ctx,
		`SELECT name, created_at, modified_at FROM graphs WHERE key = ?`, graphKey[:],
	).Scan(&info.Name, &info.CreatedAt, &info.ModifiedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("read graph row: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&info.NodeCount); err != nil {
		return info, fmt.Errorf("count nodes: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&info.EdgeCount); err != nil {
		return info, fmt.Errorf("count edges: %w", err)
	}
	return info, nil
}
