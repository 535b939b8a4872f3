package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/loomline/loomline/internal/observability"
)

// ErrNoFile is returned by Save/Load when the session has no open file
// (never opened, or closed).
var ErrNoFile = errors.New("storage: no graph file open")

// sessionPragmas are applied to every freshly opened connection.
// foreign_keys=ON makes SQLite enforce the edge endpoint declarations.
var sessionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA temp_store=MEMORY",
}

// Session owns at most one open SQLite connection to one graph file.
// One file holds exactly one graph, so switching files is switching
// graphs: SwitchFile fully closes the previous connection before the new
// path is opened, which is what keeps state from one file out of the
// next. All methods are safe for concurrent use, but calls are serialised
// — the engine schedules no background work of its own.
type Session struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open creates a Session bound to the graph file at path. The parent
// directory is created if missing and the schema is bootstrapped before
// Open returns.
func Open(ctx context.Context, path string) (*Session, error) {
	s := &Session{}
	if err := s.openLocked(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}

// SwitchFile closes the current graph file (if any) and opens the one at
// path. The close completes before the new connection exists; on failure
// to open the new path the session is left closed, never half-switched.
func (s *Session) SwitchFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("storage: close %q before switch: %w", s.path, err)
	}
	if err := s.openLocked(ctx, path); err != nil {
		return err
	}
	observability.FileSwitchesTotal.Inc()
	return nil
}

// Close releases the open connection. Safe to call on an already-closed
// session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("storage: close %q: %w", s.path, err)
	}
	return nil
}

// Path returns the path of the currently open graph file, or "" when the
// session is closed.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// openLocked opens path and leaves the session bound to it. Caller holds
// s.mu (or exclusively owns s). Any partially-opened connection is torn
// down on error.
func (s *Session) openLocked(ctx context.Context, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: create directory for %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("storage: open %q: %w", path, err)
	}

	// Only one writer at a time for SQLite.
	db.SetMaxOpenConns(1)

	for _, p := range sessionPragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("storage: set pragma %q on %q: %w", p, path, err)
		}
	}

	if err := ensureSchema(ctx, db, path); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.path = path
	slog.Info("graph file open", "path", path)
	return nil
}

func (s *Session) closeLocked() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.path = ""
	return err
}
