package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"deckcast/internal/config"
)

// Store manages submission history backed by SQLite. A disabled history
// section produces a store without a database; every method degrades to a
// no-op so callers never branch on the setting.
type Store struct {
	db   *sql.DB
	path string
}

// Writes briefly retry when another deckcast process holds the write lock.
const (
	busyMaxAttempts = 5
	busyBaseDelay   = 10 * time.Millisecond
	busyDelayCap    = 200 * time.Millisecond
)

// Open initializes or connects to the history database at the configured
// path. When history is disabled, Open succeeds with a disabled store.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil || !cfg.History.Enabled {
		return &Store{}, nil
	}

	dbPath := strings.TrimSpace(cfg.History.Path)
	if dbPath == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// WAL lets the status listing read while a poll tick writes.
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite (%s): %w", stmt, err)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Enabled reports whether the store is backed by a database.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// Path returns the database file location, or "" for a disabled store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// exec runs a write statement, backing off and retrying while SQLite reports
// lock contention. The final attempt's error is returned as-is.
func (s *Store) exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	ctx = fallbackContext(ctx)
	delay := busyBaseDelay
	for attempt := 1; ; attempt++ {
		res, err := s.db.ExecContext(ctx, stmt, args...)
		if err == nil || attempt >= busyMaxAttempts || !lockContention(err) {
			return res, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if delay *= 2; delay > busyDelayCap {
			delay = busyDelayCap
		}
	}
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(fallbackContext(ctx), query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(fallbackContext(ctx), query, args...)
}

func fallbackContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// lockContention matches the SQLITE_BUSY family however the driver surfaces
// it: a coded error or a bare message.
func lockContention(err error) bool {
	const sqliteBusy = 5
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code() == sqliteBusy {
		return true
	}
	for _, marker := range []string{"SQLITE_BUSY", "database is locked"} {
		if strings.Contains(err.Error(), marker) {
			return true
		}
	}
	return false
}
