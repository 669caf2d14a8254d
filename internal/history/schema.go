package history

import (
	"context"
	"errors"
	"fmt"
)

const schemaSQL = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE history_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL UNIQUE,
    file_id TEXT,
    filename TEXT,
    source_type TEXT,
    task_type TEXT,
    status TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX idx_history_entries_file_id ON history_entries(file_id);
CREATE INDEX idx_history_entries_created_at ON history_entries(created_at);

CREATE TABLE listing_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    refreshed_at TEXT
);
`

// schemaVersion stamps the layout above. There is no migration path; a
// mismatched database must be deleted and rebuilt.
const schemaVersion = 1

// ErrSchemaMismatch reports a history database written by an incompatible
// deckcast build.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// ensureSchema creates the tables on first open and verifies the stamped
// version on every later one.
func (s *Store) ensureSchema(ctx context.Context) error {
	var present int
	probe := "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'"
	if err := s.db.QueryRowContext(ctx, probe).Scan(&present); err != nil {
		return fmt.Errorf("probe schema: %w", err)
	}
	if present == 0 {
		return s.bootstrapSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read stamped version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database reports version %d, this build needs %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) bootstrapSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("open schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}
	return tx.Commit()
}
