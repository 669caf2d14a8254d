package taskstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"deckcast/internal/logging"
	"deckcast/internal/task"
)

// defaultWindow bounds how old a snapshot may be and still resume.
const defaultWindow = 24 * time.Hour

// Snapshot is the persisted form of a session: the full task plus the
// moment it was written. Writers always persist complete snapshots.
type Snapshot struct {
	Task    task.Task `json:"task"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists the session task to a single JSON file so a restarted
// client can resume an in-flight generation.
type Store struct {
	path   string
	window time.Duration
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a snapshot store at path. If path is empty the store is
// non-functional (saves become no-ops, loads report absent). A window of
// zero or less selects the 24 hour default.
func NewStore(path string, window time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Store{
		path:   path,
		window: window,
		logger: logging.NewComponentLogger(logger, "taskstate"),
	}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the task and the current time as a complete snapshot,
// atomically via a temp file and rename.
func (s *Store) Save(t task.Task) error {
	if s.path == "" {
		return nil
	}

	snap := Snapshot{Task: t, SavedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp snapshot: %w", err)
	}

	s.logger.Debug("persisted task snapshot",
		logging.String(logging.FieldTaskID, t.ID),
		logging.String(logging.FieldStatus, string(t.Status)))
	return nil
}

// Load reads the persisted task. It reports absent when no snapshot
// exists, when the snapshot cannot be parsed, or when it is older than
// the freshness window; unreadable and stale snapshots are purged so
// they are not offered again.
func (s *Store) Load() (task.Task, bool) {
	if s.path == "" {
		return task.Task{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read task snapshot", logging.Error(err))
		}
		return task.Task{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("discarding unreadable task snapshot", logging.Error(err))
		s.removeLocked()
		return task.Task{}, false
	}

	if snap.SavedAt.IsZero() || time.Since(snap.SavedAt) > s.window {
		s.logger.Debug("discarding expired task snapshot",
			logging.String("saved_at", snap.SavedAt.Format(time.RFC3339)),
			logging.Duration("window", s.window))
		s.removeLocked()
		return task.Task{}, false
	}

	return snap.Task, true
}

// Clear removes every file the store owns. Missing files are not an error.
func (s *Store) Clear() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.path, s.path + ".tmp"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove snapshot file: %w", err)
		}
	}
	return nil
}

func (s *Store) removeLocked() {
	for _, p := range []string{s.path, s.path + ".tmp"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove snapshot file",
				logging.String("path", p),
				logging.Error(err))
		}
	}
}
