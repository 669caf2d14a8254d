package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"deckcast/internal/task"
)

// Entry is one submission tracked in the history database.
type Entry struct {
	ID           int64
	TaskID       string
	FileID       string
	Filename     string
	SourceType   task.SourceType
	TaskType     task.TaskType
	Status       task.Status
	Progress     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const entryColumns = "id, task_id, file_id, filename, source_type, task_type, status, progress, error_message, created_at, updated_at"

// RecordSubmission inserts an entry for a freshly uploaded document. The
// task identifier may be synthetic; AdoptTaskID rewrites it once the backend
// reports the real one.
func (s *Store) RecordSubmission(ctx context.Context, entry Entry) (*Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if strings.TrimSpace(entry.TaskID) == "" {
		return nil, errors.New("task id is required")
	}

	status := entry.Status
	if status == "" {
		status = task.StatusUploading
	}
	timestamp := nowStamp()

	if _, err := s.exec(
		ctx,
		`INSERT INTO history_entries (
            task_id, file_id, filename, source_type, task_type,
            status, progress, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TaskID,
		nullableString(entry.FileID),
		nullableString(entry.Filename),
		nullableString(string(entry.SourceType)),
		nullableString(string(entry.TaskType)),
		string(status),
		entry.Progress,
		nullableString(entry.ErrorMessage),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return s.Get(ctx, entry.TaskID)
}

// UpdateStatus stamps the latest observed lifecycle state onto the entry for
// taskID. Unknown identifiers are a no-op so polling can run ahead of what
// was recorded locally.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, status task.Status, progress int, errorMessage string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.exec(
		ctx,
		`UPDATE history_entries
         SET status = ?, progress = ?, error_message = ?, updated_at = ?
         WHERE task_id = ?`,
		string(status),
		progress,
		nullableString(errorMessage),
		nowStamp(),
		taskID,
	); err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	return nil
}

// AdoptTaskID rewrites the task identifier recorded for a file once the
// backend reports the real one. Rewriting to the value already stored is a
// harmless no-op.
func (s *Store) AdoptTaskID(ctx context.Context, fileID, taskID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(fileID) == "" || strings.TrimSpace(taskID) == "" {
		return errors.New("file id and task id are required")
	}
	if _, err := s.exec(
		ctx,
		`UPDATE history_entries SET task_id = ?, updated_at = ? WHERE file_id = ? AND task_id != ?`,
		taskID,
		nowStamp(),
		fileID,
		taskID,
	); err != nil {
		return fmt.Errorf("adopt task id: %w", err)
	}
	return nil
}

// Get fetches an entry by task identifier. Missing entries yield (nil, nil).
func (s *Store) Get(ctx context.Context, taskID string) (*Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	row := s.queryRow(ctx, `SELECT `+entryColumns+` FROM history_entries WHERE task_id = ?`, taskID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns entries newest first. A limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `SELECT ` + entryColumns + ` FROM history_entries ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListByStatus returns entries matching any of the provided statuses, oldest
// first so refresh sweeps update rows in submission order.
func (s *Store) ListByStatus(ctx context.Context, statuses ...task.Status) ([]*Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}

	query := `SELECT ` + entryColumns + ` FROM history_entries WHERE status IN (` + placeholders + `) ORDER BY created_at`
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries by status: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes an entry by task identifier.
func (s *Store) Remove(ctx context.Context, taskID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res, err := s.exec(ctx, `DELETE FROM history_entries WHERE task_id = ?`, taskID)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all entries along with the listing stamp.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res, err := s.exec(ctx, `DELETE FROM history_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	if err := s.InvalidateListing(ctx); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		taskID       string
		fileID       sql.NullString
		filename     sql.NullString
		sourceType   sql.NullString
		taskType     sql.NullString
		statusStr    string
		progress     sql.NullInt64
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&taskID,
		&fileID,
		&filename,
		&sourceType,
		&taskType,
		&statusStr,
		&progress,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:           id,
		TaskID:       taskID,
		FileID:       fileID.String,
		Filename:     filename.String,
		SourceType:   task.SourceType(sourceType.String),
		TaskType:     task.TaskType(taskType.String),
		Status:       task.Status(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if progress.Valid {
		entry.Progress = int(progress.Int64)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// nowStamp formats the current instant the way rows store it.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// parseTimeString accepts the RFC3339 stamps deckcast writes plus the plain
// datetime form sqlite produces for rows touched by hand.
func parseTimeString(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
