package testsupport

import (
	"context"
	"testing"

	"deckcast/internal/config"
	"deckcast/internal/history"
	"deckcast/internal/task"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordEntry inserts a history entry for tests using the provided store.
func RecordEntry(t testing.TB, store *history.Store, taskID, fileID, filename string) *history.Entry {
	t.Helper()

	entry, err := store.RecordSubmission(context.Background(), history.Entry{
		TaskID:     taskID,
		FileID:     fileID,
		Filename:   filename,
		SourceType: task.SourcePDF,
		TaskType:   task.TypeBoth,
	})
	if err != nil {
		t.Fatalf("store.RecordSubmission: %v", err)
	}
	return entry
}
