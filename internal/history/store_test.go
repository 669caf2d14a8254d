package history_test

import (
	"context"
	"testing"
	"time"

	"deckcast/internal/history"
	"deckcast/internal/task"
	"deckcast/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	entry, err := store.RecordSubmission(ctx, history.Entry{
		TaskID:     "t-100",
		FileID:     "f-100",
		Filename:   "quarterly.pdf",
		SourceType: task.SourcePDF,
		TaskType:   task.TypeBoth,
	})
	if err != nil {
		t.Fatalf("RecordSubmission failed: %v", err)
	}
	if entry == nil || entry.ID == 0 {
		t.Fatalf("expected entry with assigned ID, got %#v", entry)
	}
	if entry.Status != task.StatusUploading {
		t.Fatalf("expected default status uploading, got %s", entry.Status)
	}
	if entry.CreatedAt.IsZero() || entry.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set: %#v", entry)
	}

	fetched, err := store.Get(ctx, "t-100")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.Filename != "quarterly.pdf" || fetched.FileID != "f-100" {
		t.Fatalf("unexpected fetched entry: %#v", fetched)
	}
}

func TestRecordSubmissionRequiresTaskID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	if _, err := store.RecordSubmission(context.Background(), history.Entry{Filename: "deck.pdf"}); err == nil {
		t.Fatal("expected error when task id missing")
	}
}

func TestUpdateStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	testsupport.RecordEntry(t, store, "t-200", "f-200", "lecture.pdf")

	if err := store.UpdateStatus(ctx, "t-200", task.StatusProcessing, 42, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	entry, err := store.Get(ctx, "t-200")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != task.StatusProcessing || entry.Progress != 42 {
		t.Fatalf("unexpected entry after update: %#v", entry)
	}

	if err := store.UpdateStatus(ctx, "t-200", task.StatusError, 42, "render crashed"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	entry, err = store.Get(ctx, "t-200")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != task.StatusError || entry.ErrorMessage != "render crashed" {
		t.Fatalf("unexpected entry after failure update: %#v", entry)
	}

	// Identifiers polling discovered but submit never recorded are skipped.
	if err := store.UpdateStatus(ctx, "t-unknown", task.StatusCompleted, 100, ""); err != nil {
		t.Fatalf("UpdateStatus for unknown id failed: %v", err)
	}
}

func TestAdoptTaskID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	recorded := testsupport.RecordEntry(t, store, "local-abc", "f-300", "pitch.pptx")

	if err := store.AdoptTaskID(ctx, "f-300", "t-300"); err != nil {
		t.Fatalf("AdoptTaskID failed: %v", err)
	}

	stale, err := store.Get(ctx, "local-abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stale != nil {
		t.Fatalf("expected synthetic id to be gone, got %#v", stale)
	}

	adopted, err := store.Get(ctx, "t-300")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if adopted == nil || adopted.ID != recorded.ID {
		t.Fatalf("expected same row under real id, got %#v", adopted)
	}

	// Adopting the value already stored is a no-op.
	if err := store.AdoptTaskID(ctx, "f-300", "t-300"); err != nil {
		t.Fatalf("AdoptTaskID repeat failed: %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	testsupport.RecordEntry(t, store, "t-1", "f-1", "first.pdf")
	testsupport.RecordEntry(t, store, "t-2", "f-2", "second.pdf")
	testsupport.RecordEntry(t, store, "t-3", "f-3", "third.pdf")

	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TaskID != "t-3" || entries[1].TaskID != "t-2" {
		t.Fatalf("unexpected order: %s, %s", entries[0].TaskID, entries[1].TaskID)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
}

func TestListByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	testsupport.RecordEntry(t, store, "t-10", "f-10", "a.pdf")
	testsupport.RecordEntry(t, store, "t-11", "f-11", "b.pdf")
	if err := store.UpdateStatus(ctx, "t-11", task.StatusCompleted, 100, ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	active, err := store.ListByStatus(ctx, task.StatusUploading, task.StatusProcessing)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(active) != 1 || active[0].TaskID != "t-10" {
		t.Fatalf("unexpected active entries: %#v", active)
	}
}

func TestRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	testsupport.RecordEntry(t, store, "t-20", "f-20", "gone.pdf")

	removed, err := store.Remove(ctx, "t-20")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected entry to be removed")
	}

	removed, err = store.Remove(ctx, "t-20")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("expected second remove to report no rows")
	}
}

func TestClearRemovesEntriesAndStamp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	testsupport.RecordEntry(t, store, "t-30", "f-30", "a.pdf")
	testsupport.RecordEntry(t, store, "t-31", "f-31", "b.pdf")
	if err := store.MarkListingRefreshed(ctx); err != nil {
		t.Fatalf("MarkListingRefreshed failed: %v", err)
	}

	count, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 cleared entries, got %d", count)
	}

	fresh, err := store.ListingFresh(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ListingFresh failed: %v", err)
	}
	if fresh {
		t.Fatal("expected listing stamp to be cleared")
	}
}

func TestListingStampLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	fresh, err := store.ListingFresh(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ListingFresh failed: %v", err)
	}
	if fresh {
		t.Fatal("expected missing stamp to read stale")
	}

	if err := store.MarkListingRefreshed(ctx); err != nil {
		t.Fatalf("MarkListingRefreshed failed: %v", err)
	}
	fresh, err = store.ListingFresh(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ListingFresh failed: %v", err)
	}
	if !fresh {
		t.Fatal("expected stamp to be fresh within ttl")
	}

	fresh, err = store.ListingFresh(ctx, 0)
	if err != nil {
		t.Fatalf("ListingFresh failed: %v", err)
	}
	if fresh {
		t.Fatal("expected non-positive ttl to read stale")
	}

	if err := store.InvalidateListing(ctx); err != nil {
		t.Fatalf("InvalidateListing failed: %v", err)
	}
	fresh, err = store.ListingFresh(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ListingFresh failed: %v", err)
	}
	if fresh {
		t.Fatal("expected invalidated stamp to read stale")
	}
}

func TestDisabledStoreNoops(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())
	store := testsupport.MustOpenHistory(t, cfg)

	if store.Enabled() {
		t.Fatal("expected disabled store")
	}

	ctx := context.Background()
	entry, err := store.RecordSubmission(ctx, history.Entry{TaskID: "t-40"})
	if err != nil || entry != nil {
		t.Fatalf("expected silent no-op, got %#v, %v", entry, err)
	}
	entries, err := store.List(ctx, 0)
	if err != nil || entries != nil {
		t.Fatalf("expected empty listing, got %#v, %v", entries, err)
	}
	if err := store.MarkListingRefreshed(ctx); err != nil {
		t.Fatalf("MarkListingRefreshed failed: %v", err)
	}
	fresh, err := store.ListingFresh(ctx, time.Hour)
	if err != nil || fresh {
		t.Fatalf("expected stale listing, got %v, %v", fresh, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	testsupport.RecordEntry(t, first, "t-50", "f-50", "persists.pdf")
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := testsupport.MustOpenHistory(t, cfg)
	entry, err := second.Get(context.Background(), "t-50")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil || entry.Filename != "persists.pdf" {
		t.Fatalf("expected entry to survive reopen, got %#v", entry)
	}
}
