package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deckcast/internal/orchestrator"
	"deckcast/internal/pipeline"
	"deckcast/internal/presenter"
	"deckcast/internal/task"
)

func (fx *fixture) refresh(t *testing.T) {
	t.Helper()
	if err := fx.orc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
}

func TestRefreshAppliesProcessingProgress(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "processing", Progress: 0.42, CurrentStep: "tts"}, nil
	}

	fx.refresh(t)

	current := fx.orc.Task()
	if current.Status != task.StatusProcessing || current.Progress != 42 {
		t.Fatalf("unexpected task after poll: %#v", current)
	}
	if current.Details == nil || current.Details.CurrentStep != "tts" {
		t.Fatalf("expected merged details, got %#v", current.Details)
	}
	if got := fx.rec.progressSeen(); len(got) != 1 || got[0] != 42 {
		t.Fatalf("unexpected progress callbacks: %v", got)
	}

	entry, err := fx.hist.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("history Get failed: %v", err)
	}
	if entry == nil || entry.Progress != 42 {
		t.Fatalf("expected history progress 42, got %#v", entry)
	}
}

func TestRefreshKeepsPriorDetailsOnSparsePayload(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "processing", Progress: 10}, nil
	}

	fx.refresh(t)

	details := fx.orc.Task().Details
	if details == nil || details.Filename != "deck.pdf" || details.TaskType != task.TypeBoth {
		t.Fatalf("expected details carried across sparse payload, got %#v", details)
	}
	if fx.orc.Task().Progress != 10 {
		t.Fatalf("expected integer-scale progress kept, got %d", fx.orc.Task().Progress)
	}
}

func TestRefreshTransportFailureKeepsState(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return nil, pipeline.Wrap(pipeline.ErrUnavailable, "pipeline", "status", "backend down", nil)
	}

	fx.refresh(t)

	current := fx.orc.Task()
	if current.Status != task.StatusProcessing || current.Progress != 0 {
		t.Fatalf("expected untouched task after missed poll, got %#v", current)
	}
	if _, failed := fx.notifier.sent(); len(failed) != 0 {
		t.Fatalf("missed poll must not notify, got %v", failed)
	}
	if !fx.snapshotExists() {
		t.Fatal("expected snapshot retained across missed poll")
	}
}

func TestCompletedStatusSignalsMedia(t *testing.T) {
	fx := newFixture(t)
	fx.prober.exists = true
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "completed", Progress: 0.31, TaskType: task.TypeBoth}, nil
	}

	fx.refresh(t)

	current := fx.orc.Task()
	if current.Status != task.StatusCompleted || current.Progress != 100 {
		t.Fatalf("completed status must force 100%%, got %#v", current)
	}

	ready, known := fx.orc.VideoReady()
	if !ready || !known {
		t.Fatalf("expected confirmed video, got ready=%v known=%v", ready, known)
	}
	if got := fx.prober.prefetched(); len(got) != 1 || got[0] != "t-1" {
		t.Fatalf("expected prefetch for t-1, got %v", got)
	}

	completed, _ := fx.notifier.sent()
	if len(completed) != 1 || completed[0] != "deck.pdf/both" {
		t.Fatalf("unexpected completion notifications: %v", completed)
	}

	selection, pinned := fx.orc.Selection()
	if selection != presenter.MediaVideo || pinned {
		t.Fatalf("expected unpinned video selection, got %s/%v", selection, pinned)
	}

	entry, err := fx.hist.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("history Get failed: %v", err)
	}
	if entry == nil || entry.Status != task.StatusCompleted || entry.Progress != 100 {
		t.Fatalf("unexpected history entry: %#v", entry)
	}
}

func TestCompletionNotifiesOnce(t *testing.T) {
	fx := newFixture(t)
	fx.prober.exists = true
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "completed", TaskType: task.TypeBoth}, nil
	}

	fx.refresh(t)
	fx.refresh(t)

	completed, _ := fx.notifier.sent()
	if len(completed) != 1 {
		t.Fatalf("expected a single completion notification, got %v", completed)
	}
}

func TestPodcastCompletionSelectsAudio(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{TaskType: task.TypePodcast})

	if selection, _ := fx.orc.Selection(); selection != presenter.MediaAudio {
		t.Fatalf("podcast submission should land on audio, got %s", selection)
	}

	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "completed", TaskType: task.TypePodcast}, nil
	}
	fx.refresh(t)

	selection, pinned := fx.orc.Selection()
	if selection != presenter.MediaAudio || pinned {
		t.Fatalf("expected unpinned audio selection, got %s/%v", selection, pinned)
	}
	ready, known := fx.orc.VideoReady()
	if ready || !known {
		t.Fatalf("expected probe to report no video, got ready=%v known=%v", ready, known)
	}
	completed, _ := fx.notifier.sent()
	if len(completed) != 1 || completed[0] != "deck.pdf/podcast" {
		t.Fatalf("unexpected completion notifications: %v", completed)
	}
}

func TestPinnedSelectionSurvivesCompletion(t *testing.T) {
	fx := newFixture(t)
	fx.prober.exists = true
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.orc.SelectMedia(presenter.MediaAudio)

	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "completed", TaskType: task.TypeBoth}, nil
	}
	fx.refresh(t)

	selection, pinned := fx.orc.Selection()
	if selection != presenter.MediaAudio || !pinned {
		t.Fatalf("pinned selection must survive completion, got %s/%v", selection, pinned)
	}
}

func TestBackendCancellationClearsSession(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "cancelled"}, nil
	}

	fx.refresh(t)

	current := fx.orc.Task()
	if current.Status != task.StatusIdle || current.ID != "" || current.FileID != "" {
		t.Fatalf("expected cleared session, got %#v", current)
	}
	if fx.snapshotExists() {
		t.Fatal("expected snapshot purged after cancellation")
	}

	entry, err := fx.hist.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("history Get failed: %v", err)
	}
	if entry == nil || entry.Status != task.StatusCancelled {
		t.Fatalf("expected cancelled history entry, got %#v", entry)
	}

	got := fx.rec.seen()
	if len(got) == 0 || got[len(got)-1] != "processing>idle" {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestFailedStatusReportsFirstError(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{
			Status: "failed",
			Errors: []task.StepError{{Step: "render", Error: "gpu oom"}},
		}, nil
	}

	fx.refresh(t)

	current := fx.orc.Task()
	if current.Status != task.StatusError || current.ErrorMessage != "render: gpu oom" {
		t.Fatalf("unexpected failure state: %#v", current)
	}
	if current.ID != "" {
		t.Fatalf("terminal failure must clear the task id, got %q", current.ID)
	}
	if fx.snapshotExists() {
		t.Fatal("expected snapshot purged after failure")
	}

	_, failed := fx.notifier.sent()
	if len(failed) != 1 || failed[0] != "deck.pdf/render: gpu oom" {
		t.Fatalf("unexpected failure notifications: %v", failed)
	}

	entry, err := fx.hist.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("history Get failed: %v", err)
	}
	if entry == nil || entry.Status != task.StatusError || entry.ErrorMessage != "render: gpu oom" {
		t.Fatalf("unexpected history entry: %#v", entry)
	}
}

func TestUnrecognizedStatusBecomesError(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "exploded"}, nil
	}

	fx.refresh(t)

	current := fx.orc.Task()
	if current.Status != task.StatusError || current.ID != "" {
		t.Fatalf("unexpected state for protocol error: %#v", current)
	}
	if current.ErrorMessage != "unrecognized backend status exploded" {
		t.Fatalf("unexpected error message: %q", current.ErrorMessage)
	}
	_, failed := fx.notifier.sent()
	if len(failed) != 1 {
		t.Fatalf("expected failure notification, got %v", failed)
	}
}

func TestStaleStatusResponseDiscarded(t *testing.T) {
	fx := newFixture(t)
	fx.submit(t, orchestrator.SubmitOptions{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		once.Do(func() { close(entered) })
		<-release
		return &task.StatusSnapshot{Status: "processing", Progress: 0.9}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fx.orc.Refresh(context.Background())
	}()

	<-entered
	fx.orc.Reset()
	close(release)
	<-done

	current := fx.orc.Task()
	if current.Status != task.StatusIdle || current.ID != "" {
		t.Fatalf("stale response must not revive the session, got %#v", current)
	}
	if fx.snapshotExists() {
		t.Fatal("expected no snapshot after reset")
	}

	// The pre-reset history row stays at its last applied state.
	entry, err := fx.hist.Get(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("history Get failed: %v", err)
	}
	if entry == nil || entry.Status != task.StatusProcessing || entry.Progress != 0 {
		t.Fatalf("stale response must not touch history, got %#v", entry)
	}
}

func TestResolverNeverDowngradesUsableID(t *testing.T) {
	fx := newFixture(t)
	fx.svc.submitFn = func(pipeline.SubmitRequest) (*pipeline.SubmitResponse, error) {
		return &pipeline.SubmitResponse{FileID: "f-5"}, nil
	}

	release := make(chan struct{})
	var calls int
	var callMu sync.Mutex
	fx.svc.searchFn = func(string) ([]pipeline.TaskRef, error) {
		callMu.Lock()
		calls++
		first := calls == 1
		callMu.Unlock()
		if first {
			<-release
			return []pipeline.TaskRef{{TaskID: "t-slow"}}, nil
		}
		return []pipeline.TaskRef{{TaskID: "t-fast"}}, nil
	}

	fx.submit(t, orchestrator.SubmitOptions{})

	// The async resolver from Submit is parked on the first search; a manual
	// refresh resolves through the second and wins.
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "processing", Progress: 0.2}, nil
	}
	fx.refresh(t)

	select {
	case resolved := <-fx.rec.resolved:
		if resolved.ID != "t-fast" {
			t.Fatalf("expected fast resolution to win, got %s", resolved.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution")
	}

	close(release)

	select {
	case resolved := <-fx.rec.resolved:
		t.Fatalf("slow search result overwrote the identifier: %s", resolved.ID)
	case <-time.After(300 * time.Millisecond):
	}
	if got := fx.orc.Task().ID; got != "t-fast" {
		t.Fatalf("expected identifier to stay t-fast, got %s", got)
	}
}

func TestCompletedProbeMissRetriesNextTick(t *testing.T) {
	fx := newFixture(t)
	fx.prober.err = errors.New("connection refused")
	fx.submit(t, orchestrator.SubmitOptions{})
	fx.svc.statusFn = func(string) (*task.StatusSnapshot, error) {
		return &task.StatusSnapshot{Status: "completed", TaskType: task.TypeBoth}, nil
	}

	fx.refresh(t)

	if _, known := fx.orc.VideoReady(); known {
		t.Fatal("failed probe must leave availability unknown")
	}
	if got := fx.prober.prefetched(); len(got) != 0 {
		t.Fatalf("failed probe must not prefetch, got %v", got)
	}

	fx.prober.mu.Lock()
	fx.prober.err = nil
	fx.prober.exists = true
	fx.prober.mu.Unlock()

	fx.refresh(t)

	ready, known := fx.orc.VideoReady()
	if !ready || !known {
		t.Fatalf("expected probe retry to confirm video, got ready=%v known=%v", ready, known)
	}
	if got := fx.prober.prefetched(); len(got) != 1 {
		t.Fatalf("expected one prefetch after confirmation, got %v", got)
	}
}
