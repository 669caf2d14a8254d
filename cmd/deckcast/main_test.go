package main

import (
	"path/filepath"
	"strings"
	"testing"

	"deckcast/internal/testsupport"
)

func TestCLISubmitStartsSession(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 4096)

	stdout, _, err := runCLI(t, env, "submit", deck)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, stdout, "Submitted deck.pdf (task t-1)")
	requireContains(t, stdout, "deckcast watch")

	submits, _, _ := env.backend.counts()
	if submits != 1 {
		t.Fatalf("submit calls = %d, want 1", submits)
	}

	stdout, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout, "processing")
	requireContains(t, stdout, "t-1")
	requireContains(t, stdout, "deck.pdf")
}

func TestCLISubmitRejectsMismatchedSource(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 2048)

	_, _, err := runCLI(t, env, "submit", deck, "--source", "slides")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "does not match source type") {
		t.Fatalf("unexpected error: %v", err)
	}

	submits, _, _ := env.backend.counts()
	if submits != 0 {
		t.Fatalf("submit calls = %d, want 0 before validation passes", submits)
	}
}

func TestCLISubmitRejectsUnknownType(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 2048)

	_, _, err := runCLI(t, env, "submit", deck, "--type", "screencast")
	if err == nil || !strings.Contains(err.Error(), "unknown task type") {
		t.Fatalf("expected task type error, got %v", err)
	}
}

func TestCLISubmitWatchRunsToCompletion(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.setStatus(200, `{"status":"completed","progress":100,"task_type":"both","filename":"deck.pdf","steps":{"render":{"status":"completed"}}}`)
	env.backend.setVideoExists(true)

	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 4096)

	stdout, _, err := runCLI(t, env, "submit", deck, "--watch")
	if err != nil {
		t.Fatalf("submit --watch: %v", err)
	}
	requireContains(t, stdout, "processing -> completed")
	requireContains(t, stdout, "Generation complete: deck.pdf")
	requireContains(t, stdout, "video.mp4")
	requireContains(t, stdout, "deckcast fetch")
}

func TestCLIWatchFailedGenerationExitsNonZero(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 2048)

	if _, _, err := runCLI(t, env, "submit", deck); err != nil {
		t.Fatalf("submit: %v", err)
	}
	env.backend.setStatus(200, `{"status":"failed","progress":30,"errors":[{"step":"tts","error":"voice model unavailable"}]}`)

	stdout, _, err := runCLI(t, env, "watch")
	if err == nil {
		t.Fatal("expected watch to fail for a failed generation")
	}
	if !strings.Contains(err.Error(), "voice model unavailable") {
		t.Fatalf("unexpected error: %v", err)
	}
	requireContains(t, stdout, "processing -> error")
}

func TestCLIWatchWithoutTask(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "watch")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	requireContains(t, stdout, "No task in flight")
}

func TestCLICancelRequestsBackendStop(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 2048)

	if _, _, err := runCLI(t, env, "submit", deck); err != nil {
		t.Fatalf("submit: %v", err)
	}

	stdout, _, err := runCLI(t, env, "cancel")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, stdout, "Cancellation requested for task t-1")

	_, _, cancels := env.backend.counts()
	if cancels != 1 {
		t.Fatalf("cancel calls = %d, want 1", cancels)
	}
}

func TestCLICancelWithoutTask(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "cancel")
	if err == nil || !strings.Contains(err.Error(), "no task in flight") {
		t.Fatalf("expected no-task error, got %v", err)
	}
}

func TestCLIResetClearsSession(t *testing.T) {
	env := setupCLITestEnv(t)
	deck := filepath.Join(testsupport.BaseDir(env.cfg), "deck.pdf")
	testsupport.WriteDeck(t, deck, 2048)

	if _, _, err := runCLI(t, env, "submit", deck); err != nil {
		t.Fatalf("submit: %v", err)
	}

	stdout, _, err := runCLI(t, env, "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	requireContains(t, stdout, "Session reset")
	requireContains(t, stdout, "was not cancelled")

	stdout, _, err = runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout, "No active task")
}

func TestCLIVersion(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, stdout, "deckcast "+appVersion)
}

func TestCLINotifyTestDisabledWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "notify-test")
	if err != nil {
		t.Fatalf("notify-test: %v", err)
	}
	requireContains(t, stdout, "Notifications are disabled")
}
