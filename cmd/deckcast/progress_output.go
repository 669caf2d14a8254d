package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"deckcast/internal/media"
	"deckcast/internal/orchestrator"
	"deckcast/internal/presenter"
	"deckcast/internal/task"
)

// watchPrinter turns orchestrator hooks into terminal lines. Hooks fire from
// the poll goroutine while commands print from the main one, so every write
// goes through a single mutex.
type watchPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	settled  chan task.Status
}

func newWatchPrinter(out io.Writer) *watchPrinter {
	return &watchPrinter{
		out:      out,
		colorize: shouldColorize(out),
		settled:  make(chan task.Status, 4),
	}
}

func (p *watchPrinter) hooks() orchestrator.Hooks {
	return orchestrator.Hooks{
		OnTransition: p.transition,
		OnProgress:   p.progress,
		OnSelection:  p.selection,
		OnResolved:   p.resolved,
	}
}

func (p *watchPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *watchPrinter) statusLine(label string, kind statusKind, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.colorize))
}

func (p *watchPrinter) transition(from, to task.Status, current task.Task) {
	message := fmt.Sprintf("%s -> %s", from, to)
	if to == task.StatusError && current.ErrorMessage != "" {
		message += ": " + current.ErrorMessage
	}
	p.statusLine("Status", taskStatusKind(to), message)

	if to.Terminal() || to == task.StatusIdle {
		select {
		case p.settled <- to:
		default:
		}
	}
}

func (p *watchPrinter) progress(current task.Task) {
	message := fmt.Sprintf("%d%%", current.Progress)
	if current.Details != nil && current.Details.CurrentStep != "" {
		message += " (" + current.Details.CurrentStep + ")"
	}
	p.statusLine("Progress", statusInfo, message)
}

func (p *watchPrinter) selection(selection presenter.Media, pinned bool) {
	message := string(selection)
	if pinned {
		message += " (pinned)"
	}
	p.statusLine("Media tab", statusInfo, message)
}

func (p *watchPrinter) resolved(current task.Task) {
	p.statusLine("Task", statusInfo, "registered as "+current.ID)
}

// waitUntilSettled blocks until the watched task reaches a terminal state or
// ctx is cancelled. The bool reports whether the task actually settled; false
// means the user detached.
func (p *watchPrinter) waitUntilSettled(ctx context.Context, current task.Task) (task.Status, bool) {
	if current.Status.Terminal() || current.Status == task.StatusIdle {
		return current.Status, true
	}
	select {
	case status := <-p.settled:
		return status, true
	case <-ctx.Done():
		return current.Status, false
	}
}

func printCompletionSummary(p *watchPrinter, sess *session) {
	// One synchronous refresh settles the artifact probe before summarizing.
	refreshCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = sess.orc.Refresh(refreshCtx)

	current := sess.orc.Task()
	selection, pinned := sess.orc.Selection()
	ready, known := sess.orc.VideoReady()

	name := "document"
	if current.Details != nil && current.Details.Filename != "" {
		name = current.Details.Filename
	}
	p.printf("Generation complete: %s\n", name)

	tab := string(selection)
	if pinned {
		tab += " (pinned)"
	}
	p.printf("%s%-*s %s\n", statusIndent, statusLabelWidth, "Media tab:", tab)

	switch {
	case known && ready:
		p.printf("%s%-*s %s\n", statusIndent, statusLabelWidth, "Video:", sess.media.ArtifactURL(current.ID, media.KindVideo))
	case known:
		p.printf("%s%-*s %s\n", statusIndent, statusLabelWidth, "Video:", "not available")
	}
	if current.HasUsableID() && current.TaskType().IncludesAudio() {
		p.printf("%s%-*s %s\n", statusIndent, statusLabelWidth, "Podcast:", sess.media.ArtifactURL(current.ID, media.KindPodcast))
	}
	p.printf("Download artifacts with `deckcast fetch`.\n")
}
