package orchestrator

import (
	"context"
	"time"

	"deckcast/internal/logging"
	"deckcast/internal/task"
)

// Refresh runs one poll cycle immediately: resolve a missing identifier,
// fetch status while processing, and re-check media signals for a completed
// task. One-shot commands call this instead of waiting for the poller tick.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.pollOnce(ctx)
	return ctx.Err()
}

func (o *Orchestrator) pollOnce(ctx context.Context) {
	o.mu.Lock()
	current := o.current
	epoch := o.epoch
	checked := o.videoChecked
	o.mu.Unlock()

	if current.NeedsResolution() {
		o.resolveIdentifier(ctx, current, epoch)
		o.mu.Lock()
		current = o.current
		epoch = o.epoch
		o.mu.Unlock()
	}

	switch {
	case current.Status == task.StatusProcessing && current.HasUsableID():
		snap, err := o.svc.Status(ctx, current.ID)
		if err != nil {
			// A failed poll is a single miss; the next tick retries.
			o.logger.Debug("status poll missed",
				logging.String(logging.FieldTaskID, current.ID),
				logging.Error(err),
			)
			return
		}
		o.applyStatus(ctx, current.ID, epoch, snap)
	case current.Status == task.StatusCompleted && current.HasUsableID() && !checked:
		o.ensureMediaSignals(ctx, current.ID, epoch)
	}
}

// applyStatus folds a status payload into the session. Responses for a
// superseded task or epoch are dropped; the poller is keyed to the identifier
// it asked about.
func (o *Orchestrator) applyStatus(ctx context.Context, polledID string, epoch uint64, snap *task.StatusSnapshot) {
	mapped, recognized := task.MapBackendStatus(snap.Status)

	o.mu.Lock()
	if !o.stillCurrentLocked(epoch, polledID) {
		o.mu.Unlock()
		o.logger.Debug("discarding stale status response",
			logging.String(logging.FieldTaskID, polledID),
			logging.String("backend_status", snap.Status),
		)
		return
	}

	from := o.current
	details := mergeDetails(o.current.Details, snap)
	now := time.Now().UTC()

	switch {
	case !recognized:
		o.current.Status = task.StatusError
		o.current.ID = ""
		o.current.ErrorMessage = "unrecognized backend status " + snap.Status
		o.current.Details = details
	case mapped == task.StatusCompleted:
		o.current.Status = task.StatusCompleted
		o.current.Progress = 100
		o.current.ErrorMessage = ""
		o.current.Details = details
	case mapped == task.StatusProcessing:
		o.current.Status = task.StatusProcessing
		o.current.Progress = task.NormalizeProgress(snap.Progress)
		o.current.Details = details
	case mapped == task.StatusIdle:
		// Backend cancelled: identifiers cleared, nothing to resume.
		o.current = task.New()
		o.present.Reset()
		o.videoReady = false
		o.videoChecked = false
	case mapped == task.StatusError:
		o.current.Status = task.StatusError
		o.current.ID = ""
		o.current.ErrorMessage = failureMessage(snap)
		o.current.Details = details
	}
	o.current.UpdatedAt = now
	after := o.current

	selectionChanged := false
	if after.Status == task.StatusProcessing || after.Status == task.StatusCompleted {
		selectionChanged = o.present.Apply(after.TaskType(), o.videoReady && o.videoChecked)
	}
	selection := o.present.Selection()
	pinned := o.present.Pinned()
	o.persistLocked()
	o.mu.Unlock()

	if !recognized {
		o.logger.Error("backend reported unrecognized status",
			logging.String(logging.FieldTaskID, polledID),
			logging.String("backend_status", snap.Status),
		)
	}

	o.dispatchStatusEffects(ctx, polledID, from, after, snap, recognized)
	if selectionChanged && o.hooks.OnSelection != nil {
		o.hooks.OnSelection(selection, pinned)
	}
	if after.Status == task.StatusCompleted && from.Status != task.StatusCompleted {
		epochNow := o.currentEpoch()
		o.ensureMediaSignals(ctx, polledID, epochNow)
	}
}

// dispatchStatusEffects fires hooks, history updates, and notifications for
// an applied status. Runs outside the state lock.
func (o *Orchestrator) dispatchStatusEffects(ctx context.Context, polledID string, from, after task.Task, snap *task.StatusSnapshot, recognized bool) {
	if from.Status != after.Status {
		o.fireTransition(from.Status, after.Status)
	} else if after.Status == task.StatusProcessing && from.Progress != after.Progress && o.hooks.OnProgress != nil {
		o.hooks.OnProgress(after)
	}

	switch {
	case !recognized:
		o.updateHistory(ctx, polledID, task.StatusError, after.Progress, after.ErrorMessage)
		o.notifyFailure(ctx, after, after.ErrorMessage)
	case after.Status == task.StatusProcessing:
		o.updateHistory(ctx, polledID, task.StatusProcessing, after.Progress, "")
	case after.Status == task.StatusCompleted:
		o.updateHistory(ctx, polledID, task.StatusCompleted, 100, "")
		if from.Status != task.StatusCompleted {
			if err := o.notifier.GenerationCompleted(ctx, notifyName(after), string(after.TaskType())); err != nil {
				o.logger.Debug("completion notification failed", logging.Error(err))
			}
		}
	case after.Status == task.StatusIdle:
		// Cancellation confirmed by the backend.
		o.updateHistory(ctx, polledID, task.StatusCancelled, from.Progress, "")
		o.logger.Info("task cancelled",
			logging.String(logging.FieldTaskID, polledID),
		)
	case after.Status == task.StatusError:
		o.updateHistory(ctx, polledID, task.StatusError, after.Progress, after.ErrorMessage)
		o.notifyFailure(ctx, mergeNameFallback(after, from), after.ErrorMessage)
	}
}

func (o *Orchestrator) updateHistory(ctx context.Context, taskID string, status task.Status, progress int, message string) {
	if err := o.history.UpdateStatus(ctx, taskID, status, progress, message); err != nil {
		o.logger.Warn("failed to update history entry",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) notifyFailure(ctx context.Context, t task.Task, reason string) {
	if err := o.notifier.GenerationFailed(ctx, notifyName(t), reason); err != nil {
		o.logger.Debug("failure notification failed", logging.Error(err))
	}
}

// mergeNameFallback keeps the pre-failure details visible to notifications
// when the failing payload carried none.
func mergeNameFallback(after, from task.Task) task.Task {
	if after.Details == nil || after.Details.Filename == "" {
		after.Details = from.Details
	}
	return after
}

// resolveIdentifier backfills a usable task identifier by searching for the
// upload. Best effort: failures are logged and retried on a later tick. A
// result never downgrades an identifier that became usable in the meantime.
func (o *Orchestrator) resolveIdentifier(ctx context.Context, current task.Task, epoch uint64) {
	refs, err := o.svc.Search(ctx, current.FileID)
	if err != nil {
		o.logger.Debug("identifier resolution missed",
			logging.String(logging.FieldFileID, current.FileID),
			logging.Error(err),
		)
		return
	}

	resolved := ""
	for _, ref := range refs {
		if task.UsableID(ref.TaskID) {
			resolved = ref.TaskID
			break
		}
	}
	if resolved == "" {
		return
	}

	o.mu.Lock()
	if epoch != o.epoch || o.current.FileID != current.FileID || o.current.HasUsableID() {
		o.mu.Unlock()
		return
	}
	previousID := o.current.ID
	o.current.ID = resolved
	o.current.UpdatedAt = time.Now().UTC()
	o.persistLocked()
	after := o.current
	o.mu.Unlock()

	o.logger.Info("resolved task identifier",
		logging.String(logging.FieldFileID, after.FileID),
		logging.String(logging.FieldTaskID, resolved),
		logging.String("previous_id", previousID),
	)
	if err := o.history.AdoptTaskID(ctx, after.FileID, resolved); err != nil {
		o.logger.Warn("failed to adopt task id in history", logging.Error(err))
	}
	if o.hooks.OnResolved != nil {
		o.hooks.OnResolved(after)
	}
}

// ensureMediaSignals probes video availability for a completed task and
// fires prefetch hints. Probe misses are the expected steady state until the
// asset lands; they are never surfaced as errors.
func (o *Orchestrator) ensureMediaSignals(ctx context.Context, taskID string, epoch uint64) {
	exists, err := o.prober.VideoExists(ctx, taskID)
	if err != nil {
		o.logger.Debug("video probe missed",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err),
		)
		return
	}

	o.mu.Lock()
	if !o.stillCurrentLocked(epoch, taskID) {
		o.mu.Unlock()
		return
	}
	o.videoReady = exists
	o.videoChecked = true
	changed := o.present.Apply(o.current.TaskType(), exists)
	selection := o.present.Selection()
	pinned := o.present.Pinned()
	o.mu.Unlock()

	o.logger.Debug("video availability confirmed",
		logging.String(logging.FieldTaskID, taskID),
		logging.Bool("exists", exists),
	)
	if changed && o.hooks.OnSelection != nil {
		o.hooks.OnSelection(selection, pinned)
	}
	if o.cfg.Media.Prefetch {
		o.prober.Prefetch(ctx, taskID)
	}
}

// mergeDetails folds a fresh payload over the previous one, keeping fields
// the backend omitted this time.
func mergeDetails(prev, next *task.StatusSnapshot) *task.StatusSnapshot {
	merged := next.Clone()
	if merged == nil {
		return prev
	}
	if prev == nil {
		return merged
	}
	if merged.Filename == "" {
		merged.Filename = prev.Filename
	}
	if merged.FileExt == "" {
		merged.FileExt = prev.FileExt
	}
	if merged.TaskType == "" {
		merged.TaskType = prev.TaskType
	}
	if merged.VoiceLanguage == "" {
		merged.VoiceLanguage = prev.VoiceLanguage
	}
	if merged.SubtitleLanguage == "" {
		merged.SubtitleLanguage = prev.SubtitleLanguage
	}
	return merged
}

func failureMessage(snap *task.StatusSnapshot) string {
	if msg := snap.FirstError(); msg != "" {
		return msg
	}
	return "generation failed"
}
