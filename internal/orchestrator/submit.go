package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deckcast/internal/history"
	"deckcast/internal/logging"
	"deckcast/internal/pipeline"
	"deckcast/internal/task"
)

// SubmitOptions describes one document submission. Zero-valued languages,
// resolution, and toggles fall back to the [output] config section; an empty
// source type is inferred from the file extension.
type SubmitOptions struct {
	Path               string
	SourceType         task.SourceType
	TaskType           task.TaskType
	VoiceLanguage      string
	SubtitleLanguage   string
	TranscriptLanguage string
	VideoResolution    string
	GenerateAvatar     *bool
	GenerateSubtitles  *bool
}

// Submit validates and uploads a document, then moves the session onto the
// returned task. Validation failures reject before any network call. An
// upload failure reverts the session to idle and persists nothing.
func (o *Orchestrator) Submit(ctx context.Context, opts SubmitOptions) (task.Task, error) {
	req, err := o.buildRequest(opts)
	if err != nil {
		return task.Task{}, err
	}

	o.mu.Lock()
	if o.current.InFlight() {
		o.mu.Unlock()
		return task.Task{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit",
			fmt.Sprintf("a task is already %s; cancel or reset it first", o.current.Status), nil)
	}
	previous := o.current
	o.epoch++
	epoch := o.epoch
	now := time.Now().UTC()
	o.current = task.Task{Status: task.StatusUploading, CreatedAt: now, UpdatedAt: now}
	o.present.Reset()
	o.videoReady = false
	o.videoChecked = false
	o.persistLocked()
	o.mu.Unlock()

	if previous.HasUsableID() {
		o.prober.Forget(previous.ID)
	}
	o.fireTransition(previous.Status, task.StatusUploading)

	resp, err := o.svc.Submit(ctx, req)
	if err != nil {
		o.revertSubmit(epoch)
		return task.Task{}, err
	}

	taskID := strings.TrimSpace(resp.TaskID)
	if !task.UsableID(taskID) {
		taskID = task.NewSyntheticID()
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.logger.Warn("discarding submit response; session was reset during upload",
			logging.String(logging.FieldFileID, resp.FileID),
		)
		return task.Task{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit",
			"session was reset during upload", nil)
	}
	o.current.ID = taskID
	o.current.FileID = strings.TrimSpace(resp.FileID)
	o.current.Status = task.StatusProcessing
	o.current.Progress = 0
	o.current.UpdatedAt = time.Now().UTC()
	o.current.Details = &task.StatusSnapshot{
		TaskType:         req.TaskType,
		VoiceLanguage:    req.VoiceLanguage,
		SubtitleLanguage: req.SubtitleLanguage,
		Filename:         filepath.Base(req.Path),
		FileExt:          filepath.Ext(req.Path),
	}
	o.present.Apply(req.TaskType, false)
	o.persistLocked()
	submitted := o.current
	o.mu.Unlock()

	o.logger.Info("submitted document",
		logging.String(logging.FieldTaskID, submitted.ID),
		logging.String(logging.FieldFileID, submitted.FileID),
		logging.String("filename", filepath.Base(req.Path)),
		logging.String("task_type", string(req.TaskType)),
	)
	o.fireTransition(task.StatusUploading, task.StatusProcessing)
	o.recordSubmission(ctx, submitted, req)

	if !submitted.HasUsableID() {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.resolveIdentifier(context.WithoutCancel(ctx), submitted, epoch)
		}()
	}

	return submitted, nil
}

func (o *Orchestrator) buildRequest(opts SubmitOptions) (pipeline.SubmitRequest, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return pipeline.SubmitRequest{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit", "no file selected", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return pipeline.SubmitRequest{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit", "file is not readable", err)
	}
	if info.IsDir() {
		return pipeline.SubmitRequest{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit", path+" is a directory", nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	sourceType := opts.SourceType
	if sourceType == "" {
		switch {
		case task.SourcePDF.AllowsExtension(ext):
			sourceType = task.SourcePDF
		case task.SourceSlides.AllowsExtension(ext):
			sourceType = task.SourceSlides
		default:
			return pipeline.SubmitRequest{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit",
				fmt.Sprintf("cannot infer source type for %q", ext), nil)
		}
	}
	if !sourceType.AllowsExtension(ext) {
		return pipeline.SubmitRequest{}, pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "submit",
			fmt.Sprintf("%q does not match source type %s", ext, sourceType), nil)
	}

	taskType := opts.TaskType
	if taskType == "" {
		parsed, ok := task.ParseTaskType(o.cfg.Output.TaskType)
		if !ok {
			parsed = task.TypeBoth
		}
		taskType = parsed
	}

	req := pipeline.SubmitRequest{
		Path:               path,
		SourceType:         sourceType,
		TaskType:           taskType,
		VoiceLanguage:      fallback(opts.VoiceLanguage, o.cfg.Output.VoiceLanguage),
		SubtitleLanguage:   fallback(opts.SubtitleLanguage, o.cfg.Output.SubtitleLanguage),
		TranscriptLanguage: fallback(opts.TranscriptLanguage, o.cfg.Output.TranscriptLanguage),
		VideoResolution:    fallback(opts.VideoResolution, o.cfg.Output.VideoResolution),
		GenerateAvatar:     o.cfg.Output.GenerateAvatar,
		GenerateSubtitles:  o.cfg.Output.GenerateSubtitles,
	}
	if opts.GenerateAvatar != nil {
		req.GenerateAvatar = *opts.GenerateAvatar
	}
	if opts.GenerateSubtitles != nil {
		req.GenerateSubtitles = *opts.GenerateSubtitles
	}
	return req, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return def
}

// revertSubmit returns the session to idle after a failed upload, unless the
// session already moved on.
func (o *Orchestrator) revertSubmit(epoch uint64) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.current = task.New()
	o.persistLocked()
	o.mu.Unlock()

	o.fireTransition(task.StatusUploading, task.StatusIdle)
}

func (o *Orchestrator) recordSubmission(ctx context.Context, submitted task.Task, req pipeline.SubmitRequest) {
	entry := history.Entry{
		TaskID:     submitted.ID,
		FileID:     submitted.FileID,
		Filename:   filepath.Base(req.Path),
		SourceType: req.SourceType,
		TaskType:   req.TaskType,
		Status:     task.StatusProcessing,
	}
	if _, err := o.history.RecordSubmission(ctx, entry); err != nil {
		o.logger.Warn("failed to record submission in history", logging.Error(err))
	}
	if err := o.history.InvalidateListing(ctx); err != nil {
		o.logger.Warn("failed to invalidate job listing", logging.Error(err))
	}
}

// Cancel asks the backend to stop the current task. State does not change
// here; the next poll observes the backend's cancelled status and clears the
// session.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()

	if !current.InFlight() {
		return pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "cancel",
			fmt.Sprintf("no task in flight (status %s)", current.Status), nil)
	}
	if !current.HasUsableID() {
		return pipeline.Wrap(pipeline.ErrValidation, "orchestrator", "cancel",
			"task has no backend identifier yet", nil)
	}

	if err := o.svc.Cancel(ctx, current.ID); err != nil {
		return err
	}
	o.logger.Info("requested cancellation",
		logging.String(logging.FieldTaskID, current.ID),
	)
	return nil
}

// Reset abandons the current task: identifiers cleared, snapshot purged,
// media selection unpinned, probe caches dropped. The backend task, if any,
// keeps running; Reset is local.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	previous := o.current
	o.epoch++
	o.current = task.New()
	o.present.Reset()
	o.videoReady = false
	o.videoChecked = false
	o.persistLocked()
	selection := o.present.Selection()
	pinned := o.present.Pinned()
	o.mu.Unlock()

	if previous.HasUsableID() {
		o.prober.Forget(previous.ID)
	}
	if previous.Status != task.StatusIdle {
		o.fireTransition(previous.Status, task.StatusIdle)
	}
	if o.hooks.OnSelection != nil {
		o.hooks.OnSelection(selection, pinned)
	}
	o.logger.Info("session reset",
		logging.String(logging.FieldTaskID, previous.ID),
		logging.String(logging.FieldStatus, string(previous.Status)),
	)
}

func (o *Orchestrator) fireTransition(from, to task.Status) {
	if o.hooks.OnTransition == nil || from == to {
		return
	}
	o.hooks.OnTransition(from, to, o.Task())
}
