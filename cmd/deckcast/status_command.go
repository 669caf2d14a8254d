package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"deckcast/internal/presenter"
	"deckcast/internal/task"
)

type stepView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type stepErrorView struct {
	Step  string `json:"step,omitempty"`
	Error string `json:"error"`
}

type statusView struct {
	Status           string          `json:"status"`
	Progress         int             `json:"progress"`
	TaskID           string          `json:"task_id,omitempty"`
	FileID           string          `json:"file_id,omitempty"`
	Filename         string          `json:"filename,omitempty"`
	TaskType         string          `json:"task_type,omitempty"`
	CurrentStep      string          `json:"current_step,omitempty"`
	VoiceLanguage    string          `json:"voice_language,omitempty"`
	SubtitleLanguage string          `json:"subtitle_language,omitempty"`
	Error            string          `json:"error,omitempty"`
	MediaTab         string          `json:"media_tab,omitempty"`
	MediaPinned      bool            `json:"media_pinned,omitempty"`
	VideoReady       *bool           `json:"video_ready,omitempty"`
	Steps            []stepView      `json:"steps,omitempty"`
	StepErrors       []stepErrorView `json:"step_errors,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
	UpdatedAt        string          `json:"updated_at,omitempty"`
}

func newStatusCommand(cctx *commandContext) *cobra.Command {
	var refresh bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session's current task",
		Long: `Print the task the session is tracking, its pipeline steps, and the media
tab a completed task would present. Reads the persisted session state; pass
--refresh to poll the backend first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				ctx, stop := signalContext(cmd.Context())
				defer stop()
				return cctx.withSession(ctx, noHooks(), func(ctx context.Context, sess *session) error {
					if err := sess.orc.Refresh(ctx); err != nil {
						return err
					}
					selection, pinned := sess.orc.Selection()
					ready, known := sess.orc.VideoReady()
					view := buildStatusView(sess.orc.Task(), selection, pinned, ready, known)
					return renderStatus(cmd, view, jsonOutput)
				})
			}

			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cctx.ensureLogger()
			if err != nil {
				return err
			}
			current, ok := loadSavedTask(cfg, logger)
			if !ok {
				current = task.New()
			}
			present := presenter.New()
			present.Apply(current.TaskType(), false)
			view := buildStatusView(current, present.Selection(), present.Pinned(), false, false)
			return renderStatus(cmd, view, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Poll the backend before printing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")

	return cmd
}

func buildStatusView(current task.Task, selection presenter.Media, pinned bool, ready, known bool) statusView {
	view := statusView{
		Status:   string(current.Status),
		Progress: current.Progress,
		TaskID:   current.ID,
		FileID:   current.FileID,
		Error:    current.ErrorMessage,
	}
	if current.Status == task.StatusIdle {
		return view
	}

	view.MediaTab = string(selection)
	view.MediaPinned = pinned
	if known {
		value := ready
		view.VideoReady = &value
	}
	if !current.CreatedAt.IsZero() {
		view.CreatedAt = current.CreatedAt.Format(time.RFC3339)
	}
	if !current.UpdatedAt.IsZero() {
		view.UpdatedAt = current.UpdatedAt.Format(time.RFC3339)
	}

	details := current.Details
	if details == nil {
		return view
	}
	view.Filename = details.Filename
	view.TaskType = string(details.TaskType)
	view.CurrentStep = details.CurrentStep
	view.VoiceLanguage = details.VoiceLanguage
	view.SubtitleLanguage = details.SubtitleLanguage
	for _, name := range details.StepNames() {
		view.Steps = append(view.Steps, stepView{Name: name, Status: details.Steps[name].Status})
	}
	for _, stepErr := range details.Errors {
		view.StepErrors = append(view.StepErrors, stepErrorView{Step: stepErr.Step, Error: stepErr.Error})
	}
	sort.Slice(view.StepErrors, func(i, j int) bool { return view.StepErrors[i].Step < view.StepErrors[j].Step })
	return view
}

func renderStatus(cmd *cobra.Command, view statusView, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, view)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if view.Status == string(task.StatusIdle) {
		fmt.Fprintln(out, "No active task. Submit a document with `deckcast submit`.")
		return nil
	}

	fmt.Fprintln(out, renderSectionHeader("Task", colorize))
	statusMessage := fmt.Sprintf("%s (%d%%)", view.Status, view.Progress)
	fmt.Fprintln(out, renderStatusLine("Status", taskStatusKind(task.Status(view.Status)), statusMessage, colorize))
	fmt.Fprintln(out, renderDetailLine("Task ID", displayTaskID(view.TaskID)))
	if view.FileID != "" {
		fmt.Fprintln(out, renderDetailLine("File ID", view.FileID))
	}
	if view.Filename != "" {
		fmt.Fprintln(out, renderDetailLine("Document", view.Filename))
	}
	if view.TaskType != "" {
		fmt.Fprintln(out, renderDetailLine("Outputs", describeTaskType(task.TaskType(view.TaskType))))
	}
	if view.VoiceLanguage != "" {
		fmt.Fprintln(out, renderDetailLine("Voice", describeLanguage(view.VoiceLanguage)))
	}
	if view.SubtitleLanguage != "" {
		fmt.Fprintln(out, renderDetailLine("Subtitles", describeLanguage(view.SubtitleLanguage)))
	}
	if view.CurrentStep != "" {
		fmt.Fprintln(out, renderDetailLine("Current step", view.CurrentStep))
	}
	if view.MediaTab != "" {
		tab := view.MediaTab
		if view.MediaPinned {
			tab += " (pinned)"
		}
		fmt.Fprintln(out, renderDetailLine("Media tab", tab))
	}
	if view.VideoReady != nil {
		readiness := "not available"
		if *view.VideoReady {
			readiness = "ready"
		}
		fmt.Fprintln(out, renderDetailLine("Video asset", readiness))
	}
	if view.UpdatedAt != "" {
		if when, err := time.Parse(time.RFC3339, view.UpdatedAt); err == nil {
			fmt.Fprintln(out, renderDetailLine("Updated", formatAge(when)))
		}
	}
	if view.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, view.Error, colorize))
	}

	if len(view.Steps) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader("Steps", colorize))
		for _, step := range view.Steps {
			label := step.Status
			if label == "" {
				label = "pending"
			}
			fmt.Fprintln(out, renderStatusLine(step.Name, stepStatusKind(step.Status), label, colorize))
		}
	}
	if len(view.StepErrors) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader("Step errors", colorize))
		for _, stepErr := range view.StepErrors {
			label := stepErr.Step
			if label == "" {
				label = "pipeline"
			}
			fmt.Fprintln(out, renderStatusLine(label, statusError, stepErr.Error, colorize))
		}
	}
	return nil
}
