package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"deckcast/internal/config"
	"deckcast/internal/history"
	"deckcast/internal/logging"
	"deckcast/internal/pipeline"
	"deckcast/internal/task"
)

func newJobsCommand(cctx *commandContext) *cobra.Command {
	var limit int
	var refresh bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List submissions recorded on this machine",
		Long: `List the submission history, newest first. In-flight rows are re-polled
against the backend when the listing is stale or --refresh is given; rows
keep their last known status when the backend is unreachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cctx.ensureLogger()
			if err != nil {
				return err
			}
			hist, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			out := cmd.OutOrStdout()
			if !hist.Enabled() {
				fmt.Fprintln(out, "History is disabled; enable it in the [history] config section.")
				return nil
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			ttl := time.Duration(cfg.History.ListingTTL) * time.Second
			fresh, err := hist.ListingFresh(ctx, ttl)
			if err != nil {
				return err
			}
			if refresh || !fresh {
				if err := refreshJobStatuses(ctx, cctx, cfg, logger, hist); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: listing refresh incomplete: %v\n", err)
				} else if err := hist.MarkListingRefreshed(ctx); err != nil {
					return err
				}
			}

			entries, err := hist.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No submissions recorded.")
				return nil
			}

			headers := []string{"TASK", "DOCUMENT", "OUTPUTS", "STATUS", "PROGRESS", "UPDATED"}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					displayTaskID(entry.TaskID),
					entry.Filename,
					describeTaskType(entry.TaskType),
					string(entry.Status),
					strconv.Itoa(entry.Progress) + "%",
					formatAge(entry.UpdatedAt),
				})
			}

			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(out, renderRows(headers, rows, aligns, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-poll the backend even when the listing is fresh")

	return cmd
}

// refreshJobStatuses re-polls every non-terminal history row and folds the
// responses back into the database. Transient backend errors leave a row
// untouched; a 404 marks it failed, since the backend no longer knows it.
func refreshJobStatuses(ctx context.Context, cctx *commandContext, cfg *config.Config, logger *slog.Logger, hist *history.Store) error {
	entries, err := hist.ListByStatus(ctx, task.StatusUploading, task.StatusProcessing)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	svc, err := cctx.pipelineClient(cfg, logger)
	if err != nil {
		return err
	}

	var firstErr error
	for _, entry := range entries {
		if !task.UsableID(entry.TaskID) {
			continue
		}
		snap, err := svc.Status(ctx, entry.TaskID)
		if err != nil {
			if errors.Is(err, pipeline.ErrNotFound) {
				if updateErr := hist.UpdateStatus(ctx, entry.TaskID, task.StatusError, entry.Progress, "task no longer known to the backend"); updateErr != nil && firstErr == nil {
					firstErr = updateErr
				}
				continue
			}
			logger.Debug("listing poll missed",
				logging.String(logging.FieldTaskID, entry.TaskID),
				logging.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		mapped, recognized := task.MapBackendStatus(snap.Status)
		progress := task.NormalizeProgress(snap.Progress)
		var updateErr error
		switch {
		case !recognized:
			updateErr = hist.UpdateStatus(ctx, entry.TaskID, task.StatusError, progress, fmt.Sprintf("unrecognized backend status %q", snap.Status))
		case mapped == task.StatusCompleted:
			updateErr = hist.UpdateStatus(ctx, entry.TaskID, task.StatusCompleted, 100, "")
		case mapped == task.StatusIdle:
			// The backend reported the task cancelled.
			updateErr = hist.UpdateStatus(ctx, entry.TaskID, task.StatusCancelled, entry.Progress, "")
		case mapped == task.StatusError:
			reason := snap.FirstError()
			if reason == "" {
				reason = "generation failed"
			}
			updateErr = hist.UpdateStatus(ctx, entry.TaskID, task.StatusError, progress, reason)
		default:
			updateErr = hist.UpdateStatus(ctx, entry.TaskID, mapped, progress, "")
		}
		if updateErr != nil && firstErr == nil {
			firstErr = updateErr
		}
	}
	return firstErr
}
