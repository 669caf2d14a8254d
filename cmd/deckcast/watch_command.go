package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"deckcast/internal/presenter"
	"deckcast/internal/task"
)

func newWatchCommand(cctx *commandContext) *cobra.Command {
	var mediaFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the active task until it finishes",
		Long: `Attach to the task the session is tracking and print status transitions as
they happen. Ctrl-C detaches; the task keeps running on the backend and a
later watch or status picks it up again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pin presenter.Media
			if mediaFlag != "" {
				parsed, ok := presenter.ParseMedia(mediaFlag)
				if !ok {
					return fmt.Errorf("unknown media tab %q (expected video or audio)", mediaFlag)
				}
				pin = parsed
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			printer := newWatchPrinter(cmd.OutOrStdout())
			return cctx.withSession(ctx, printer.hooks(), func(ctx context.Context, sess *session) error {
				current := sess.orc.Task()
				if current.Status == task.StatusIdle {
					printer.printf("No task in flight. Submit a document with `deckcast submit`.\n")
					return nil
				}
				if pin != "" {
					sess.orc.SelectMedia(pin)
				}
				if current.InFlight() {
					printer.printf("Watching task %s (%s, %d%%); press Ctrl-C to detach\n",
						displayTaskID(current.ID), current.Status, current.Progress)
				}
				return followTask(ctx, sess, printer)
			})
		},
	}

	cmd.Flags().StringVar(&mediaFlag, "media", "", "Pin the completed media tab (video or audio)")

	return cmd
}

// followTask blocks until the session task settles or the user detaches,
// then reports the outcome. A failed generation surfaces as a command error.
func followTask(ctx context.Context, sess *session, printer *watchPrinter) error {
	status, settled := printer.waitUntilSettled(ctx, sess.orc.Task())
	if !settled {
		printer.printf("Detached; the task keeps running. Re-attach with `deckcast watch`.\n")
		return nil
	}

	switch status {
	case task.StatusCompleted:
		printCompletionSummary(printer, sess)
		return nil
	case task.StatusError:
		current := sess.orc.Task()
		if current.ErrorMessage != "" {
			return fmt.Errorf("generation failed: %s", current.ErrorMessage)
		}
		return errors.New("generation failed")
	case task.StatusIdle, task.StatusCancelled:
		printer.printf("The task was cancelled.\n")
		return nil
	default:
		return nil
	}
}
