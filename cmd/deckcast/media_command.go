package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckcast/internal/presenter"
	"deckcast/internal/task"
)

func newMediaCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "media [video|audio]",
		Short: "Show or pin the completed media tab",
		Long: `Without an argument, show which media tab a completed task presents and
whether the video artifact is actually available. With an argument, pin the
tab for this session; the pin does not survive a reset or a new submission.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pin presenter.Media
			if len(args) == 1 {
				parsed, ok := presenter.ParseMedia(args[0])
				if !ok {
					return fmt.Errorf("unknown media tab %q (expected video or audio)", args[0])
				}
				pin = parsed
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return cctx.withSession(ctx, noHooks(), func(ctx context.Context, sess *session) error {
				out := cmd.OutOrStdout()
				current := sess.orc.Task()
				if current.Status == task.StatusIdle {
					fmt.Fprintln(out, "No active task. Submit a document with `deckcast submit`.")
					return nil
				}

				if pin != "" {
					sess.orc.SelectMedia(pin)
					fmt.Fprintf(out, "Media tab pinned to %s for this session.\n", pin)
					return nil
				}

				// Settle the artifact probe so the answer reflects what the
				// backend actually serves, not just the declared outputs.
				if current.Status == task.StatusCompleted && current.HasUsableID() {
					if err := sess.orc.Refresh(ctx); err != nil {
						return err
					}
				}

				selection, pinned := sess.orc.Selection()
				ready, known := sess.orc.VideoReady()

				fmt.Fprintln(out, renderDetailLine("Media tab", string(selection)))
				fmt.Fprintln(out, renderDetailLine("Pinned", yesNo(pinned)))
				if declared := current.TaskType(); declared != "" {
					fmt.Fprintln(out, renderDetailLine("Declared outputs", describeTaskType(declared)))
				}
				readiness := "not probed yet"
				switch {
				case known && ready:
					readiness = "ready"
				case known:
					readiness = "not available"
				}
				fmt.Fprintln(out, renderDetailLine("Video asset", readiness))
				return nil
			})
		},
	}
}
