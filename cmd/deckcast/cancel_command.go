package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Ask the backend to stop the active task",
		Long: `Request cancellation of the task the session is tracking. The request is
fire-and-forget: the session stays on the task until a poll observes the
backend's cancelled status, which then clears it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return cctx.withSession(ctx, noHooks(), func(ctx context.Context, sess *session) error {
				current := sess.orc.Task()
				if err := sess.orc.Cancel(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Cancellation requested for task %s; the next status poll confirms it.\n",
					current.ID)
				return nil
			})
		},
	}
}
