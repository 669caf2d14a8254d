package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deckcast/internal/task"
)

func newResetCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Abandon the active task locally",
		Long: `Clear the session's task state, identifiers, and pinned media tab. Reset is
local only; a task still running on the backend keeps running and can be
stopped with cancel instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return cctx.withSession(ctx, noHooks(), func(ctx context.Context, sess *session) error {
				out := cmd.OutOrStdout()
				current := sess.orc.Task()
				if current.Status == task.StatusIdle {
					fmt.Fprintln(out, "Nothing to reset; no task in flight.")
					return nil
				}
				sess.orc.Reset()
				fmt.Fprintln(out, "Session reset; local task state cleared.")
				if current.InFlight() && current.HasUsableID() {
					fmt.Fprintf(out, "Note: backend task %s was not cancelled and keeps running.\n", current.ID)
				}
				return nil
			})
		},
	}
}
