package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag  string
		verboseFlag bool
	)
	cctx := newCommandContext(&configFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "deckcast",
		Short:         "Turn slide decks and PDFs into narrated videos and podcasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := cctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Path to the configuration file")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Mirror debug logs to the terminal")

	rootCmd.AddCommand(
		newSubmitCommand(cctx),
		newWatchCommand(cctx),
		newStatusCommand(cctx),
		newJobsCommand(cctx),
		newCancelCommand(cctx),
		newResetCommand(cctx),
		newMediaCommand(cctx),
		newFetchCommand(cctx),
		newNotifyTestCommand(cctx),
		newConfigCommand(cctx),
		newVersionCommand(),
	)

	return rootCmd
}
