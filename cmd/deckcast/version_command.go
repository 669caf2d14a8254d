package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const appVersion = "0.1.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the deckcast version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deckcast %s (%s)\n", appVersion, runtime.Version())
		},
	}
}
