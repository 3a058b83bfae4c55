package main

import (
	"fmt"

	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/spf13/cobra"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported sync map formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, f := range syncmap.Formats() {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	}
}
