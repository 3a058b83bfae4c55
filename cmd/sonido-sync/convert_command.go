package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/spf13/cobra"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var fromFlag string
	var toFlag string
	var printFlag bool

	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert a sync map between formats",
		Long:  "Convert a sync map between formats. Formats default to the file extensions.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			from, err := formatFor(fromFlag, args[0])
			if err != nil {
				return err
			}
			to, err := formatFor(toFlag, args[1])
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open sync map: %w", err)
			}
			defer in.Close()

			sm, err := syncmap.Read(in, from)
			if err != nil {
				return fmt.Errorf("read %s: %w", from, err)
			}

			data, err := syncmap.Marshal(sm, to, cfg.OutputOptions())
			if err != nil {
				return fmt.Errorf("write %s: %w", to, err)
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return fmt.Errorf("write sync map: %w", err)
			}

			out := cmd.OutOrStdout()
			if printFlag {
				fmt.Fprintln(out, renderSyncMap(sm))
			}
			fmt.Fprintf(out, "Converted %d fragments from %s to %s\n", len(sm.Leaves()), from, to)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "Input format (default: from INPUT extension)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Output format (default: from OUTPUT extension)")
	cmd.Flags().BoolVarP(&printFlag, "print", "p", false, "Print the fragments as a table")
	return cmd
}

func formatFor(flag, path string) (syncmap.Format, error) {
	if flag != "" {
		return syncmap.ParseFormat(flag)
	}
	return syncmap.FormatFromPath(path)
}
