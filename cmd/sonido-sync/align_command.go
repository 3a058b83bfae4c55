package main

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-sync/executor"
	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/spf13/cobra"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var printFlag bool

	cmd := &cobra.Command{
		Use:   "align AUDIO TEXT OUTPUT",
		Short: "Align a text file to an audio file and write a sync map",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if formatFlag != "" {
				format, err := syncmap.ParseFormat(formatFlag)
				if err != nil {
					return err
				}
				cfg.Output.Format = format
			}

			exec, err := executor.New(cfg)
			if err != nil {
				return err
			}

			task := executor.NewTask(args[0], args[1], args[2])
			res, err := exec.Execute(cmd.Context(), task)
			if err != nil {
				return fmt.Errorf("task %s: %w", task.ID, err)
			}

			out := cmd.OutOrStdout()
			if printFlag {
				fmt.Fprintln(out, renderSyncMap(res.SyncMap))
			}
			fmt.Fprintf(out, "Wrote %d fragments to %s (%s, %.3fs-%.3fs aligned in %s)\n",
				len(res.SyncMap.Leaves()), args[2], cfg.Output.Format, res.Head, res.Tail, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format, overriding config and task")
	cmd.Flags().BoolVarP(&printFlag, "print", "p", false, "Print the aligned fragments as a table")
	return cmd
}
