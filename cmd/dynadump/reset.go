package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
)

func (a *app) resetCmd() *cobra.Command {
	var removeOutput bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the checkpoint so the next export starts over",
		Long: `Discard the checkpoint of an unfinished export. The next export scans the
table from the beginning and appends to the existing file unless
--remove-output is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			store, closeStore, err := a.openCheckpoint(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Checkpoint cleared for %s\n", cfg.Source.Table)

			if removeOutput {
				err := a.fs.Remove(cfg.OutputPath())
				switch {
				case errors.Is(err, fs.ErrNotExist):
				case err != nil:
					return fmt.Errorf("failed to remove output: %w", err)
				default:
					fmt.Fprintf(a.stdout, "Removed %s\n", cfg.OutputPath())
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&removeOutput, "remove-output", false, "also delete the export file")

	return cmd
}
