package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the checkpoint of an unfinished export",
		Args:  cobra.NoArgs,
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

			cp, err := store.Load(ctx)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cp)
			}

			if cp == nil {
				fmt.Fprintf(a.stdout, "No export in progress for %s\n", cfg.Source.Table)
				return nil
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Table:\t%s\n", cfg.Source.Table)
			fmt.Fprintf(w, "Output:\t%s\n", cfg.OutputPath())
			fmt.Fprintf(w, "Cursor:\t%s\n", cp.Cursor)
			fmt.Fprintf(w, "Pages:\t%d\n", cp.Pages)
			fmt.Fprintf(w, "Records:\t%d\n", cp.Records)
			fmt.Fprintf(w, "Updated:\t%s\n", cp.UpdatedAt.Format(time.RFC3339))
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the checkpoint as JSON (null when none)")

	return cmd
}
