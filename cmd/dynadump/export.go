package main

import (
	"fmt"
	"time"

	"github.com/nisimpson/dynadump"
	"github.com/nisimpson/dynadump/internal/config"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	key            string
	identityField  string
	format         string
	pageSize       int
	consistentRead bool
	attributes     []string
	maxAttempts    int
	checkpointTTL  time.Duration
}

func (a *app) exportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a table, resuming from the last checkpoint",
		Long: `Export every item of a DynamoDB table to a newline-delimited JSON file.

When a checkpoint exists the export continues after the last completed page
and appends to the existing file. Transient DynamoDB errors are retried with
exponential backoff until they succeed or --max-attempts is reached.

Exit status is 0 when the export is complete, 3 when the table does not
exist, 130 when interrupted and 1 on any other failure.`,
		Example: `  # Export the users table to users.json
  dynadump export --table users

  # Export from DynamoDB Local in DynamoDB JSON format
  dynadump export -t users --endpoint http://localhost:8000 --format dynamodb

  # Keep the checkpoint in a shared DynamoDB table
  dynadump export -t users --checkpoint-store dynamodb --checkpoint-table export-state`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.key, "key", dynadump.DefaultKeyAttribute, "partition key attribute of the table")
	cmd.Flags().StringVar(&flags.identityField, "identity-field", dynadump.DefaultIdentityField, "name of the key in exported records")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(dynadump.FormatJSON), "record format (json, dynamodb, extjson)")
	cmd.Flags().IntVar(&flags.pageSize, "page-size", 0, "items per Scan request (0 uses the service default)")
	cmd.Flags().BoolVar(&flags.consistentRead, "consistent-read", false, "use strongly consistent reads")
	cmd.Flags().StringSliceVar(&flags.attributes, "attributes", nil, "export only these attributes (the key is always included)")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 0, "give up after this many failed fetches of one page (0 retries forever)")
	cmd.Flags().DurationVar(&flags.checkpointTTL, "checkpoint-ttl", 0, "expire checkpoints in the dynamodb store after this duration; an expired export stops until reset, and once DynamoDB deletes the item the next run starts over")

	return cmd
}

func (a *app) runExport(cmd *cobra.Command, flags exportFlags) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(cmd, func(cfg *config.Config) {
		override(cmd, "key", &cfg.Source.KeyAttribute, flags.key)
		override(cmd, "identity-field", &cfg.Output.IdentityField, flags.identityField)
		override(cmd, "format", &cfg.Output.Format, flags.format)
		override(cmd, "page-size", &cfg.Source.PageSize, flags.pageSize)
		override(cmd, "consistent-read", &cfg.Source.ConsistentRead, flags.consistentRead)
		override(cmd, "attributes", &cfg.Source.Attributes, flags.attributes)
		override(cmd, "max-attempts", &cfg.Retry.MaxAttempts, flags.maxAttempts)
		override(cmd, "checkpoint-ttl", &cfg.Checkpoint.TimeToLive, flags.checkpointTTL)
	})
	if err != nil {
		return err
	}

	log, err := a.logger(cfg)
	if err != nil {
		return err
	}

	client, err := a.newClient(ctx, cfg)
	if err != nil {
		return err
	}

	checkpoint, closeCheckpoint, err := a.openCheckpoint(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer closeCheckpoint()

	scanner := dynadump.NewScanner(client, cfg.Source.Table, func(s *dynadump.Scanner) {
		s.KeyAttribute = cfg.Source.KeyAttribute
		s.Limit = cfg.Source.PageSize
		s.ConsistentRead = cfg.Source.ConsistentRead
		s.Attributes = cfg.Source.Attributes
	})

	transformer := dynadump.NewTransformer(func(t *dynadump.Transformer) {
		t.KeyAttribute = cfg.Source.KeyAttribute
		t.IdentityField = cfg.Output.IdentityField
		t.Format = dynadump.Format(cfg.Output.Format)
	})

	exporter := dynadump.NewExporter(
		scanner,
		transformer,
		dynadump.NewFileSink(a.fs, cfg.OutputPath()),
		checkpoint,
		func(o *dynadump.ExportOptions) {
			o.Source = cfg.Source.Table
			o.Logger = log
			o.Backoff = cfg.Backoff()
			o.MaxAttempts = cfg.Retry.MaxAttempts
		},
	)

	result, err := exporter.Run(ctx)
	if err != nil {
		return err
	}

	verb := "Exported"
	if result.Resumed {
		verb = "Resumed and exported"
	}
	fmt.Fprintf(a.stdout, "%s %d records in %d pages to %s\n", verb, result.Records, result.Pages, cfg.OutputPath())
	return nil
}
