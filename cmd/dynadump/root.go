package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynadump"
	"github.com/nisimpson/dynadump/internal/config"
	"github.com/nisimpson/dynadump/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

// ClientFactory creates the DynamoDB client for a configuration.
type ClientFactory func(ctx context.Context, cfg *config.Config) (dynadump.DynamoDBClient, error)

type app struct {
	fs        dynadump.FileSystem
	newClient ClientFactory
	stdout    io.Writer
	stderr    io.Writer

	// persistent flags
	configFile      string
	logLevel        string
	logFormat       string
	table           string
	region          string
	endpoint        string
	output          string
	checkpointStore string
	checkpointPath  string
	checkpointTable string
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		fs:        dynadump.OSFileSystem{},
		newClient: newDynamoDBClient,
		stdout:    stdout,
		stderr:    stderr,
	}
}

// run executes the command line and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dynadump",
		Short: "Export a DynamoDB table to newline-delimited JSON",
		Long: `dynadump scans a DynamoDB table page by page and appends every item to a
newline-delimited JSON file, renaming the key attribute to "_id".

Progress is checkpointed after each page. An interrupted export resumes from
the last completed page when run again, and the checkpoint is removed once
the table has been exported completely.

Settings are read from a YAML file (.dynadump.yaml by default), then DYNADUMP_*
environment variables (a .env file is loaded first), then flags.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default is .dynadump.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "console", "log format (console, json)")
	flags.StringVarP(&a.table, "table", "t", "", "DynamoDB table to export")
	flags.StringVar(&a.region, "region", "", "AWS region (default from the AWS configuration)")
	flags.StringVar(&a.endpoint, "endpoint", "", "DynamoDB endpoint override, e.g. http://localhost:8000")
	flags.StringVarP(&a.output, "output", "o", "", "export file (default <table>.json)")
	flags.StringVar(&a.checkpointStore, "checkpoint-store", config.StoreFile, "checkpoint store (file, sqlite, dynamodb)")
	flags.StringVar(&a.checkpointPath, "checkpoint", "", "checkpoint file or sqlite database (default <table>.checkpoint.json or .db)")
	flags.StringVar(&a.checkpointTable, "checkpoint-table", "", "DynamoDB table holding checkpoints for the dynamodb store")

	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(a.exportCmd())
	cmd.AddCommand(a.statusCmd())
	cmd.AddCommand(a.resetCmd())

	return cmd
}

// loadConfig merges the config file, the environment and the persistent
// flags that were set explicitly, then validates the result.
func (a *app) loadConfig(cmd *cobra.Command, apply ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, err
	}

	override(cmd, "log-level", &cfg.Logging.Level, a.logLevel)
	override(cmd, "log-format", &cfg.Logging.Format, a.logFormat)
	override(cmd, "table", &cfg.Source.Table, a.table)
	override(cmd, "region", &cfg.Source.Region, a.region)
	override(cmd, "endpoint", &cfg.Source.Endpoint, a.endpoint)
	override(cmd, "output", &cfg.Output.Path, a.output)
	override(cmd, "checkpoint-store", &cfg.Checkpoint.Store, a.checkpointStore)
	override(cmd, "checkpoint", &cfg.Checkpoint.Path, a.checkpointPath)
	override(cmd, "checkpoint-table", &cfg.Checkpoint.Table, a.checkpointTable)

	for _, fn := range apply {
		fn(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// override assigns v to dst when the named flag was given on the command line.
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func (a *app) logger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, a.stderr)
}

// openCheckpoint opens the configured checkpoint store. client is only
// created for the dynamodb store. The returned function releases the store.
func (a *app) openCheckpoint(ctx context.Context, cfg *config.Config, client dynadump.CheckpointAPI) (dynadump.CheckpointStore, func() error, error) {
	source := cfg.Source.Table
	noop := func() error { return nil }

	switch cfg.Checkpoint.Store {
	case config.StoreSQLite:
		db, err := dynadump.OpenSQLite(cfg.CheckpointPath())
		if err != nil {
			return nil, nil, err
		}
		store, err := dynadump.NewSQLiteCheckpoint(ctx, db, source)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.StoreDynamoDB:
		if client == nil {
			c, err := a.newClient(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			client = c
		}
		store := dynadump.NewTableCheckpoint(client, cfg.Checkpoint.Table, source, func(t *dynadump.TableCheckpoint) {
			t.TimeToLive = cfg.Checkpoint.TimeToLive
		})
		return store, noop, nil

	default:
		return dynadump.NewFileCheckpoint(a.fs, cfg.CheckpointPath(), source), noop, nil
	}
}

func newDynamoDBClient(ctx context.Context, cfg *config.Config) (dynadump.DynamoDBClient, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Source.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Source.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Source.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Source.Endpoint)
		}
	}), nil
}
