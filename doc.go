// Package dynadump exports the contents of a DynamoDB table into an
// append-only, newline-delimited file, checkpointing between pages so that an
// interrupted export resumes where it stopped.
//
// # Key Concepts
//
// An export is a loop over pages of a Scan. Each page is transformed into one
// line per item, appended to a Sink, and then the Cursor of the last item is
// saved to a CheckpointStore. The checkpoint is only advanced after the page
// has been durably appended, so a crash can repeat at most one page and never
// skips one.
//
// The checkpoint has three states:
//   - absent, before the first page is committed
//   - present, holding the cursor of the last committed page
//   - absent again, once the table has been exhausted
//
// Resuming after completion therefore starts a fresh export. Use a new output
// file, or remove the old one, before doing so.
//
// # Basic Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	ddb := dynamodb.NewFromConfig(cfg)
//	disk := dynadump.OSFileSystem{}
//
//	exporter := dynadump.NewExporter(
//	    dynadump.NewScanner(ddb, "users"),
//	    dynadump.NewTransformer(),
//	    dynadump.NewFileSink(disk, "users.json"),
//	    dynadump.NewFileCheckpoint(disk, "users.checkpoint.json", "users"),
//	)
//
//	result, err := exporter.Run(ctx)
//
// # Records
//
// The Transformer renames the table's key attribute (default "id") to an
// identity field (default "_id") and writes the item as plain JSON, DynamoDB
// JSON or MongoDB extended JSON:
//
//	{"id": "u1", "name": "Ada"}  ->  {"_id":"u1","name":"Ada"}
//
// # Checkpoint Stores
//
// Three stores are provided:
//   - FileCheckpoint: a JSON document replaced atomically on every save
//   - SQLiteCheckpoint: one row per source in a SQLite database
//   - TableCheckpoint: one item per source in a DynamoDB table using the
//     hk/sk key schema
//
// # Errors
//
// Fetch failures are retried forever with the same cursor unless
// ExportOptions.MaxAttempts is set. A missing table (ErrSourceNotFound), a
// malformed record (ErrMalformedRecord) and failed writes (ErrSinkWrite,
// ErrCheckpointWrite) stop the export and leave the checkpoint untouched.
package dynadump
