package dynadump

import (
	"context"
	"errors"
	"testing"

	"github.com/nisimpson/dynadump/dynamock"
	"github.com/nisimpson/dynadump/dynamock/assert"
)

// TestExportLocal exports a table from DynamoDB Local. It is skipped when no
// local instance is listening on the default port.
func TestExportLocal(t *testing.T) {
	dynamock.RunIntegrationTest(t, nil, func(local *dynamock.LocalDynamoDB, tableName string) {
		ctx := context.Background()

		if err := dynamock.NewSeedTestData(local.Client, tableName).SeedItems(ctx, dynamock.SequentialItems(120, "id")...); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		disk := OSFileSystem{Root: t.TempDir()}
		exporter := NewExporter(
			NewScanner(local.Client, tableName, func(s *Scanner) { s.Limit = 25 }),
			NewTransformer(),
			NewFileSink(disk, "export.json"),
			NewFileCheckpoint(disk, "export.checkpoint.json", tableName),
			func(o *ExportOptions) { o.Source = tableName },
		)

		result, err := exporter.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if !result.Complete || result.Records != 120 {
			t.Errorf("unexpected result %+v", result)
		}

		data, err := disk.ReadFile("export.json")
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}

		// Scan order over a hash key is not sorted, so only check membership.
		assert.Lines(t, data).
			HasCount(120).
			EachHasField("_id").
			HasUniqueField("_id").
			ContainsValue("_id", dynamock.SequentialKey(0)).
			ContainsValue("_id", dynamock.SequentialKey(119))
	})
}

func TestExportLocal_TableCheckpoint(t *testing.T) {
	dynamock.RunIntegrationTest(t, nil, func(local *dynamock.LocalDynamoDB, tableName string) {
		ctx := context.Background()

		tm := dynamock.NewTableManager(local)
		defer tm.Cleanup(ctx)

		stateTable := dynamock.NewTestTable("checkpoints")
		if err := tm.CreateCheckpointTable(ctx, stateTable); err != nil {
			t.Fatalf("failed to create checkpoint table: %v", err)
		}

		if err := dynamock.NewSeedTestData(local.Client, tableName).SeedItems(ctx, dynamock.SequentialItems(60, "id")...); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		store := NewTableCheckpoint(local.Client, stateTable, tableName)
		disk := OSFileSystem{Root: t.TempDir()}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		interrupted := &hookedStore{
			CheckpointStore: store,
			afterSave:       func(Checkpoint) { cancel() },
		}

		newExporter := func(checkpoint CheckpointStore) *Exporter {
			return NewExporter(
				NewScanner(local.Client, tableName, func(s *Scanner) { s.Limit = 20 }),
				NewTransformer(),
				NewFileSink(disk, "export.json"),
				checkpoint,
				func(o *ExportOptions) { o.Source = tableName },
			)
		}

		if _, err := newExporter(interrupted).Run(runCtx); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		saved, err := store.Load(ctx)
		if err != nil || saved == nil {
			t.Fatalf("expected a stored checkpoint, got %v, %v", saved, err)
		}
		if saved.Records != 20 {
			t.Errorf("expected 20 committed records, got %d", saved.Records)
		}

		result, err := newExporter(store).Run(ctx)
		if err != nil {
			t.Fatalf("resumed Run failed: %v", err)
		}
		if !result.Resumed || !result.Complete {
			t.Errorf("unexpected result %+v", result)
		}

		data, err := disk.ReadFile("export.json")
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		assert.Lines(t, data).HasCount(60).HasUniqueField("_id")

		if cp, err := store.Load(ctx); err != nil || cp != nil {
			t.Errorf("expected checkpoint to be cleared, got %v, %v", cp, err)
		}
	})
}

func TestExportLocal_MissingTable(t *testing.T) {
	dynamock.WithDefaultLocalDynamoDB(t, func(local *dynamock.LocalDynamoDB) {
		disk := dynamock.NewMemFileSystem()
		exporter := NewExporter(
			NewScanner(local.Client, dynamock.NewTestTable("missing")),
			NewTransformer(),
			NewFileSink(disk, "export.json"),
			NewFileCheckpoint(disk, "export.checkpoint.json", "missing"),
		)

		if _, err := exporter.Run(context.Background()); !errors.Is(err, ErrSourceNotFound) {
			t.Errorf("expected ErrSourceNotFound, got %v", err)
		}
	})
}
