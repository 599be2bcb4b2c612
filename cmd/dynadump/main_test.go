package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/dynadump"
	"github.com/nisimpson/dynadump/dynamock"
	dassert "github.com/nisimpson/dynadump/dynamock/assert"
	"github.com/nisimpson/dynadump/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	*app
	db     *dynamock.MemDB
	disk   *dynamock.MemFileSystem
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(t *testing.T, items int) *testApp {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	db := dynamock.NewMemDB().CreateTable("users", "id")
	require.NoError(t, dynamock.NewSeedTestData(db, "users").SeedItems(context.Background(), dynamock.SequentialItems(items, "id")...))

	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	disk := dynamock.NewMemFileSystem()
	a.fs = disk
	a.newClient = func(ctx context.Context, cfg *config.Config) (dynadump.DynamoDBClient, error) {
		return db, nil
	}

	return &testApp{app: a, db: db, disk: disk, stdout: &stdout, stderr: &stderr}
}

func (ta *testApp) exec(args ...string) int {
	ta.stdout.Reset()
	ta.stderr.Reset()
	return ta.run(context.Background(), args)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"missing table", fmt.Errorf("scan: %w", dynadump.ErrSourceNotFound), exitNotFound},
		{"interrupted", context.Canceled, exitInterrupted},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), exitInterrupted},
		{"sink", fmt.Errorf("%w: disk full", dynadump.ErrSinkWrite), exitFatal},
		{"other", errors.New("boom"), exitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExport(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		ta := newTestApp(t, 30)

		code := ta.exec("export", "--table", "users", "--page-size", "10")
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Equal(t, "Exported 30 records in 4 pages to users.json\n", ta.stdout.String())
		dassert.Lines(t, []byte(ta.disk.Content("users.json"))).
			HasCount(30).
			HasUniqueField("_id").
			NotHasField("id")

		ok, err := ta.disk.Exists("users.checkpoint.json")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Contains(t, ta.stderr.String(), "Export complete")
	})

	t.Run("resumes", func(t *testing.T) {
		ta := newTestApp(t, 30)
		store := dynadump.NewFileCheckpoint(ta.disk, "users.checkpoint.json", "users")
		require.NoError(t, store.Save(context.Background(), dynadump.Checkpoint{
			Cursor:  dynadump.Cursor{Type: dynadump.KeyTypeString, Value: dynamock.SequentialKey(19)},
			Pages:   2,
			Records: 20,
		}))

		code := ta.exec("export", "-t", "users")
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Equal(t, "Resumed and exported 10 records in 1 pages to users.json\n", ta.stdout.String())
		dassert.Lines(t, []byte(ta.disk.Content("users.json"))).
			HasCount(10).
			InOrder("_id", dynamock.SequentialKey(20), dynamock.SequentialKey(21), dynamock.SequentialKey(22),
				dynamock.SequentialKey(23), dynamock.SequentialKey(24), dynamock.SequentialKey(25),
				dynamock.SequentialKey(26), dynamock.SequentialKey(27), dynamock.SequentialKey(28),
				dynamock.SequentialKey(29))
	})

	t.Run("record options", func(t *testing.T) {
		ta := newTestApp(t, 2)

		code := ta.exec("export", "-t", "users", "-o", "out/users.ndjson",
			"--format", "dynamodb", "--identity-field", "key", "--attributes", "id")
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Equal(t, []string{
			`{"key":{"S":"item-0000"}}`,
			`{"key":{"S":"item-0001"}}`,
		}, ta.disk.Lines("out/users.ndjson"))
	})

	t.Run("missing table", func(t *testing.T) {
		ta := newTestApp(t, 0)

		code := ta.exec("export", "-t", "orders")

		assert.Equal(t, exitNotFound, code)
		assert.Contains(t, ta.stderr.String(), "Source table does not exist")
		assert.Empty(t, ta.disk.Paths())
	})

	t.Run("invalid configuration", func(t *testing.T) {
		ta := newTestApp(t, 0)

		code := ta.exec("export", "--format", "csv")

		assert.Equal(t, exitFatal, code)
		assert.Contains(t, ta.stderr.String(), "source table is required")
		assert.Contains(t, ta.stderr.String(), "unknown format")
		assert.Zero(t, ta.db.Scans())
	})

	t.Run("interrupted", func(t *testing.T) {
		ta := newTestApp(t, 5)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		code := ta.run(ctx, []string{"export", "-t", "users"})

		assert.Equal(t, exitInterrupted, code)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		ta := newTestApp(t, 5)
		ta.db.ScanHook = func(ctx context.Context, call int, params *dynamodb.ScanInput) error {
			return errors.New("unavailable")
		}
		t.Setenv("DYNADUMP_RETRY_BASE_DELAY", "1ms")
		t.Setenv("DYNADUMP_RETRY_MAX_DELAY", "1ms")

		code := ta.exec("export", "-t", "users", "--max-attempts", "2", "--log-format", "json")

		assert.Equal(t, exitFatal, code)
		assert.Equal(t, 2, ta.db.Scans())
		assert.Contains(t, ta.stderr.String(), `"message":"Fetch failed, retrying"`)
		assert.Contains(t, ta.stderr.String(), "giving up after 2 attempts")
	})

	t.Run("config file with flag override", func(t *testing.T) {
		ta := newTestApp(t, 3)
		path := filepath.Join(t.TempDir(), "dynadump.yaml")
		require.NoError(t, os.WriteFile(path, []byte("source:\n  table: orders\noutput:\n  path: export.json\n"), 0o644))

		code := ta.exec("export", "--config", path, "--table", "users")
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Len(t, ta.disk.Lines("export.json"), 3)
	})

	t.Run("sqlite checkpoint", func(t *testing.T) {
		ta := newTestApp(t, 25)
		dbPath := filepath.Join(t.TempDir(), "state.db")

		code := ta.exec("export", "-t", "users", "--page-size", "10",
			"--checkpoint-store", "sqlite", "--checkpoint", dbPath)
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Len(t, ta.disk.Lines("users.json"), 25)
		_, err := os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("dynamodb checkpoint", func(t *testing.T) {
		ta := newTestApp(t, 25)
		ta.db.CreateTable("export-state", "hk", "sk")

		code := ta.exec("export", "-t", "users", "--page-size", "10",
			"--checkpoint-store", "dynamodb", "--checkpoint-table", "export-state", "--checkpoint-ttl", "24h")
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Len(t, ta.disk.Lines("users.json"), 25)
		assert.Empty(t, ta.db.Items("export-state"))
	})
}

func TestStatus(t *testing.T) {
	saved := dynadump.Checkpoint{
		Cursor:    dynadump.Cursor{Type: dynadump.KeyTypeString, Value: "item-0009"},
		Pages:     1,
		Records:   10,
		UpdatedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	t.Run("no checkpoint", func(t *testing.T) {
		ta := newTestApp(t, 0)

		require.Equal(t, exitOK, ta.exec("status", "-t", "users"))
		assert.Equal(t, "No export in progress for users\n", ta.stdout.String())
	})

	t.Run("file checkpoint", func(t *testing.T) {
		ta := newTestApp(t, 0)
		require.NoError(t, dynadump.NewFileCheckpoint(ta.disk, "users.checkpoint.json", "users").Save(context.Background(), saved))

		require.Equal(t, exitOK, ta.exec("status", "-t", "users"), ta.stderr.String())

		out := ta.stdout.String()
		assert.Contains(t, out, "Cursor:   S:item-0009")
		assert.Contains(t, out, "Records:  10")
		assert.Contains(t, out, "Updated:  2024-03-01T12:30:00Z")
	})

	t.Run("json", func(t *testing.T) {
		ta := newTestApp(t, 0)

		require.Equal(t, exitOK, ta.exec("status", "-t", "users", "--json"))
		assert.Equal(t, "null\n", ta.stdout.String())
	})

	t.Run("dynamodb checkpoint", func(t *testing.T) {
		ta := newTestApp(t, 0)
		ta.db.CreateTable("export-state", "hk", "sk")
		require.NoError(t, dynadump.NewTableCheckpoint(ta.db, "export-state", "users").Save(context.Background(), saved))

		code := ta.exec("status", "-t", "users", "--checkpoint-store", "dynamodb", "--checkpoint-table", "export-state")
		require.Equal(t, exitOK, code, ta.stderr.String())

		assert.Contains(t, ta.stdout.String(), "Cursor:   S:item-0009")
	})

	t.Run("checkpoint of another table", func(t *testing.T) {
		ta := newTestApp(t, 0)
		require.NoError(t, dynadump.NewFileCheckpoint(ta.disk, "shared.json", "orders").Save(context.Background(), saved))

		code := ta.exec("status", "-t", "users", "--checkpoint", "shared.json")

		assert.Equal(t, exitFatal, code)
		assert.Contains(t, ta.stderr.String(), "checkpoint")
	})
}

func TestReset(t *testing.T) {
	t.Run("clears checkpoint and keeps output", func(t *testing.T) {
		ta := newTestApp(t, 0)
		require.NoError(t, dynadump.NewFileCheckpoint(ta.disk, "users.checkpoint.json", "users").Save(context.Background(), dynadump.Checkpoint{
			Cursor: dynadump.Cursor{Type: dynadump.KeyTypeNumber, Value: "7"},
		}))
		ta.disk.Put("users.json", []byte("{\"_id\":1}\n"))

		require.Equal(t, exitOK, ta.exec("reset", "-t", "users"), ta.stderr.String())

		assert.Equal(t, "Checkpoint cleared for users\n", ta.stdout.String())
		ok, _ := ta.disk.Exists("users.checkpoint.json")
		assert.False(t, ok)
		ok, _ = ta.disk.Exists("users.json")
		assert.True(t, ok)
	})

	t.Run("remove output", func(t *testing.T) {
		ta := newTestApp(t, 0)
		ta.disk.Put("users.json", []byte("{\"_id\":1}\n"))

		require.Equal(t, exitOK, ta.exec("reset", "-t", "users", "--remove-output"), ta.stderr.String())

		assert.Contains(t, ta.stdout.String(), "Removed users.json")
		ok, _ := ta.disk.Exists("users.json")
		assert.False(t, ok)
	})

	t.Run("nothing to remove", func(t *testing.T) {
		ta := newTestApp(t, 0)

		assert.Equal(t, exitOK, ta.exec("reset", "-t", "users", "--remove-output"))
		assert.Equal(t, "Checkpoint cleared for users\n", ta.stdout.String())
	})

	t.Run("then export starts over", func(t *testing.T) {
		ta := newTestApp(t, 4)
		require.NoError(t, dynadump.NewFileCheckpoint(ta.disk, "users.checkpoint.json", "users").Save(context.Background(), dynadump.Checkpoint{
			Cursor: dynadump.Cursor{Type: dynadump.KeyTypeString, Value: dynamock.SequentialKey(2)},
		}))

		require.Equal(t, exitOK, ta.exec("reset", "-t", "users"))
		require.Equal(t, exitOK, ta.exec("export", "-t", "users"))

		assert.Equal(t, "Exported 4 records in 1 pages to users.json\n", ta.stdout.String())
	})
}
