package dynamock

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableManager creates tables on DynamoDB Local and remembers them so a
// test can drop them all at once.
type TableManager struct {
	local  *LocalDynamoDB
	tables []string
}

// NewTableManager returns a TableManager backed by local.
func NewTableManager(local *LocalDynamoDB) *TableManager {
	return &TableManager{local: local}
}

// CreateExportTable creates a single hash key table owned by the manager.
func (tm *TableManager) CreateExportTable(ctx context.Context, tableName, keyAttribute string, keyType types.ScalarAttributeType) error {
	return tm.track(tableName, tm.local.CreateExportTable(ctx, tableName, keyAttribute, keyType))
}

// CreateCheckpointTable creates a checkpoint table owned by the manager.
func (tm *TableManager) CreateCheckpointTable(ctx context.Context, tableName string) error {
	return tm.track(tableName, tm.local.CreateCheckpointTable(ctx, tableName))
}

func (tm *TableManager) track(tableName string, err error) error {
	if err == nil {
		tm.tables = append(tm.tables, tableName)
	}
	return err
}

// Cleanup drops every table the manager created. Failures are collected and
// do not stop the remaining deletions.
func (tm *TableManager) Cleanup(ctx context.Context) error {
	var errs []error
	for _, tableName := range tm.tables {
		errs = append(errs, tm.local.DeleteTable(ctx, tableName))
	}
	tm.tables = nil
	return errors.Join(errs...)
}

// GetTableNames returns a copy of the tables the manager owns.
func (tm *TableManager) GetTableNames() []string {
	return append([]string(nil), tm.tables...)
}

var invalidTableChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// NewTestTable derives a unique table name from prefix, replacing characters
// DynamoDB rejects (such as the slashes in subtest names).
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", invalidTableChars.ReplaceAllString(prefix, "-"), time.Now().UnixNano())
}

// WithLocalDynamoDB calls fn with DynamoDB Local on port, skipping the test
// in -short mode or when nothing is listening.
func WithLocalDynamoDB(t testing.TB, port int, fn func(local *LocalDynamoDB)) {
	t.Helper()
	fn(requireLocal(t, port, true))
}

// WithDefaultLocalDynamoDB is WithLocalDynamoDB on DefaultLocalPort.
func WithDefaultLocalDynamoDB(t testing.TB, fn func(local *LocalDynamoDB)) {
	t.Helper()
	WithLocalDynamoDB(t, DefaultLocalPort, fn)
}

// WithIsolatedTable calls fn with a new string-keyed export table that is
// dropped when the test finishes.
func WithIsolatedTable(t testing.TB, local *LocalDynamoDB, keyAttribute string, fn func(tableName string)) {
	t.Helper()
	fn(isolatedTable(t, local, "test-"+t.Name(), keyAttribute, 30*time.Second))
}

// IntegrationTestConfig controls RunIntegrationTest.
type IntegrationTestConfig struct {
	Port int
	// SkipIfNotRunning skips instead of failing when DynamoDB Local is down.
	SkipIfNotRunning bool
	TablePrefix      string
	KeyAttribute     string
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig targets DefaultLocalPort with an "id" keyed table.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		KeyAttribute:     "id",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest runs fn against a fresh export table on DynamoDB Local.
// A nil config means DefaultIntegrationTestConfig.
func RunIntegrationTest(t testing.TB, config *IntegrationTestConfig, fn func(local *LocalDynamoDB, tableName string)) {
	t.Helper()
	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := requireLocal(t, config.Port, config.SkipIfNotRunning)
	fn(local, isolatedTable(t, local, config.TablePrefix, config.KeyAttribute, config.CleanupTimeout))
}

func requireLocal(t testing.TB, port int, skip bool) *LocalDynamoDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	local := NewLocalDynamoDB(port)
	if local.IsAvailable(context.Background()) {
		return local
	}
	if skip {
		t.Skipf("DynamoDB Local not running on port %d", port)
	}
	t.Fatalf("DynamoDB Local not running on port %d", port)
	return nil
}

func isolatedTable(t testing.TB, local *LocalDynamoDB, prefix, keyAttribute string, cleanupTimeout time.Duration) string {
	t.Helper()
	tableName := NewTestTable(prefix)
	if err := local.CreateExportTable(context.Background(), tableName, keyAttribute, types.ScalarAttributeTypeS); err != nil {
		t.Fatalf("create table %s: %v", tableName, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := local.DeleteTable(ctx, tableName); err != nil {
			t.Errorf("drop table %s: %v", tableName, err)
		}
	})
	return tableName
}
