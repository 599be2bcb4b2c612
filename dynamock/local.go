package dynamock

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultLocalPort is the port DynamoDB Local listens on out of the box.
const DefaultLocalPort = 8000

// tableWait bounds how long table creation and deletion may take.
const tableWait = 30 * time.Second

// LocalDynamoDB is a handle on a DynamoDB Local process.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// localCredentials are accepted by DynamoDB Local, which requires signed
// requests but does not verify the keys.
var localCredentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     "local",
		SecretAccessKey: "local",
		Source:          "dynamock",
	}, nil
})

func localEndpoint(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// NewLocalClient returns a client for DynamoDB Local on the given port.
//
//	client := dynamock.NewLocalClient(8000)
//	scanner := dynadump.NewScanner(client, "users")
func NewLocalClient(port int) *dynamodb.Client {
	return NewLocalClientFromConfig(aws.Config{Region: "us-east-1"}, port)
}

// NewLocalClientFromConfig points a client built from cfg at DynamoDB Local.
// Placeholder credentials are used when cfg has none.
func NewLocalClientFromConfig(cfg aws.Config, port int) *dynamodb.Client {
	if cfg.Credentials == nil {
		cfg.Credentials = localCredentials
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(localEndpoint(port))
	})
}

// NewLocalDynamoDB returns a handle on DynamoDB Local at the given port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: localEndpoint(port),
		Port:     port,
	}
}

// NewDefaultLocalDynamoDB returns a handle on DynamoDB Local at DefaultLocalPort.
func NewDefaultLocalDynamoDB() *LocalDynamoDB {
	return NewLocalDynamoDB(DefaultLocalPort)
}

// IsAvailable reports whether something answering DynamoDB requests is
// listening on the port.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", fmt.Sprintf("localhost:%d", l.Port))
	if err != nil {
		return false
	}
	_ = conn.Close()

	_, err = l.Client.ListTables(dialCtx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err == nil
}

// WaitForAvailable polls until IsAvailable succeeds or timeout elapses.
func (l *LocalDynamoDB) WaitForAvailable(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for !l.IsAvailable(ctx) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no DynamoDB Local at %s after %v: %w", l.Endpoint, timeout, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// CreateExportTable creates an on-demand table with a single hash key, the
// shape of table dynadump exports.
func (l *LocalDynamoDB) CreateExportTable(ctx context.Context, tableName, keyAttribute string, keyType types.ScalarAttributeType) error {
	return l.createTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keyAttribute), AttributeType: keyType},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keyAttribute), KeyType: types.KeyTypeHash},
		},
	})
}

// CreateCheckpointTable creates a table with the hk/sk string key schema used
// by dynadump.TableCheckpoint.
func (l *LocalDynamoDB) CreateCheckpointTable(ctx context.Context, tableName string) error {
	return l.createTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("hk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("hk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
	})
}

func (l *LocalDynamoDB) createTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	input.BillingMode = types.BillingModePayPerRequest
	if _, err := l.Client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("create table %s: %w", aws.ToString(input.TableName), err)
	}
	return l.WaitForTableActive(ctx, aws.ToString(input.TableName), tableWait)
}

// WaitForTableActive blocks until the table reports ACTIVE.
func (l *LocalDynamoDB) WaitForTableActive(ctx context.Context, tableName string, timeout time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(l.Client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = 200 * time.Millisecond
		o.MaxDelay = time.Second
	})
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, timeout)
	if err != nil {
		return fmt.Errorf("table %s not active: %w", tableName, err)
	}
	return nil
}

// DeleteTable drops a table and blocks until it is gone.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, tableName string) error {
	_, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName)})
	if err != nil {
		return fmt.Errorf("delete table %s: %w", tableName, err)
	}
	return l.WaitForTableDeleted(ctx, tableName, tableWait)
}

// WaitForTableDeleted blocks until DescribeTable no longer finds the table.
func (l *LocalDynamoDB) WaitForTableDeleted(ctx context.Context, tableName string, timeout time.Duration) error {
	waiter := dynamodb.NewTableNotExistsWaiter(l.Client, func(o *dynamodb.TableNotExistsWaiterOptions) {
		o.MinDelay = 200 * time.Millisecond
		o.MaxDelay = time.Second
	})
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, timeout)
	if err != nil {
		return fmt.Errorf("table %s still present: %w", tableName, err)
	}
	return nil
}

// ListTables returns the names of every table in the instance.
func (l *LocalDynamoDB) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	paginator := dynamodb.NewListTablesPaginator(l.Client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, page.TableNames...)
	}
	return names, nil
}
