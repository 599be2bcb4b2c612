package dynadump

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	AttributeNameSource  = "hk"
	AttributeNameTarget  = "sk"
	AttributeNameLabel   = "label"
	AttributeNameExpires = "expires"

	checkpointPrefix = "checkpoint"
)

// checkpointItem is the stored form of a Checkpoint. It uses the hk/sk
// single-table key schema so checkpoints can live alongside other items.
type checkpointItem struct {
	Source    string    `dynamodbav:"hk"`
	Target    string    `dynamodbav:"sk"`
	Label     string    `dynamodbav:"label"`
	Table     string    `dynamodbav:"source_table"`
	Cursor    string    `dynamodbav:"cursor"`
	Pages     int64     `dynamodbav:"pages"`
	Records   int64     `dynamodbav:"records"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	Expires   int64     `dynamodbav:"expires,omitempty"` // time-to-live attribute, unix seconds
}

// TableCheckpoint stores the checkpoint as an item in a DynamoDB table. The
// table must have a string hash key "hk" and a string range key "sk", and
// must not be the table being exported.
type TableCheckpoint struct {
	TableName    string        // Table holding checkpoints
	KeyDelimiter string        // Delimiter for hash and sort keys. Default is '#'.
	TimeToLive   time.Duration // Optional lifetime of a stored checkpoint; 0 disables expiry
	Tick         Clock         // Function to get current time for expiry

	client CheckpointAPI
	source string
}

// NewTableCheckpoint creates a TableCheckpoint for source stored in tableName.
func NewTableCheckpoint(client CheckpointAPI, tableName, source string, opts ...func(*TableCheckpoint)) *TableCheckpoint {
	t := &TableCheckpoint{
		TableName:    tableName,
		KeyDelimiter: "#",
		Tick:         DefaultClock,
		client:       client,
		source:       source,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ CheckpointStore = (*TableCheckpoint)(nil)

func (t *TableCheckpoint) key() Item {
	k := checkpointPrefix + t.KeyDelimiter + t.source
	return Item{
		AttributeNameSource: &types.AttributeValueMemberS{Value: k},
		AttributeNameTarget: &types.AttributeValueMemberS{Value: k},
	}
}

// MarshalPut marshals cp into a put item request.
func (t *TableCheckpoint) MarshalPut(cp Checkpoint) (*dynamodb.PutItemInput, error) {
	k := checkpointPrefix + t.KeyDelimiter + t.source
	record := checkpointItem{
		Source:    k,
		Target:    k,
		Label:     checkpointPrefix,
		Table:     t.source,
		Cursor:    cp.Cursor.String(),
		Pages:     cp.Pages,
		Records:   cp.Records,
		UpdatedAt: cp.UpdatedAt,
	}

	if t.TimeToLive > 0 {
		record.Expires = t.Tick().Add(t.TimeToLive).Unix()
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	return &dynamodb.PutItemInput{
		TableName: aws.String(t.TableName),
		Item:      item,
	}, nil
}

// Load implements CheckpointStore. A checkpoint past its expiry that DynamoDB
// has not yet deleted yields ErrCheckpointExpired.
func (t *TableCheckpoint) Load(ctx context.Context) (*Checkpoint, error) {
	result, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.TableName),
		Key:            t.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var record checkpointItem
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	if record.Expires > 0 && t.Tick().Unix() >= record.Expires {
		return nil, fmt.Errorf("%w: %s at %s, run reset to start over", ErrCheckpointExpired,
			record.Cursor, time.Unix(record.Expires, 0).UTC().Format(time.RFC3339))
	}

	if err := checkSource(t.source, record.Table); err != nil {
		return nil, err
	}

	cursor, err := ParseCursor(record.Cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	return &Checkpoint{
		Source:    record.Table,
		Cursor:    cursor,
		Pages:     record.Pages,
		Records:   record.Records,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Save implements CheckpointStore.
func (t *TableCheckpoint) Save(ctx context.Context, cp Checkpoint) error {
	input, err := t.MarshalPut(cp)
	if err != nil {
		return err
	}

	if _, err := t.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}

	return nil
}

// Clear implements CheckpointStore. DeleteItem on a missing key succeeds, so
// clearing an empty store is a no-op.
func (t *TableCheckpoint) Clear(ctx context.Context) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.TableName),
		Key:       t.key(),
	})
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
