package dynadump

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrSourceNotFound is returned when the exported table does not exist.
	ErrSourceNotFound = errors.New("source table not found")
	// ErrMalformedRecord is returned when a record cannot be transformed,
	// most commonly because it lacks the key attribute.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrSinkWrite is returned when a page could not be appended to the sink.
	ErrSinkWrite = errors.New("sink write failed")
	// ErrCheckpointWrite is returned when the checkpoint could not be saved or cleared.
	ErrCheckpointWrite = errors.New("checkpoint write failed")
	// ErrUnsupportedKey is returned when the table's pagination key is not a
	// single scalar attribute with the configured name.
	ErrUnsupportedKey = errors.New("unsupported pagination key")
	// ErrCheckpointMismatch is returned when a stored checkpoint belongs to another source.
	ErrCheckpointMismatch = errors.New("checkpoint belongs to another source")
	// ErrCheckpointExpired is returned when a stored checkpoint outlived its
	// time to live. The export cannot resume safely and must be reset.
	ErrCheckpointExpired = errors.New("checkpoint expired")
)

// TransientError wraps a fetch failure that may succeed when retried with
// the same cursor.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err, or any error it wraps, is a [TransientError].
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Clock is a function type that returns the current time for dependency injection.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// ScanAPI is the subset of the DynamoDB client used to read the exported table.
type ScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// CheckpointAPI is the subset of the DynamoDB client used by [TableCheckpoint].
type CheckpointAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBClient combines every DynamoDB operation used by this package.
// *dynamodb.Client satisfies it.
type DynamoDBClient interface {
	ScanAPI
	CheckpointAPI
}

var _ DynamoDBClient = (*dynamodb.Client)(nil)
