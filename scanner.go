package dynadump

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Page is one batch of items plus the cursor of the following page.
// Next is nil when no items remain beyond this page.
type Page struct {
	Items []Item
	Next  *Cursor
}

// PageFetcher retrieves the page that follows cursor, or the first page when
// cursor is nil.
//
// Implementations report a missing source with ErrSourceNotFound and
// retryable failures with *TransientError; they never retry themselves.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor *Cursor) (Page, error)
}

// Scanner is a PageFetcher that walks a DynamoDB table with Scan.
type Scanner struct {
	TableName      string   // Exported table
	KeyAttribute   string   // Partition key attribute. Default is "id".
	Limit          int      // Maximum number of items evaluated per page; 0 uses the service default
	ConsistentRead bool     // Use strongly consistent reads
	Attributes     []string // Optional projection; the key attribute is always included

	client ScanAPI
}

// NewScanner creates a Scanner for tableName with default configuration.
func NewScanner(client ScanAPI, tableName string, opts ...func(*Scanner)) *Scanner {
	s := &Scanner{
		TableName:    tableName,
		KeyAttribute: DefaultKeyAttribute,
		client:       client,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ PageFetcher = (*Scanner)(nil)

// MarshalScan builds the scan request for the page after cursor.
func (s *Scanner) MarshalScan(cursor *Cursor) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.TableName),
	}

	if s.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	if s.Limit > math.MaxInt32 {
		return nil, fmt.Errorf("scan limit %d exceeds %d", s.Limit, math.MaxInt32)
	}
	if s.Limit > 0 {
		input.Limit = aws.Int32(int32(s.Limit))
	}

	if len(s.Attributes) > 0 {
		projection := expression.NamesList(expression.Name(s.KeyAttribute))
		for _, name := range s.Attributes {
			if name == s.KeyAttribute {
				continue
			}
			projection = projection.AddNames(expression.Name(name))
		}

		expr, err := expression.NewBuilder().WithProjection(projection).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build projection: %w", err)
		}

		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}

	if cursor != nil {
		startKey, err := cursor.StartKey(s.KeyAttribute)
		if err != nil {
			return nil, fmt.Errorf("failed to build start key: %w", err)
		}
		input.ExclusiveStartKey = startKey
	}

	return input, nil
}

// FetchPage implements PageFetcher.
func (s *Scanner) FetchPage(ctx context.Context, cursor *Cursor) (Page, error) {
	input, err := s.MarshalScan(cursor)
	if err != nil {
		return Page{}, err
	}

	output, err := s.client.Scan(ctx, input)
	if err != nil {
		return Page{}, s.classify(ctx, err)
	}

	next, err := CursorFromKey(s.KeyAttribute, output.LastEvaluatedKey)
	if err != nil {
		return Page{}, err
	}

	return Page{Items: output.Items, Next: next}, nil
}

func (s *Scanner) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if isNotFound(err) {
		return fmt.Errorf("%w: table %q: %v", ErrSourceNotFound, s.TableName, err)
	}

	return &TransientError{Err: fmt.Errorf("scan %q: %w", s.TableName, err)}
}

func isNotFound(err error) bool {
	var notFoundErr *types.ResourceNotFoundException
	if errors.As(err, &notFoundErr) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}
