package dynamock

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxBatchSize is the largest number of requests DynamoDB accepts in one
// BatchWriteItem call.
const MaxBatchSize = 25

// BatchWriteAPI is the subset of the DynamoDB client used for seeding.
type BatchWriteAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// SeedTestData fills one table with fixture items.
type SeedTestData struct {
	client    BatchWriteAPI
	tableName string
}

// NewSeedTestData returns a seeder for tableName. client may be a
// *dynamodb.Client, a MemDB or a MockClient.
func NewSeedTestData(client BatchWriteAPI, tableName string) *SeedTestData {
	return &SeedTestData{client: client, tableName: tableName}
}

// SeedItems writes items in batches of MaxBatchSize, resubmitting
// unprocessed items until every item is stored.
func (s *SeedTestData) SeedItems(ctx context.Context, items ...map[string]types.AttributeValue) error {
	for batch := range chunk(items, MaxBatchSize) {
		requests := make([]types.WriteRequest, len(batch.items))
		for i, item := range batch.items {
			requests[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
		}

		if err := s.flush(ctx, requests); err != nil {
			return fmt.Errorf("seed items %d-%d: %w", batch.offset, batch.offset+len(batch.items)-1, err)
		}
	}
	return nil
}

func (s *SeedTestData) flush(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{s.tableName: requests}
	delay := 50 * time.Millisecond

	for {
		output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		if len(output.UnprocessedItems) == 0 {
			return nil
		}
		pending = output.UnprocessedItems

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(2*delay, time.Second)
	}
}

type itemBatch struct {
	offset int
	items  []map[string]types.AttributeValue
}

func chunk(items []map[string]types.AttributeValue, size int) func(yield func(itemBatch) bool) {
	return func(yield func(itemBatch) bool) {
		for offset := 0; offset < len(items); offset += size {
			end := min(offset+size, len(items))
			if !yield(itemBatch{offset: offset, items: items[offset:end]}) {
				return
			}
		}
	}
}
