package dynamock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBAPICall is the signature shared by every DynamoDB client method.
type DynamoDBAPICall[In, Out any] = func(context.Context, *In, ...func(*dynamodb.Options)) (*Out, error)

// DynamoDBAPI lists the client methods dynadump and its fixtures call.
// *dynamodb.Client, MemDB and MockClient all satisfy it.
type DynamoDBAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var (
	_ DynamoDBAPI = (*MockClient)(nil)
	_ DynamoDBAPI = (*MemDB)(nil)
	_ DynamoDBAPI = (*dynamodb.Client)(nil)
)

// MockClient answers each DynamoDB call with the function assigned to the
// matching field. Fields left at their defaults fail the test when called.
type MockClient struct {
	ScanFunc           DynamoDBAPICall[dynamodb.ScanInput, dynamodb.ScanOutput]
	GetFunc            DynamoDBAPICall[dynamodb.GetItemInput, dynamodb.GetItemOutput]
	PutFunc            DynamoDBAPICall[dynamodb.PutItemInput, dynamodb.PutItemOutput]
	DeleteFunc         DynamoDBAPICall[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput]
	BatchWriteItemFunc DynamoDBAPICall[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput]
}

// NewMockClient returns a MockClient with no expectations set.
func NewMockClient(t testing.TB) *MockClient {
	return &MockClient{
		ScanFunc:           unexpected[dynamodb.ScanInput, dynamodb.ScanOutput](t, "Scan"),
		GetFunc:            unexpected[dynamodb.GetItemInput, dynamodb.GetItemOutput](t, "GetItem"),
		PutFunc:            unexpected[dynamodb.PutItemInput, dynamodb.PutItemOutput](t, "PutItem"),
		DeleteFunc:         unexpected[dynamodb.DeleteItemInput, dynamodb.DeleteItemOutput](t, "DeleteItem"),
		BatchWriteItemFunc: unexpected[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput](t, "BatchWriteItem"),
	}
}

func unexpected[In, Out any](t testing.TB, op string) DynamoDBAPICall[In, Out] {
	return func(context.Context, *In, ...func(*dynamodb.Options)) (*Out, error) {
		t.Helper()
		t.Fatalf("dynamock: %s called without an expectation", op)
		return nil, nil
	}
}

func (m *MockClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return m.ScanFunc(ctx, params, optFns...)
}

func (m *MockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetFunc(ctx, params, optFns...)
}

func (m *MockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutFunc(ctx, params, optFns...)
}

func (m *MockClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return m.DeleteFunc(ctx, params, optFns...)
}

func (m *MockClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return m.BatchWriteItemFunc(ctx, params, optFns...)
}
