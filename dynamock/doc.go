// Package dynamock provides testing utilities for the dynadump library.
//
// This package includes:
//   - Expectation-based mock DynamoDB client for unit testing
//   - An in-memory DynamoDB (MemDB) with real Scan pagination
//   - An in-memory file system with failure injection
//   - Item builders with functional options
//   - Test data seeding helpers, including JSON fixtures
//   - Local DynamoDB integration utilities with automatic cleanup
//
// # Mock Client
//
// The MockClient provides an expectation-based mock implementation where you set
// expectations for specific operations:
//
//	mock := dynamock.NewMockClient(t)
//	mock.ScanFunc = func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
//		return &dynamodb.ScanOutput{}, nil
//	}
//
//	scanner := dynadump.NewScanner(mock, "users")
//
// # In-Memory DynamoDB
//
// MemDB serves Scan requests from sorted in-memory tables. Limit and
// ExclusiveStartKey behave as they do in DynamoDB, so exports can be driven
// end to end without a network:
//
//	db := dynamock.NewMemDB().CreateTable("users", "id")
//	err := dynamock.NewSeedTestData(db, "users").SeedItems(ctx, dynamock.SequentialItems(250, "id")...)
//
//	// Fail the second scan
//	db.ScanHook = func(ctx context.Context, call int, params *dynamodb.ScanInput) error {
//		if call == 2 {
//			return errors.New("throttled")
//		}
//		return nil
//	}
//
// # In-Memory File System
//
// MemFileSystem implements dynadump.FileSystem and counts writes per path:
//
//	disk := dynamock.NewMemFileSystem()
//	disk.AppendHook = dynamock.FailAfter(1, errors.New("disk full"))
//
// # Item Builders
//
//	item := dynamock.NewItem(
//		dynamock.WithString("id", "u1"),
//		dynamock.WithInt("age", 36),
//		dynamock.WithMap("address", dynamock.WithString("city", "Lisbon")),
//	).Build()
//
// # Local DynamoDB
//
// For integration testing, the package provides utilities to work with
// local DynamoDB instances:
//
//	dynamock.WithDefaultLocalDynamoDB(t, func(local *dynamock.LocalDynamoDB) {
//		dynamock.WithIsolatedTable(t, local, "id", func(tableName string) {
//			// Your test code here
//		})
//	})
package dynamock
