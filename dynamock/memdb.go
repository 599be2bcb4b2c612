package dynamock

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// ScanHook is called before MemDB serves a Scan. call counts Scan requests
// from 1. A non-nil error is returned to the caller instead of a page.
type ScanHook func(ctx context.Context, call int, params *dynamodb.ScanInput) error

// MemDB is an in-memory DynamoDB that serves Scan, PutItem, GetItem,
// DeleteItem and BatchWriteItem. Scans walk items in ascending key order and
// honor Limit, ExclusiveStartKey and simple projections, so paginated reads
// behave like the real service.
//
// Like DynamoDB, a scan that stops because it reached Limit returns a
// LastEvaluatedKey even when no items remain, which yields an empty final page.
type MemDB struct {
	ScanHook ScanHook // Optional failure injection for Scan

	mu     sync.Mutex
	tables map[string]*memTable
	scans  int
}

type memTable struct {
	hashKey  string
	rangeKey string
	items    map[string]map[string]types.AttributeValue
}

// Ensure MemDB implements DynamoDBAPI
var _ DynamoDBAPI = (*MemDB)(nil)

// NewMemDB creates an empty in-memory database.
func NewMemDB() *MemDB {
	return &MemDB{tables: make(map[string]*memTable)}
}

// CreateTable adds a table keyed by hashKey and, when given, a range key.
// Creating an existing table replaces it.
func (m *MemDB) CreateTable(name, hashKey string, rangeKey ...string) *MemDB {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &memTable{hashKey: hashKey, items: make(map[string]map[string]types.AttributeValue)}
	if len(rangeKey) > 0 {
		t.rangeKey = rangeKey[0]
	}
	m.tables[name] = t
	return m
}

// DeleteTable removes a table. Subsequent requests for it fail with
// ResourceNotFoundException.
func (m *MemDB) DeleteTable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, name)
}

// Items returns the items of a table in scan order.
func (m *MemDB) Items(name string) []map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return nil
	}
	return t.sorted()
}

// Scans returns the number of Scan requests received, including failed ones.
func (m *MemDB) Scans() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

func (m *MemDB) table(name *string) (*memTable, error) {
	t, ok := m.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Requested resource not found: Table: %s not found", aws.ToString(name))),
		}
	}
	return t, nil
}

// Scan implements DynamoDBAPI.
func (m *MemDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	m.scans++
	call := m.scans
	hook := m.ScanHook
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if hook != nil {
		if err := hook(ctx, call, params); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}

	items := t.sorted()
	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		if err := t.validateKey(params.ExclusiveStartKey); err != nil {
			return nil, err
		}
		start = sort.Search(len(items), func(i int) bool {
			return t.compare(items[i], params.ExclusiveStartKey) > 0
		})
	}

	limit := len(items) - start
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}

	page := items[start : start+limit]
	projection := projectionNames(params.ProjectionExpression, params.ExpressionAttributeNames)

	output := &dynamodb.ScanOutput{
		Items:        make([]map[string]types.AttributeValue, 0, len(page)),
		Count:        int32(len(page)),
		ScannedCount: int32(len(page)),
	}
	for _, item := range page {
		output.Items = append(output.Items, project(item, projection))
	}

	if params.Limit != nil && len(page) == int(*params.Limit) && len(page) > 0 {
		output.LastEvaluatedKey = t.keyOf(page[len(page)-1])
	}

	return output, nil
}

// PutItem implements DynamoDBAPI.
func (m *MemDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.put(params.Item); err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

// GetItem implements DynamoDBAPI.
func (m *MemDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.validateKey(params.Key); err != nil {
		return nil, err
	}

	item, ok := t.items[t.id(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

// DeleteItem implements DynamoDBAPI. Deleting a missing item succeeds.
func (m *MemDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.validateKey(params.Key); err != nil {
		return nil, err
	}

	delete(t.items, t.id(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// BatchWriteItem implements DynamoDBAPI. Every request is processed, so
// UnprocessedItems is always empty.
func (m *MemDB) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, requests := range params.RequestItems {
		t, err := m.table(aws.String(name))
		if err != nil {
			return nil, err
		}
		for _, request := range requests {
			switch {
			case request.PutRequest != nil:
				if err := t.put(request.PutRequest.Item); err != nil {
					return nil, err
				}
			case request.DeleteRequest != nil:
				if err := t.validateKey(request.DeleteRequest.Key); err != nil {
					return nil, err
				}
				delete(t.items, t.id(request.DeleteRequest.Key))
			}
		}
	}

	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (t *memTable) put(item map[string]types.AttributeValue) error {
	if err := t.validateKey(item); err != nil {
		return err
	}
	t.items[t.id(item)] = copyItem(item)
	return nil
}

func (t *memTable) validateKey(item map[string]types.AttributeValue) error {
	for _, name := range t.keyNames() {
		av, ok := item[name]
		if !ok {
			return &smithy.GenericAPIError{
				Code:    "ValidationException",
				Message: fmt.Sprintf("One of the required keys was not given a value: %s", name),
			}
		}
		if _, ok := scalarText(av); !ok {
			return &smithy.GenericAPIError{
				Code:    "ValidationException",
				Message: fmt.Sprintf("Key attribute %s must be a scalar", name),
			}
		}
	}
	return nil
}

func (t *memTable) keyNames() []string {
	if t.rangeKey == "" {
		return []string{t.hashKey}
	}
	return []string{t.hashKey, t.rangeKey}
}

func (t *memTable) keyOf(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	key := make(map[string]types.AttributeValue, 2)
	for _, name := range t.keyNames() {
		key[name] = item[name]
	}
	return key
}

func (t *memTable) id(item map[string]types.AttributeValue) string {
	parts := make([]string, 0, 2)
	for _, name := range t.keyNames() {
		text, _ := scalarText(item[name])
		parts = append(parts, fmt.Sprintf("%T:%s", item[name], text))
	}
	return strings.Join(parts, "|")
}

func (t *memTable) sorted() []map[string]types.AttributeValue {
	items := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, copyItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		return t.compare(items[i], items[j]) < 0
	})
	return items
}

func (t *memTable) compare(a, b map[string]types.AttributeValue) int {
	for _, name := range t.keyNames() {
		if c := compareScalar(a[name], b[name]); c != 0 {
			return c
		}
	}
	return 0
}

// compareScalar orders numbers numerically and strings and binaries bytewise.
func compareScalar(a, b types.AttributeValue) int {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		x, _, errx := big.ParseFloat(an.Value, 10, 256, big.ToNearestEven)
		y, _, erry := big.ParseFloat(bn.Value, 10, 256, big.ToNearestEven)
		if errx == nil && erry == nil {
			return x.Cmp(y)
		}
	}

	at, _ := scalarText(a)
	bt, _ := scalarText(b)
	return strings.Compare(at, bt)
}

func scalarText(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	case *types.AttributeValueMemberB:
		return string(v.Value), true
	default:
		return "", false
	}
}

// projectionNames resolves a projection expression of top-level names, the
// form produced by the expression builder.
func projectionNames(expr *string, names map[string]string) []string {
	if expr == nil || *expr == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(*expr, ",") {
		name := strings.TrimSpace(part)
		if resolved, ok := names[name]; ok {
			name = resolved
		}
		out = append(out, name)
	}
	return out
}

func project(item map[string]types.AttributeValue, names []string) map[string]types.AttributeValue {
	if len(names) == 0 {
		return item
	}
	out := make(map[string]types.AttributeValue, len(names))
	for _, name := range names {
		if av, ok := item[name]; ok {
			out[name] = av
		}
	}
	return out
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
