package dynamock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SeedFromJSON reads a JSON array of objects and writes each object to the
// table as one item. Numbers keep their exact decimal text. Returns the number
// of items saved and any errors generated.
//
//	[
//	  {"id": "u1", "name": "Ada", "age": 36},
//	  {"id": "u2", "name": "Grace", "tags": ["navy", "cobol"]}
//	]
func (s *SeedTestData) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	items, err := ItemsFromJSON(r)
	if err != nil {
		return 0, err
	}

	if err := s.SeedItems(ctx, items...); err != nil {
		return 0, err
	}

	return len(items), nil
}

// ItemsFromJSON decodes a JSON array of objects into DynamoDB items.
func ItemsFromJSON(r io.Reader) ([]map[string]types.AttributeValue, error) {
	var documents []map[string]any
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&documents); err != nil {
		return nil, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	items := make([]map[string]types.AttributeValue, 0, len(documents))
	for i, document := range documents {
		if document == nil {
			return nil, fmt.Errorf("document at index %d is null", i)
		}

		item, err := attributevalue.MarshalMap(numbers(document))
		if err != nil {
			return nil, fmt.Errorf("failed to convert document at index %d: %w", i, err)
		}
		items = append(items, item)
	}

	return items, nil
}

// numbers replaces json.Number values, which would otherwise marshal as
// strings, with attributevalue.Number.
func numbers(v any) any {
	switch value := v.(type) {
	case json.Number:
		return attributevalue.Number(value.String())
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, elem := range value {
			out[k] = numbers(elem)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = numbers(elem)
		}
		return out
	default:
		return v
	}
}
