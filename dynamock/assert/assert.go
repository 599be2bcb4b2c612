// Package assert provides fluent assertion utilities for testing exports:
// the newline-delimited output of dynadump and the DynamoDB items it reads.
//
// # Usage
//
//	import "github.com/nisimpson/dynadump/dynamock/assert"
//
//	// Assert on exported lines
//	assert.Lines(t, output).
//		HasCount(250).
//		EachHasField("_id").
//		NotHasField("id").
//		HasUniqueField("_id")
//
//	// Assert on DynamoDB items
//	assert.Items(t, result.Items).
//		HasCount(3).
//		ContainsKey("id", "u1")
package assert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// LinesAssertion provides fluent assertions for newline-delimited JSON.
type LinesAssertion struct {
	t    testing.TB
	raw  []string
	docs []map[string]any
}

// Lines parses data as one JSON object per line. Malformed lines and a
// missing final newline are reported as test errors.
func Lines(t testing.TB, data []byte) *LinesAssertion {
	t.Helper()
	a := &LinesAssertion{t: t}
	if len(data) == 0 {
		return a
	}

	if data[len(data)-1] != '\n' {
		t.Errorf("expected output to end with a newline")
	}

	for i, line := range bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n")) {
		a.raw = append(a.raw, string(line))

		decoder := json.NewDecoder(bytes.NewReader(line))
		decoder.UseNumber()

		var doc map[string]any
		if err := decoder.Decode(&doc); err != nil {
			t.Errorf("line %d is not a JSON object: %v: %q", i+1, err, line)
		}
		a.docs = append(a.docs, doc)
	}

	return a
}

// HasCount asserts that there are exactly expected lines.
func (a *LinesAssertion) HasCount(expected int) *LinesAssertion {
	a.t.Helper()
	if len(a.raw) != expected {
		a.t.Errorf("expected %d lines, got %d", expected, len(a.raw))
	}
	return a
}

// IsEmpty asserts that there are no lines.
func (a *LinesAssertion) IsEmpty() *LinesAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// EachHasField asserts that every line has the field.
func (a *LinesAssertion) EachHasField(field string) *LinesAssertion {
	a.t.Helper()
	for i, doc := range a.docs {
		if _, ok := doc[field]; !ok {
			a.t.Errorf("line %d missing field %q: %s", i+1, field, a.raw[i])
		}
	}
	return a
}

// NotHasField asserts that no line has the field.
func (a *LinesAssertion) NotHasField(field string) *LinesAssertion {
	a.t.Helper()
	for i, doc := range a.docs {
		if _, ok := doc[field]; ok {
			a.t.Errorf("line %d has unexpected field %q: %s", i+1, field, a.raw[i])
		}
	}
	return a
}

// HasUniqueField asserts that no two lines share a value of the field.
func (a *LinesAssertion) HasUniqueField(field string) *LinesAssertion {
	a.t.Helper()
	seen := make(map[string]int)
	for i, doc := range a.docs {
		v, ok := doc[field]
		if !ok {
			continue
		}
		key := fmt.Sprint(v)
		if first, dup := seen[key]; dup {
			a.t.Errorf("lines %d and %d share %s=%s", first+1, i+1, field, key)
			continue
		}
		seen[key] = i
	}
	return a
}

// ContainsValue asserts that at least one line has the field with the
// expected value, compared in its printed form.
func (a *LinesAssertion) ContainsValue(field, expected string) *LinesAssertion {
	a.t.Helper()
	for _, doc := range a.docs {
		if v, ok := doc[field]; ok && fmt.Sprint(v) == expected {
			return a
		}
	}
	a.t.Errorf("expected a line with %s=%s", field, expected)
	return a
}

// InOrder asserts that the values of field, in line order, equal expected.
func (a *LinesAssertion) InOrder(field string, expected ...string) *LinesAssertion {
	a.t.Helper()
	got := a.Values(field)
	if len(got) != len(expected) {
		a.t.Errorf("expected %d values of %s, got %d", len(expected), field, len(got))
		return a
	}
	for i := range expected {
		if got[i] != expected[i] {
			a.t.Errorf("line %d: expected %s=%s, got %s", i+1, field, expected[i], got[i])
		}
	}
	return a
}

// Values returns the printed value of field for every line that has it.
func (a *LinesAssertion) Values(field string) []string {
	values := make([]string, 0, len(a.docs))
	for _, doc := range a.docs {
		if v, ok := doc[field]; ok {
			values = append(values, fmt.Sprint(v))
		}
	}
	return values
}

// ItemsAssertion provides fluent assertions for DynamoDB items.
type ItemsAssertion struct {
	t     testing.TB
	items []map[string]types.AttributeValue
}

// Items creates a new ItemsAssertion for the given DynamoDB items.
func Items(t testing.TB, items []map[string]types.AttributeValue) *ItemsAssertion {
	return &ItemsAssertion{
		t:     t,
		items: items,
	}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// ContainsKey asserts that an item has the string or number attribute with
// the expected value.
func (a *ItemsAssertion) ContainsKey(attributeName, expectedValue string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if scalarValue(item[attributeName]) == expectedValue {
			return a
		}
	}

	a.t.Errorf("expected to find item with %s=%s", attributeName, expectedValue)
	return a
}

// EachHasAttribute asserts that every item has the attribute.
func (a *ItemsAssertion) EachHasAttribute(attributeName string) *ItemsAssertion {
	a.t.Helper()
	for i, item := range a.items {
		if _, ok := item[attributeName]; !ok {
			a.t.Errorf("item %d missing attribute %s", i, attributeName)
		}
	}
	return a
}

func scalarValue(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return "\x00"
	}
}
