package dynamock

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ItemOption is a functional option for configuring items during building.
type ItemOption func(*ItemBuilder)

// ItemBuilder builds DynamoDB items through functional options.
type ItemBuilder struct {
	item map[string]types.AttributeValue
}

// NewItem creates an item builder with the given options applied.
func NewItem(opts ...ItemOption) *ItemBuilder {
	builder := &ItemBuilder{item: make(map[string]types.AttributeValue)}
	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

// With applies further options to the builder.
func (b *ItemBuilder) With(opts ...ItemOption) *ItemBuilder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a copy of the configured item.
func (b *ItemBuilder) Build() map[string]types.AttributeValue {
	return copyItem(b.item)
}

// Functional Options

// WithAttribute sets an attribute to an arbitrary value.
func WithAttribute(name string, av types.AttributeValue) ItemOption {
	return func(b *ItemBuilder) {
		b.item[name] = av
	}
}

// WithString sets a string attribute.
func WithString(name, value string) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberS{Value: value})
}

// WithNumber sets a number attribute from its decimal text.
func WithNumber(name, value string) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberN{Value: value})
}

// WithInt sets a number attribute.
func WithInt(name string, value int) ItemOption {
	return WithNumber(name, strconv.Itoa(value))
}

// WithBool sets a boolean attribute.
func WithBool(name string, value bool) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberBOOL{Value: value})
}

// WithNull sets a null attribute.
func WithNull(name string) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberNULL{Value: true})
}

// WithBinary sets a binary attribute.
func WithBinary(name string, value []byte) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberB{Value: value})
}

// WithStringSet sets a string set attribute.
func WithStringSet(name string, values ...string) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberSS{Value: values})
}

// WithList sets a list attribute.
func WithList(name string, values ...types.AttributeValue) ItemOption {
	return WithAttribute(name, &types.AttributeValueMemberL{Value: values})
}

// WithMap sets a map attribute built from nested options.
func WithMap(name string, opts ...ItemOption) ItemOption {
	return func(b *ItemBuilder) {
		b.item[name] = &types.AttributeValueMemberM{Value: NewItem(opts...).Build()}
	}
}

// Without removes an attribute.
func Without(name string) ItemOption {
	return func(b *ItemBuilder) {
		delete(b.item, name)
	}
}

// SequentialItems builds n items whose string key attribute is
// "item-0000", "item-0001" and so on, each with a numeric "seq" attribute.
// Keys sort in creation order.
func SequentialItems(n int, keyAttribute string, opts ...ItemOption) []map[string]types.AttributeValue {
	items := make([]map[string]types.AttributeValue, 0, n)
	for i := 0; i < n; i++ {
		builder := NewItem(
			WithString(keyAttribute, SequentialKey(i)),
			WithInt("seq", i),
		)
		items = append(items, builder.With(opts...).Build())
	}
	return items
}

// SequentialKey returns the key SequentialItems assigns to item i.
func SequentialKey(i int) string {
	return fmt.Sprintf("item-%04d", i)
}
