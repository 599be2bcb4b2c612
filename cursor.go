package dynadump

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeyType identifies the DynamoDB scalar type of a cursor value.
type KeyType string

const (
	KeyTypeString KeyType = "S"
	KeyTypeNumber KeyType = "N"
	KeyTypeBinary KeyType = "B"
)

// Cursor marks a position in the exported table: the key value of the last
// item of a committed page. The value is kept in the wire form DynamoDB uses
// (decimal text for numbers, standard base64 for binary) so that it survives
// persistence without any numeric conversion.
//
// A nil *Cursor means "start of the table" when passed to a fetcher and
// "no more data" when returned in a [Page].
type Cursor struct {
	Type  KeyType
	Value string
}

// CursorFromKey converts a LastEvaluatedKey into a cursor. The key must hold
// exactly one attribute, named keyAttribute, of a scalar type. A nil or empty
// key yields a nil cursor.
func CursorFromKey(keyAttribute string, lastkey Item) (*Cursor, error) {
	if len(lastkey) == 0 {
		return nil, nil
	}

	if len(lastkey) != 1 {
		return nil, fmt.Errorf("%w: last evaluated key has %d attributes", ErrUnsupportedKey, len(lastkey))
	}

	av, ok := lastkey[keyAttribute]
	if !ok {
		return nil, fmt.Errorf("%w: last evaluated key has no attribute %q", ErrUnsupportedKey, keyAttribute)
	}

	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &Cursor{Type: KeyTypeString, Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return &Cursor{Type: KeyTypeNumber, Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return &Cursor{Type: KeyTypeBinary, Value: base64.StdEncoding.EncodeToString(v.Value)}, nil
	default:
		return nil, fmt.Errorf("%w: attribute %q is %T, not a scalar key", ErrUnsupportedKey, keyAttribute, av)
	}
}

// StartKey builds the ExclusiveStartKey that resumes a scan after c.
func (c Cursor) StartKey(keyAttribute string) (Item, error) {
	av, err := c.attributeValue()
	if err != nil {
		return nil, err
	}
	return Item{keyAttribute: av}, nil
}

func (c Cursor) attributeValue() (types.AttributeValue, error) {
	switch c.Type {
	case KeyTypeString:
		return &types.AttributeValueMemberS{Value: c.Value}, nil
	case KeyTypeNumber:
		return &types.AttributeValueMemberN{Value: c.Value}, nil
	case KeyTypeBinary:
		b, err := base64.StdEncoding.DecodeString(c.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid binary cursor: %w", err)
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	default:
		return nil, fmt.Errorf("invalid cursor type %q", c.Type)
	}
}

// String returns the persisted form of the cursor: "<type>:<value>".
func (c Cursor) String() string {
	return string(c.Type) + ":" + c.Value
}

// ParseCursor parses the output of [Cursor.String].
func ParseCursor(s string) (Cursor, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return Cursor{}, fmt.Errorf("invalid cursor %q: missing type prefix", s)
	}

	c := Cursor{Type: KeyType(kind), Value: value}
	if _, err := c.attributeValue(); err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor %q: %w", s, err)
	}
	if c.Type == KeyTypeNumber && value == "" {
		return Cursor{}, fmt.Errorf("invalid cursor %q: empty number", s)
	}
	return c, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Cursor) MarshalText() ([]byte, error) {
	if _, err := c.attributeValue(); err != nil {
		return nil, err
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cursor) UnmarshalText(text []byte) error {
	parsed, err := ParseCursor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
