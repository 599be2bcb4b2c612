package dynadump

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Format selects the serialization of exported lines.
type Format string

const (
	// FormatJSON writes plain JSON documents, the shape produced by the
	// DynamoDB document client. Numbers are written verbatim.
	FormatJSON Format = "json"
	// FormatDynamoDB writes DynamoDB JSON with attribute type descriptors.
	FormatDynamoDB Format = "dynamodb"
	// FormatExtJSON writes MongoDB relaxed extended JSON, suitable for mongoimport.
	FormatExtJSON Format = "extjson"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatDynamoDB, FormatExtJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, dynamodb or extjson)", s)
	}
}

const (
	DefaultKeyAttribute  = "id"
	DefaultIdentityField = "_id"
)

// RecordTransformer maps one source item to one exported line.
type RecordTransformer interface {
	Transform(item Item) ([]byte, error)
}

// Transformer renames the key attribute of an item to the identity field
// expected by the destination and serializes the result on a single line.
type Transformer struct {
	KeyAttribute  string // Key attribute in the source table. Default is "id".
	IdentityField string // Name of the key in exported lines. Default is "_id".
	Format        Format // Serialization. Default is FormatJSON.
}

// NewTransformer creates a Transformer with default configuration.
func NewTransformer(opts ...func(*Transformer)) *Transformer {
	t := &Transformer{
		KeyAttribute:  DefaultKeyAttribute,
		IdentityField: DefaultIdentityField,
		Format:        FormatJSON,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ RecordTransformer = (*Transformer)(nil)

// Transform implements RecordTransformer. The input item is not modified.
// A missing key attribute yields ErrMalformedRecord.
func (t *Transformer) Transform(item Item) ([]byte, error) {
	key, ok := item[t.KeyAttribute]
	if !ok {
		return nil, fmt.Errorf("%w: missing key attribute %q", ErrMalformedRecord, t.KeyAttribute)
	}

	renamed := make(Item, len(item))
	for name, av := range item {
		if name == t.KeyAttribute {
			continue
		}
		renamed[name] = av
	}
	renamed[t.IdentityField] = key

	var (
		line []byte
		err  error
	)

	switch t.Format {
	case FormatJSON, "":
		line, err = encodeJSON(renamed, plainValue)
	case FormatDynamoDB:
		line, err = encodeJSON(renamed, typedValue)
	case FormatExtJSON:
		line, err = encodeExtJSON(renamed)
	default:
		return nil, fmt.Errorf("unknown format %q", t.Format)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if bytes.IndexByte(line, '\n') >= 0 {
		return nil, fmt.Errorf("%w: encoded record spans multiple lines", ErrMalformedRecord)
	}

	return line, nil
}

func encodeJSON(item Item, convert func(types.AttributeValue) (any, error)) ([]byte, error) {
	doc := make(map[string]any, len(item))
	for name, av := range item {
		v, err := convert(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		doc[name] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// plainValue converts an attribute value the way the document client does.
func plainValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return json.Number(v.Value), nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberSS:
		return v.Value, nil
	case *types.AttributeValueMemberNS:
		out := make([]json.Number, len(v.Value))
		for i, n := range v.Value {
			out[i] = json.Number(n)
		}
		return out, nil
	case *types.AttributeValueMemberBS:
		return v.Value, nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, elem := range v.Value {
			converted, err := plainValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for name, elem := range v.Value {
			converted, err := plainValue(elem)
			if err != nil {
				return nil, err
			}
			out[name] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
}

// typedValue converts an attribute value into DynamoDB JSON.
func typedValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}, nil
	case *types.AttributeValueMemberB:
		return map[string]any{"B": v.Value}, nil
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": v.Value}, nil
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": v.Value}, nil
	case *types.AttributeValueMemberBS:
		return map[string]any{"BS": v.Value}, nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, elem := range v.Value {
			converted, err := typedValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return map[string]any{"L": out}, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for name, elem := range v.Value {
			converted, err := typedValue(elem)
			if err != nil {
				return nil, err
			}
			out[name] = converted
		}
		return map[string]any{"M": out}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func encodeExtJSON(item Item) ([]byte, error) {
	doc, err := bsonDocument(item)
	if err != nil {
		return nil, err
	}
	return bson.MarshalExtJSON(doc, false, false)
}

// bsonDocument builds a document with keys in sorted order so that output is
// deterministic.
func bsonDocument(m map[string]types.AttributeValue) (bson.D, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := make(bson.D, 0, len(names))
	for _, name := range names {
		v, err := bsonValue(m[name])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		doc = append(doc, bson.E{Key: name, Value: v})
	}
	return doc, nil
}

func bsonValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return bsonNumber(v.Value)
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberB:
		return primitive.Binary{Data: v.Value}, nil
	case *types.AttributeValueMemberSS:
		out := make(bson.A, len(v.Value))
		for i, s := range v.Value {
			out[i] = s
		}
		return out, nil
	case *types.AttributeValueMemberNS:
		out := make(bson.A, len(v.Value))
		for i, n := range v.Value {
			num, err := bsonNumber(n)
			if err != nil {
				return nil, err
			}
			out[i] = num
		}
		return out, nil
	case *types.AttributeValueMemberBS:
		out := make(bson.A, len(v.Value))
		for i, b := range v.Value {
			out[i] = primitive.Binary{Data: b}
		}
		return out, nil
	case *types.AttributeValueMemberL:
		out := make(bson.A, len(v.Value))
		for i, elem := range v.Value {
			converted, err := bsonValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case *types.AttributeValueMemberM:
		return bsonDocument(v.Value)
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
}

// bsonNumber keeps integers as int64 and everything else as Decimal128, the
// only BSON type that holds a DynamoDB number without rounding.
func bsonNumber(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return d, nil
}
