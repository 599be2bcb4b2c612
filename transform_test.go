package dynadump

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/dynadump/dynamock"
)

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"json", "dynamodb", "extjson"} {
		if f, err := ParseFormat(name); err != nil || string(f) != name {
			t.Errorf("ParseFormat(%q) = %q, %v", name, f, err)
		}
	}

	if _, err := ParseFormat("csv"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestTransformer_Transform(t *testing.T) {
	user := dynamock.NewItem(
		dynamock.WithString("id", "u1"),
		dynamock.WithString("name", "Ada <Lovelace>"),
		dynamock.WithNumber("balance", "12345678901234567890.123"),
		dynamock.WithBool("active", true),
		dynamock.WithNull("deleted"),
		dynamock.WithBinary("avatar", []byte{0x01, 0x02}),
		dynamock.WithStringSet("tags", "a", "b"),
		dynamock.WithList("scores", &types.AttributeValueMemberN{Value: "1"}, &types.AttributeValueMemberS{Value: "x"}),
		dynamock.WithMap("address", dynamock.WithString("city", "Lisbon"), dynamock.WithInt("zip", 1000)),
	).Build()

	t.Run("json format", func(t *testing.T) {
		line, err := NewTransformer().Transform(user)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		want := `{"_id":"u1","active":true,"address":{"city":"Lisbon","zip":1000},"avatar":"AQI=","balance":12345678901234567890.123,"deleted":null,"name":"Ada <Lovelace>","scores":[1,"x"],"tags":["a","b"]}`
		if string(line) != want {
			t.Errorf("unexpected line\nwant: %s\ngot:  %s", want, line)
		}
	})

	t.Run("dynamodb format", func(t *testing.T) {
		transformer := NewTransformer(func(tr *Transformer) {
			tr.Format = FormatDynamoDB
		})

		line, err := transformer.Transform(dynamock.NewItem(
			dynamock.WithString("id", "u1"),
			dynamock.WithNumber("age", "36"),
			dynamock.WithList("l", &types.AttributeValueMemberNULL{Value: true}),
		).Build())
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		want := `{"_id":{"S":"u1"},"age":{"N":"36"},"l":{"L":[{"NULL":true}]}}`
		if string(line) != want {
			t.Errorf("unexpected line\nwant: %s\ngot:  %s", want, line)
		}
	})

	t.Run("extjson format", func(t *testing.T) {
		transformer := NewTransformer(func(tr *Transformer) {
			tr.Format = FormatExtJSON
		})

		line, err := transformer.Transform(dynamock.NewItem(
			dynamock.WithString("id", "u1"),
			dynamock.WithInt("age", 36),
			dynamock.WithNumber("ratio", "0.5"),
		).Build())
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		want := `{"_id":"u1","age":36,"ratio":{"$numberDecimal":"0.5"}}`
		if string(line) != want {
			t.Errorf("unexpected line\nwant: %s\ngot:  %s", want, line)
		}
	})

	t.Run("custom field names", func(t *testing.T) {
		transformer := NewTransformer(func(tr *Transformer) {
			tr.KeyAttribute = "pk"
			tr.IdentityField = "key"
		})

		line, err := transformer.Transform(dynamock.NewItem(
			dynamock.WithString("pk", "u1"),
			dynamock.WithString("id", "kept"),
		).Build())
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		if want := `{"id":"kept","key":"u1"}`; string(line) != want {
			t.Errorf("expected %s, got %s", want, line)
		}
	})

	t.Run("existing identity field is overwritten", func(t *testing.T) {
		line, err := NewTransformer().Transform(dynamock.NewItem(
			dynamock.WithString("id", "u1"),
			dynamock.WithString("_id", "stale"),
		).Build())
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		if want := `{"_id":"u1"}`; string(line) != want {
			t.Errorf("expected %s, got %s", want, line)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		item := dynamock.NewItem(dynamock.WithString("id", "u1")).Build()

		if _, err := NewTransformer().Transform(item); err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		if _, ok := item["id"]; !ok {
			t.Error("expected id to remain on the input item")
		}
		if _, ok := item["_id"]; ok {
			t.Error("expected input item not to gain _id")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		transformer := NewTransformer()
		first, err := transformer.Transform(user)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		for i := 0; i < 20; i++ {
			again, err := transformer.Transform(user)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			if !bytes.Equal(first, again) {
				t.Fatalf("output differs between calls:\n%s\n%s", first, again)
			}
		}
	})

	t.Run("newlines are escaped", func(t *testing.T) {
		line, err := NewTransformer().Transform(dynamock.NewItem(
			dynamock.WithString("id", "u1"),
			dynamock.WithString("bio", "line one\nline two"),
		).Build())
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}

		if bytes.IndexByte(line, '\n') >= 0 {
			t.Errorf("expected a single line, got %q", line)
		}
	})

	t.Run("malformed records", func(t *testing.T) {
		tests := map[string]Item{
			"missing key": dynamock.NewItem(dynamock.WithString("name", "Ada")).Build(),
			"invalid number": dynamock.NewItem(
				dynamock.WithString("id", "u1"),
				dynamock.WithNumber("age", "thirty"),
			).Build(),
		}

		for name, item := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := NewTransformer().Transform(item)
				if !errors.Is(err, ErrMalformedRecord) {
					t.Errorf("expected ErrMalformedRecord, got %v", err)
				}
			})
		}
	})
}
