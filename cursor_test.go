package dynadump

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestCursorFromKey(t *testing.T) {
	t.Run("empty key", func(t *testing.T) {
		for _, key := range []Item{nil, {}} {
			cursor, err := CursorFromKey("id", key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cursor != nil {
				t.Errorf("expected nil cursor, got %v", cursor)
			}
		}
	})

	t.Run("scalar keys", func(t *testing.T) {
		tests := []struct {
			name string
			av   types.AttributeValue
			want Cursor
		}{
			{"string", &types.AttributeValueMemberS{Value: "u1"}, Cursor{KeyTypeString, "u1"}},
			{"number", &types.AttributeValueMemberN{Value: "12345678901234567890.000001"}, Cursor{KeyTypeNumber, "12345678901234567890.000001"}},
			{"binary", &types.AttributeValueMemberB{Value: []byte{0xff, 0x00}}, Cursor{KeyTypeBinary, "/wA="}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cursor, err := CursorFromKey("id", Item{"id": tt.av})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if *cursor != tt.want {
					t.Errorf("expected %v, got %v", tt.want, *cursor)
				}
			})
		}
	})

	t.Run("unsupported keys", func(t *testing.T) {
		tests := map[string]Item{
			"composite": {
				"id": &types.AttributeValueMemberS{Value: "u1"},
				"sk": &types.AttributeValueMemberS{Value: "a"},
			},
			"other attribute": {"pk": &types.AttributeValueMemberS{Value: "u1"}},
			"not scalar":      {"id": &types.AttributeValueMemberBOOL{Value: true}},
		}

		for name, key := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := CursorFromKey("id", key)
				if !errors.Is(err, ErrUnsupportedKey) {
					t.Errorf("expected ErrUnsupportedKey, got %v", err)
				}
			})
		}
	})
}

func TestCursor_StartKey(t *testing.T) {
	t.Run("round trips through last evaluated key", func(t *testing.T) {
		for _, av := range []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "u1"},
			&types.AttributeValueMemberN{Value: "0.10"},
			&types.AttributeValueMemberB{Value: []byte("key")},
		} {
			cursor, err := CursorFromKey("id", Item{"id": av})
			if err != nil {
				t.Fatalf("CursorFromKey failed: %v", err)
			}

			key, err := cursor.StartKey("id")
			if err != nil {
				t.Fatalf("StartKey failed: %v", err)
			}

			again, err := CursorFromKey("id", key)
			if err != nil {
				t.Fatalf("CursorFromKey failed: %v", err)
			}
			if *again != *cursor {
				t.Errorf("expected %v, got %v", *cursor, *again)
			}
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		if _, err := (Cursor{Type: "X", Value: "1"}).StartKey("id"); err == nil {
			t.Error("expected error for invalid type")
		}
	})
}

func TestParseCursor(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tests := map[string]Cursor{
			"S:u1":    {KeyTypeString, "u1"},
			"S:":      {KeyTypeString, ""},
			"S:a:b":   {KeyTypeString, "a:b"},
			"N:-1e10": {KeyTypeNumber, "-1e10"},
			"B:AQI=":  {KeyTypeBinary, "AQI="},
		}

		for input, want := range tests {
			got, err := ParseCursor(input)
			if err != nil {
				t.Errorf("ParseCursor(%q) failed: %v", input, err)
				continue
			}
			if got != want {
				t.Errorf("ParseCursor(%q): expected %v, got %v", input, want, got)
			}
			if got.String() != input {
				t.Errorf("String(): expected %q, got %q", input, got.String())
			}
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, input := range []string{"", "u1", "X:1", "N:", "B:not base64!"} {
			if _, err := ParseCursor(input); err == nil {
				t.Errorf("ParseCursor(%q): expected error", input)
			}
		}
	})
}

func TestCursor_JSON(t *testing.T) {
	type wrapper struct {
		Cursor Cursor `json:"cursor"`
	}

	data, err := json.Marshal(wrapper{Cursor{KeyTypeNumber, "42"}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"cursor":"N:42"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Cursor != (Cursor{KeyTypeNumber, "42"}) {
		t.Errorf("unexpected cursor %v", decoded.Cursor)
	}

	if err := json.Unmarshal([]byte(`{"cursor":"bogus"}`), &decoded); err == nil {
		t.Error("expected error for invalid cursor text")
	}
}
