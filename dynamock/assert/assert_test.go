package assert

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// recorder captures assertion failures instead of failing the test.
type recorder struct {
	testing.TB
	failures []string
}

func (r *recorder) Helper() {}

func (r *recorder) Error(args ...any) {
	r.failures = append(r.failures, fmt.Sprint(args...))
}

func (r *recorder) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

const output = `{"_id":"u1","age":36}
{"_id":"u2","age":41}
`

func TestLines_Passing(t *testing.T) {
	Lines(t, []byte(output)).
		HasCount(2).
		EachHasField("_id").
		NotHasField("id").
		HasUniqueField("_id").
		ContainsValue("age", "41").
		InOrder("_id", "u1", "u2")
}

func TestLines_Empty(t *testing.T) {
	Lines(t, nil).IsEmpty()
}

func TestLines_Failures(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		assert func(a *LinesAssertion)
	}{
		{
			name:   "wrong count",
			input:  output,
			assert: func(a *LinesAssertion) { a.HasCount(3) },
		},
		{
			name:   "missing trailing newline",
			input:  `{"_id":"u1"}`,
			assert: func(a *LinesAssertion) {},
		},
		{
			name:   "not json",
			input:  "not json\n",
			assert: func(a *LinesAssertion) {},
		},
		{
			name:   "duplicate identity",
			input:  "{\"_id\":\"u1\"}\n{\"_id\":\"u1\"}\n",
			assert: func(a *LinesAssertion) { a.HasUniqueField("_id") },
		},
		{
			name:   "unexpected field",
			input:  output,
			assert: func(a *LinesAssertion) { a.NotHasField("age") },
		},
		{
			name:   "missing field",
			input:  output,
			assert: func(a *LinesAssertion) { a.EachHasField("name") },
		},
		{
			name:   "wrong order",
			input:  output,
			assert: func(a *LinesAssertion) { a.InOrder("_id", "u2", "u1") },
		},
		{
			name:   "missing value",
			input:  output,
			assert: func(a *LinesAssertion) { a.ContainsValue("_id", "u3") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{TB: t}
			tt.assert(Lines(r, []byte(tt.input)))

			if len(r.failures) == 0 {
				t.Error("expected assertion failure")
			}
		})
	}
}

func TestItems(t *testing.T) {
	items := []map[string]types.AttributeValue{
		{"id": &types.AttributeValueMemberS{Value: "u1"}},
		{"id": &types.AttributeValueMemberN{Value: "2"}},
	}

	Items(t, items).
		HasCount(2).
		ContainsKey("id", "u1").
		ContainsKey("id", "2").
		EachHasAttribute("id")

	r := &recorder{TB: t}
	Items(r, items).ContainsKey("id", "u3").EachHasAttribute("name")
	if len(r.failures) != 3 {
		t.Errorf("expected 3 failures, got %v", r.failures)
	}

	Items(t, nil).IsEmpty()
}
