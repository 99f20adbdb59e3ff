package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
)

func TestEvaluator_Operators(t *testing.T) {
	evaluator := NewEvaluator()

	vars := map[string]any{
		"amount": 150.0,
		"plan":   "vip",
		"count":  "3",
		"nested": map[string]any{"flag": true},
	}

	msg := &models.InboundMessage{
		ID:        "msg-1",
		ContactID: "contact-1",
		Text:      "order #42",
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq number", Condition{Field: "vars.amount", Operator: OpEquals, Value: 150}, true},
		{"eq string", Condition{Field: "vars.plan", Operator: OpEquals, Value: "vip"}, true},
		{"neq", Condition{Field: "vars.plan", Operator: OpNotEquals, Value: "basic"}, true},
		{"gt hit", Condition{Field: "vars.amount", Operator: OpGreaterThan, Value: 100}, true},
		{"gt miss", Condition{Field: "vars.amount", Operator: OpGreaterThan, Value: 200}, false},
		{"gte boundary", Condition{Field: "vars.amount", Operator: OpGreaterOrEqual, Value: 150}, true},
		{"lt", Condition{Field: "vars.amount", Operator: OpLessThan, Value: 200}, true},
		{"lte boundary", Condition{Field: "vars.amount", Operator: OpLessOrEqual, Value: 150}, true},
		{"numeric string coerces", Condition{Field: "vars.count", Operator: OpGreaterThan, Value: 2}, true},
		{"gt on non-numeric is false", Condition{Field: "vars.plan", Operator: OpGreaterThan, Value: 1}, false},
		{"contains", Condition{Field: "message.text", Operator: OpContains, Value: "order"}, true},
		{"regex", Condition{Field: "message.text", Operator: OpRegex, Value: `#\d+`}, true},
		{"exists", Condition{Field: "vars.plan", Operator: OpExists}, true},
		{"nested path", Condition{Field: "vars.nested.flag", Operator: OpEquals, Value: true}, true},
		{"contact path", Condition{Field: "contact.id", Operator: OpEquals, Value: "contact-1"}, true},
		{"unrooted path reads vars", Condition{Field: "plan", Operator: OpEquals, Value: "vip"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluator.Evaluate(tt.cond, vars, msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// A missing path compares false under every operator except not_exists.
func TestEvaluator_AbsentSentinel(t *testing.T) {
	evaluator := NewEvaluator()

	vars := map[string]any{"present": 1}

	operators := []Operator{
		OpEquals, OpNotEquals, OpGreaterThan, OpGreaterOrEqual,
		OpLessThan, OpLessOrEqual, OpContains, OpRegex, OpExists,
	}

	for _, op := range operators {
		t.Run(string(op), func(t *testing.T) {
			got, err := evaluator.Evaluate(Condition{Field: "vars.missing", Operator: op, Value: "x"}, vars, nil)
			require.NoError(t, err)
			assert.False(t, got)
		})
	}

	got, err := evaluator.Evaluate(Condition{Field: "vars.missing", Operator: OpNotExists}, vars, nil)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = evaluator.Evaluate(Condition{Field: "vars.present", Operator: OpNotExists}, vars, nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluator_NilValueIsAbsent(t *testing.T) {
	evaluator := NewEvaluator()

	vars := map[string]any{"ghost": nil}

	got, err := evaluator.Evaluate(Condition{Field: "vars.ghost", Operator: OpExists}, vars, nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluator_Errors(t *testing.T) {
	evaluator := NewEvaluator()

	vars := map[string]any{"text": "abc"}

	_, err := evaluator.Evaluate(Condition{Field: "vars.text", Operator: "between", Value: 1}, vars, nil)
	assert.Error(t, err)

	_, err = evaluator.Evaluate(Condition{Field: "vars.text", Operator: OpRegex, Value: "("}, vars, nil)
	assert.Error(t, err)
}

func TestEvaluator_MessagePathsWithoutMessage(t *testing.T) {
	evaluator := NewEvaluator()

	got, err := evaluator.Evaluate(Condition{Field: "message.text", Operator: OpExists}, nil, nil)
	require.NoError(t, err)
	assert.False(t, got)
}
