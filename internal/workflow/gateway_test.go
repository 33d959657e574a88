package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/workflows/internal/workflow"
)

func newGatewayEvaluator(t *testing.T) *workflow.GatewayEvaluator {
	t.Helper()
	gw, err := workflow.NewGatewayEvaluator(64)
	require.NoError(t, err)
	return gw
}

func TestGatewayEvaluator_Evaluate(t *testing.T) {
	gw := newGatewayEvaluator(t)

	cases := []struct {
		name     string
		operator string
		field    string
		value    string
		want     bool
	}{
		{"equals, case/space-insensitive", "==", " Ok ", "ok", true},
		{"equals mismatch", "==", "ok", "not-ok", false},
		{"not_equals", "!=", "ok", "fail", true},
		{"greater_than", ">", "10", "5", true},
		{"greater_than_or_equal at boundary", ">=", "5", "5", true},
		{"less_than", "<", "3", "5", true},
		{"less_than_or_equal at boundary", "<=", "5", "5", true},
		{"contains, case-insensitive", "contains", "Hello World", "world", true},
		{"not_contains", "not_contains", "Hello World", "bye", true},
		{"is_empty on blank field", "is_empty", "", "", true},
		{"is_empty on non-blank field", "is_empty", "x", "", false},
		{"is_not_empty on non-blank field", "is_not_empty", "x", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := gw.Evaluate(workflow.EdgeCondition{Operator: tc.operator, Value: tc.value}, tc.field)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("Should reject an operator outside the safe set", func(t *testing.T) {
		got := gw.Evaluate(workflow.EdgeCondition{Operator: "exec", Value: "x"}, "x")
		assert.False(t, got)
	})

	t.Run("Should return false rather than panic when a numeric operand isn't numeric", func(t *testing.T) {
		got := gw.Evaluate(workflow.EdgeCondition{Operator: ">", Value: "five"}, "three")
		assert.False(t, got)
	})

	t.Run("Should cache the compiled program across repeated evaluations of the same operator", func(t *testing.T) {
		assert.True(t, gw.Evaluate(workflow.EdgeCondition{Operator: "==", Value: "a"}, "a"))
		assert.True(t, gw.Evaluate(workflow.EdgeCondition{Operator: "==", Value: "b"}, "b"))
	})
}
