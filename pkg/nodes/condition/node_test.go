package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

func conditionNode(t *testing.T, config map[string]any) *ConditionNode {
	t.Helper()

	node, err := NewConditionNode(&models.Node{
		ID:     "cond-1",
		Type:   models.NodeTypeCondition,
		Name:   "check amount",
		Config: config,
	})
	require.NoError(t, err)

	return node
}

func TestConditionNode_TrueHandle(t *testing.T) {
	node := conditionNode(t, map[string]any{
		"field":    "vars.amount",
		"operator": "gt",
		"value":    100,
	})

	result, err := node.Execute(context.Background(), protocol.HandlerContext{
		Variables: map[string]any{"amount": 150.0},
	})

	require.NoError(t, err)
	assert.Equal(t, OutputHandleTrue, result.OutputHandle)
	assert.Equal(t, true, result.Result["condition_result"])
}

func TestConditionNode_FalseHandle(t *testing.T) {
	node := conditionNode(t, map[string]any{
		"field":    "vars.amount",
		"operator": "gt",
		"value":    100,
	})

	result, err := node.Execute(context.Background(), protocol.HandlerContext{
		Variables: map[string]any{"amount": 50.0},
	})

	require.NoError(t, err)
	assert.Equal(t, OutputHandleFalse, result.OutputHandle)
}

func TestConditionNode_MissingFieldRoutesFalse(t *testing.T) {
	node := conditionNode(t, map[string]any{
		"field":    "vars.ghost",
		"operator": "eq",
		"value":    "x",
	})

	result, err := node.Execute(context.Background(), protocol.HandlerContext{Variables: map[string]any{}})

	require.NoError(t, err)
	assert.Equal(t, OutputHandleFalse, result.OutputHandle)
}

func TestConditionNode_InvalidConfig(t *testing.T) {
	_, err := NewConditionNode(&models.Node{ID: "bad", Config: map[string]any{"operator": "eq"}})
	assert.Error(t, err)

	_, err = NewConditionNode(&models.Node{ID: "bad", Config: map[string]any{"field": "vars.x"}})
	assert.Error(t, err)
}

func TestConditionNode_EvaluationError(t *testing.T) {
	node := conditionNode(t, map[string]any{
		"field":    "vars.text",
		"operator": "regex",
		"value":    "(",
	})

	_, err := node.Execute(context.Background(), protocol.HandlerContext{
		Variables: map[string]any{"text": "abc"},
	})

	require.Error(t, err)

	var handlerErr *protocol.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.Equal(t, "cond-1", handlerErr.NodeID)
	assert.False(t, handlerErr.Retryable)
}
