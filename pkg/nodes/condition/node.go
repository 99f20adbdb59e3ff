// Package condition provides the branching node for workflow graph execution.
package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapllo/zaptick-sub010/pkg/condition"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

const (
	OutputHandleTrue  = "true"
	OutputHandleFalse = "false"
)

// ConditionNode evaluates a predicate and routes execution through the
// "true" or "false" output handle.
type ConditionNode struct {
	id        string
	predicate condition.Condition
	evaluator *condition.Evaluator
}

// NewConditionNode parses the node config into a predicate.
func NewConditionNode(node *models.Node) (*ConditionNode, error) {
	field, ok := node.Config["field"].(string)
	if !ok || field == "" {
		return nil, errors.New("missing required field 'field'")
	}

	operator, ok := node.Config["operator"].(string)
	if !ok || operator == "" {
		return nil, errors.New("missing required field 'operator'")
	}

	return &ConditionNode{
		id: node.ID,
		predicate: condition.Condition{
			Field:    field,
			Operator: condition.Operator(operator),
			Value:    node.Config["value"],
		},
		evaluator: condition.NewEvaluator(),
	}, nil
}

// Execute evaluates the predicate and selects the matching output handle.
func (n *ConditionNode) Execute(_ context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	result, err := n.evaluator.Evaluate(n.predicate, hctx.Variables, hctx.Message)
	if err != nil {
		return nil, &protocol.HandlerError{
			NodeID:  n.id,
			Message: fmt.Sprintf("condition evaluation failed: %v", err),
			Err:     err,
		}
	}

	handle := OutputHandleFalse
	if result {
		handle = OutputHandleTrue
	}

	return &protocol.HandlerResult{
		OutputHandle: handle,
		Result: map[string]any{
			"condition_result": result,
			"field":            n.predicate.Field,
			"operator":         string(n.predicate.Operator),
		},
	}, nil
}
