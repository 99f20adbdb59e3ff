// Package condition provides the condition node factory for registry integration.
package condition

import (
	"context"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// Factory creates ConditionNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new ConditionNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewConditionNode(node)
}

// ID returns the factory ID.
func (f *Factory) ID() string {
	return string(models.NodeTypeCondition)
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Condition"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Evaluates a predicate against execution variables and message data and routes to the true or false path."
}

// Schema returns the JSON schema for condition node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Dotted path into vars, contact or message data.",
				"examples":    []any{"vars.amount", "contact.id", "message.text"},
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []any{"eq", "neq", "gt", "gte", "lt", "lte", "contains", "regex", "exists", "not_exists"},
			},
			"value": map[string]any{
				"description": "Comparison operand. Ignored by exists/not_exists.",
			},
		},
		"required": []any{"field", "operator"},
	}
}
