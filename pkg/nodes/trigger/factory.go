// Package trigger provides the trigger node factory for registry integration.
package trigger

import (
	"context"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// Factory creates TriggerNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new TriggerNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewTriggerNode(node)
}

// ID returns the factory ID.
func (f *Factory) ID() string {
	return string(models.NodeTypeTrigger)
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Trigger"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Workflow entry point fired by a matched inbound message. Only valid as the graph's single entry node."
}

// Schema returns the JSON schema for trigger node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"phrases": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Trigger phrases matched against the inbound message text.",
			},
			"match_type": map[string]any{
				"type": "string",
				"enum": []any{"exact", "contains", "starts_with", "ends_with"},
			},
			"case_sensitive": map[string]any{"type": "boolean"},
			"priority":       map[string]any{"type": "integer"},
		},
	}
}
