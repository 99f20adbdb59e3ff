// Package action provides the action node factory for registry integration.
package action

import (
	"context"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// Factory creates ActionNode instances bound to the messaging collaborators.
type Factory struct {
	messenger protocol.Messenger
	contacts  protocol.ContactService
}

// NewFactory creates a new factory instance.
func NewFactory(messenger protocol.Messenger, contacts protocol.ContactService) protocol.NodeFactory {
	return &Factory{messenger: messenger, contacts: contacts}
}

// Create creates a new ActionNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewActionNode(node, f.messenger, f.contacts)
}

// ID returns the factory ID.
func (f *Factory) ID() string {
	return string(models.NodeTypeAction)
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Action"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Invokes a named side effect: send a message, apply a tag or assign an agent to the contact."
}

// Schema returns the JSON schema for action node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []any{ActionSendMessage, ActionApplyTag, ActionAssignAgent},
			},
			"message": map[string]any{
				"type":        "object",
				"description": "Outbound message payload for send_message. Text supports templating.",
			},
			"tag":      map[string]any{"type": "string"},
			"agent_id": map[string]any{"type": "string"},
			"max_retries": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Retry budget for retryable failures. 0 disables retries.",
			},
			"backoff_ms": map[string]any{
				"type":    "integer",
				"minimum": 0,
			},
		},
		"required": []any{"action"},
	}
}
