// Package webhook provides the webhook node factory for registry integration.
package webhook

import (
	"context"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// Factory creates WebhookNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new WebhookNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewWebhookNode(node)
}

// ID returns the factory ID.
func (f *Factory) ID() string {
	return string(models.NodeTypeWebhook)
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Webhook"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Calls an external HTTP endpoint with the execution's variables as JSON payload."
}

// Schema returns the JSON schema for webhook node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL. Supports templating.",
			},
			"method": map[string]any{
				"type": "string",
				"enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"timeout": map[string]any{
				"type":        "number",
				"minimum":     1,
				"description": "Request timeout in seconds.",
			},
			"max_retries": map[string]any{
				"type":    "integer",
				"minimum": 0,
			},
			"backoff_ms": map[string]any{
				"type":    "integer",
				"minimum": 0,
			},
		},
		"required": []any{"url"},
	}
}
