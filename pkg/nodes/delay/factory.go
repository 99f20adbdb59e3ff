// Package delay provides the delay node factory for registry integration.
package delay

import (
	"context"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// Factory creates DelayNode instances.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

// Create creates a new DelayNode instance.
func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewDelayNode(node)
}

// ID returns the factory ID.
func (f *Factory) ID() string {
	return string(models.NodeTypeDelay)
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Delay"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Suspends the execution until a relative duration elapses, an absolute timestamp passes or the next cron occurrence."
}

// Schema returns the JSON schema for delay node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type": "string",
				"enum": []any{ModeRelative, ModeAbsolute, ModeCron},
			},
			"duration_ms": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
			"duration": map[string]any{
				"type":        "string",
				"description": "Go duration string, e.g. \"5m\".",
			},
			"until": map[string]any{
				"type":   "string",
				"format": "date-time",
			},
			"cron": map[string]any{
				"type":        "string",
				"description": "Standard 5-field cron expression.",
			},
		},
	}
}
