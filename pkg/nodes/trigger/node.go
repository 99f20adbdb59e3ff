// Package trigger provides the workflow entry node.
package trigger

import (
	"context"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// TriggerNode is the graph's entry point. Its matching fields (phrases,
// match type, priority) are consumed at trigger-match time by the engine;
// executing it only seeds the triggering message into the variable map.
// Re-entry is a no-op: the executor never re-runs a completed node.
type TriggerNode struct {
	id string
}

// NewTriggerNode creates a trigger node handler.
func NewTriggerNode(node *models.Node) (*TriggerNode, error) {
	return &TriggerNode{id: node.ID}, nil
}

// Execute seeds message-derived variables for downstream nodes.
func (n *TriggerNode) Execute(_ context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	vars := make(map[string]any)

	if hctx.Message != nil {
		vars["message_text"] = hctx.Message.Text
		vars["contact_id"] = hctx.Message.ContactID
	}

	return &protocol.HandlerResult{
		Vars: vars,
		Result: map[string]any{
			"triggered": true,
		},
	}, nil
}
