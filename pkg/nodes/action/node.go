// Package action provides the side-effect node for workflow graph execution.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
	"github.com/zapllo/zaptick-sub010/pkg/template"
)

const (
	ActionSendMessage = "send_message"
	ActionApplyTag    = "apply_tag"
	ActionAssignAgent = "assign_agent"
)

// ActionNode invokes a named external side effect through the messaging
// collaborator. It never talks to the store; the executor persists whatever
// it returns.
type ActionNode struct {
	id       string
	action   string
	config   map[string]any
	messager protocol.Messenger
	contacts protocol.ContactService
}

// NewActionNode parses the node config and binds the collaborators.
func NewActionNode(node *models.Node, messenger protocol.Messenger, contacts protocol.ContactService) (*ActionNode, error) {
	action, ok := node.Config["action"].(string)
	if !ok || action == "" {
		return nil, errors.New("missing required field 'action'")
	}

	switch action {
	case ActionSendMessage, ActionApplyTag, ActionAssignAgent:
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	return &ActionNode{
		id:       node.ID,
		action:   action,
		config:   node.Config,
		messager: messenger,
		contacts: contacts,
	}, nil
}

// Execute dispatches the configured side effect. Failures carry the
// collaborator's retryable/terminal classification up to the executor.
func (n *ActionNode) Execute(ctx context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	switch n.action {
	case ActionSendMessage:
		return n.sendMessage(ctx, hctx)
	case ActionApplyTag:
		return n.applyTag(ctx, hctx)
	case ActionAssignAgent:
		return n.assignAgent(ctx, hctx)
	default:
		return nil, &protocol.HandlerError{NodeID: n.id, Message: fmt.Sprintf("unknown action %q", n.action)}
	}
}

func (n *ActionNode) sendMessage(ctx context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	if n.messager == nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "messenger collaborator not configured"}
	}

	payload := make(map[string]any)

	if msgConfig, ok := n.config["message"].(map[string]any); ok {
		for k, v := range msgConfig {
			payload[k] = v
		}
	}

	if text, ok := payload["text"].(string); ok {
		rendered, err := template.RenderString(text, &hctx)
		if err != nil {
			return nil, &protocol.HandlerError{NodeID: n.id, Message: "failed to render message text", Err: err}
		}

		payload["text"] = rendered
	}

	msgType, _ := payload["type"].(string)
	if msgType == "" {
		msgType = "text"
	}

	out := models.OutboundMessage{
		TenantID: hctx.TenantID,
		Type:     msgType,
		Payload:  payload,
	}

	if hctx.Message != nil {
		out.ChannelID = hctx.Message.ChannelID
		out.ContactID = hctx.Message.ContactID
	}

	result, err := n.messager.Send(ctx, out)
	if err != nil {
		return nil, &protocol.HandlerError{
			NodeID:    n.id,
			Message:   "message send failed",
			Retryable: protocol.IsRetryable(err),
			Err:       err,
		}
	}

	return &protocol.HandlerResult{
		Vars: map[string]any{
			"last_message_id": result.ProviderMessageID,
		},
		Result: map[string]any{
			"action":              n.action,
			"provider_message_id": result.ProviderMessageID,
		},
	}, nil
}

func (n *ActionNode) applyTag(ctx context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	if n.contacts == nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "contact service collaborator not configured"}
	}

	tag, ok := n.config["tag"].(string)
	if !ok || tag == "" {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "missing required field 'tag'"}
	}

	contactID := ""
	if hctx.Message != nil {
		contactID = hctx.Message.ContactID
	}

	if err := n.contacts.ApplyTag(ctx, hctx.TenantID, contactID, tag); err != nil {
		return nil, &protocol.HandlerError{
			NodeID:    n.id,
			Message:   "apply tag failed",
			Retryable: protocol.IsRetryable(err),
			Err:       err,
		}
	}

	return &protocol.HandlerResult{
		Result: map[string]any{"action": n.action, "tag": tag},
	}, nil
}

func (n *ActionNode) assignAgent(ctx context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	if n.contacts == nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "contact service collaborator not configured"}
	}

	agentID, ok := n.config["agent_id"].(string)
	if !ok || agentID == "" {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "missing required field 'agent_id'"}
	}

	contactID := ""
	if hctx.Message != nil {
		contactID = hctx.Message.ContactID
	}

	if err := n.contacts.AssignAgent(ctx, hctx.TenantID, contactID, agentID); err != nil {
		return nil, &protocol.HandlerError{
			NodeID:    n.id,
			Message:   "assign agent failed",
			Retryable: protocol.IsRetryable(err),
			Err:       err,
		}
	}

	return &protocol.HandlerResult{
		Vars: map[string]any{"assigned_agent_id": agentID},
		Result: map[string]any{
			"action":   n.action,
			"agent_id": agentID,
		},
	}, nil
}
