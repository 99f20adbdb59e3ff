package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

type fakeMessenger struct {
	sent []models.OutboundMessage
	err  error
}

func (f *fakeMessenger) Send(_ context.Context, msg models.OutboundMessage) (*protocol.SendResult, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.sent = append(f.sent, msg)

	return &protocol.SendResult{ProviderMessageID: "prov-1"}, nil
}

type fakeContacts struct {
	tags   []string
	agents []string
}

func (f *fakeContacts) ApplyTag(_ context.Context, _, _, tag string) error {
	f.tags = append(f.tags, tag)

	return nil
}

func (f *fakeContacts) AssignAgent(_ context.Context, _, _, agentID string) error {
	f.agents = append(f.agents, agentID)

	return nil
}

func handlerContext() protocol.HandlerContext {
	return protocol.HandlerContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		TenantID:    "tenant-1",
		Variables:   map[string]any{"plan": "vip"},
		Message: &models.InboundMessage{
			ID:          "msg-1",
			ChannelID:   "channel-1",
			ContactID:   "contact-1",
			ContactName: "Ada",
			Text:        "order",
		},
	}
}

func TestActionNode_SendMessage(t *testing.T) {
	messenger := &fakeMessenger{}

	node, err := NewActionNode(&models.Node{
		ID:   "act-1",
		Type: models.NodeTypeAction,
		Config: map[string]any{
			"action": "send_message",
			"message": map[string]any{
				"type": "text",
				"text": "Hi {{.contact.name}}, your plan is {{.vars.plan}}",
			},
		},
	}, messenger, nil)
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), handlerContext())
	require.NoError(t, err)

	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "contact-1", messenger.sent[0].ContactID)
	assert.Equal(t, "channel-1", messenger.sent[0].ChannelID)
	assert.Equal(t, "Hi Ada, your plan is vip", messenger.sent[0].Payload["text"])
	assert.Equal(t, "prov-1", result.Vars["last_message_id"])
}

func TestActionNode_SendMessageRetryableFailure(t *testing.T) {
	messenger := &fakeMessenger{err: &protocol.SendError{Code: "rate_limited", Retryable: true}}

	node, err := NewActionNode(&models.Node{
		ID:     "act-1",
		Config: map[string]any{"action": "send_message"},
	}, messenger, nil)
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), handlerContext())
	require.Error(t, err)
	assert.True(t, protocol.IsRetryable(err))
}

func TestActionNode_SendMessageTerminalFailure(t *testing.T) {
	messenger := &fakeMessenger{err: &protocol.SendError{Code: "invalid_recipient", Retryable: false}}

	node, err := NewActionNode(&models.Node{
		ID:     "act-1",
		Config: map[string]any{"action": "send_message"},
	}, messenger, nil)
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), handlerContext())
	require.Error(t, err)
	assert.False(t, protocol.IsRetryable(err))
}

func TestActionNode_ApplyTag(t *testing.T) {
	contacts := &fakeContacts{}

	node, err := NewActionNode(&models.Node{
		ID:     "act-2",
		Config: map[string]any{"action": "apply_tag", "tag": "vip"},
	}, nil, contacts)
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), handlerContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, contacts.tags)
	assert.Equal(t, "vip", result.Result["tag"])
}

func TestActionNode_AssignAgent(t *testing.T) {
	contacts := &fakeContacts{}

	node, err := NewActionNode(&models.Node{
		ID:     "act-3",
		Config: map[string]any{"action": "assign_agent", "agent_id": "agent-7"},
	}, nil, contacts)
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), handlerContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-7"}, contacts.agents)
	assert.Equal(t, "agent-7", result.Vars["assigned_agent_id"])
}

func TestNewActionNode_InvalidConfig(t *testing.T) {
	_, err := NewActionNode(&models.Node{ID: "bad", Config: map[string]any{}}, nil, nil)
	assert.Error(t, err)

	_, err = NewActionNode(&models.Node{ID: "bad", Config: map[string]any{"action": "explode"}}, nil, nil)
	assert.Error(t, err)
}
