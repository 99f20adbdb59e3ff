package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

type nopMessenger struct{}

func (nopMessenger) Send(_ context.Context, _ models.OutboundMessage) (*protocol.SendResult, error) {
	return &protocol.SendResult{ProviderMessageID: "msg-1"}, nil
}

type nopContacts struct{}

func (nopContacts) ApplyTag(_ context.Context, _, _, _ string) error    { return nil }
func (nopContacts) AssignAgent(_ context.Context, _, _, _ string) error { return nil }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry(slog.Default())
	r.RegisterDefaults(nopMessenger{}, nopContacts{})

	return r
}

func TestRegisterDefaults(t *testing.T) {
	r := newTestRegistry(t)

	for _, nodeType := range []string{"trigger", "condition", "action", "delay", "webhook"} {
		_, ok := r.NodeFactory(nodeType)
		assert.True(t, ok, "expected factory for %s", nodeType)
	}

	assert.Len(t, r.NodeTypes(), 5)
}

func TestCreateHandler(t *testing.T) {
	r := newTestRegistry(t)

	handler, err := r.CreateHandler(context.Background(), &models.Node{
		ID:   "cond-1",
		Type: models.NodeTypeCondition,
		Config: map[string]any{
			"field":    "vars.amount",
			"operator": "gt",
			"value":    float64(100),
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestCreateHandlerUnknownType(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.CreateHandler(context.Background(), &models.Node{
		ID:   "n1",
		Type: models.NodeType("teleport"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestValidateNodeConfig(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ValidateNodeConfig(&models.Node{
		ID:   "t1",
		Type: models.NodeTypeTrigger,
		Config: map[string]any{
			"phrases":    []any{"hello"},
			"match_type": "contains",
		},
	})
	assert.NoError(t, err)
}

func TestValidateNodeConfigRejectsBadValue(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ValidateNodeConfig(&models.Node{
		ID:   "t1",
		Type: models.NodeTypeTrigger,
		Config: map[string]any{
			"match_type": "fuzzy",
		},
	})
	require.Error(t, err)

	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "t1", cfgErr.NodeID)
}

func TestValidateWorkflow(t *testing.T) {
	r := newTestRegistry(t)

	wf := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			{ID: "trig", Type: models.NodeTypeTrigger, Config: map[string]any{
				"phrases": []any{"order status"},
			}},
			{ID: "reply", Type: models.NodeTypeAction, Config: map[string]any{
				"action":  "send_message",
				"message": map[string]any{"text": "On it."},
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "reply"},
		},
	}

	assert.NoError(t, r.ValidateWorkflow(wf))
}

func TestValidateWorkflowBadGraph(t *testing.T) {
	r := newTestRegistry(t)

	wf := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.Node{
			{ID: "reply", Type: models.NodeTypeAction, Config: map[string]any{
				"action": "send_message",
			}},
		},
	}

	assert.Error(t, r.ValidateWorkflow(wf))
}
