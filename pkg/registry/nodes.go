package registry

import (
	"github.com/zapllo/zaptick-sub010/pkg/nodes/action"
	"github.com/zapllo/zaptick-sub010/pkg/nodes/condition"
	"github.com/zapllo/zaptick-sub010/pkg/nodes/delay"
	"github.com/zapllo/zaptick-sub010/pkg/nodes/trigger"
	"github.com/zapllo/zaptick-sub010/pkg/nodes/webhook"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// RegisterDefaults registers the built-in node factories.
func (r *Registry) RegisterDefaults(messenger protocol.Messenger, contacts protocol.ContactService) {
	r.RegisterNode(trigger.NewFactory())
	r.RegisterNode(condition.NewFactory())
	r.RegisterNode(action.NewFactory(messenger, contacts))
	r.RegisterNode(delay.NewFactory())
	r.RegisterNode(webhook.NewFactory())
}
