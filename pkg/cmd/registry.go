// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/zapllo/zaptick-sub010/pkg/protocol"
	"github.com/zapllo/zaptick-sub010/pkg/registry"
)

// NewRegistry builds the node registry with the built-in node factories
// bound to the process-wide messaging collaborators.
func NewRegistry(log *slog.Logger, messenger protocol.Messenger, contacts protocol.ContactService) *registry.Registry {
	reg := registry.NewRegistry(log)
	reg.RegisterDefaults(messenger, contacts)

	return reg
}
