// Package protocol defines the interfaces and contracts for pluggable node
// handlers and the engine's external collaborators.
package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
)

// HandlerContext is the read-only view a node handler receives. Handlers
// must not mutate store state directly; everything they produce travels back
// through the HandlerResult and is persisted by the executor.
type HandlerContext struct {
	ExecutionID string
	WorkflowID  string
	TenantID    string
	Variables   map[string]any
	Message     *models.InboundMessage
}

// HandlerResult is what a node handler returns on success.
type HandlerResult struct {
	// Vars are variable writes to merge into the execution's variable map.
	Vars map[string]any

	// OutputHandle selects the outgoing edge (e.g. "true"/"false" on a
	// condition node). Empty means the default edge.
	OutputHandle string

	// Result is recorded in the execution history entry for this node.
	Result map[string]any

	// Suspend asks the executor to park the execution and resume at
	// ResumeAt. Only the delay handler sets it.
	Suspend  bool
	ResumeAt time.Time
}

// NodeHandler executes one configured node instance.
type NodeHandler interface {
	Execute(ctx context.Context, hctx HandlerContext) (*HandlerResult, error)
}

// NodeFactory creates node handlers and provides metadata about the node
// type. Create parses the node's config and fails fast on malformed config,
// before any node of the execution runs.
type NodeFactory interface {
	Create(ctx context.Context, node *models.Node) (NodeHandler, error)

	ID() string
	Name() string
	Description() string

	// Schema returns the JSON schema the node's config must conform to.
	Schema() map[string]any
}

// HandlerError reports a node-level side-effect failure. Retryable mirrors
// the collaborator's classification; the executor re-attempts retryable
// failures only up to the node's own retry budget.
type HandlerError struct {
	NodeID    string
	Message   string
	Details   map[string]any
	Retryable bool
	Err       error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Message, e.Err)
	}

	return fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
