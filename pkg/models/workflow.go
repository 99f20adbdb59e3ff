package models

import (
	"fmt"
	"time"
)

// Workflow represents a node-based automation graph owned by a tenant.
// Version increments whenever nodes or edges change; it is an optimistic
// concurrency signal for editors and is never read by the executor.
type Workflow struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id" validate:"required"`
	ChannelID   string  `json:"channel_id"`
	Name        string  `json:"name"      validate:"required,min=3"`
	Description string  `json:"description"`
	IsActive    bool    `json:"is_active"`
	Version     int     `json:"version"`
	Nodes       []*Node `json:"nodes"`
	Edges       []*Edge `json:"edges"`

	ExecutionCount int64      `json:"execution_count"`
	SuccessCount   int64      `json:"success_count"`
	FailureCount   int64      `json:"failure_count"`
	LastTriggered  *time.Time `json:"last_triggered,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeByID finds a node in the workflow by ID.
func (w *Workflow) NodeByID(nodeID string) *Node {
	for _, n := range w.Nodes {
		if n.ID == nodeID {
			return n
		}
	}

	return nil
}

// EntryNode returns the workflow's single trigger node, or nil when the
// graph is malformed.
func (w *Workflow) EntryNode() *Node {
	for _, n := range w.Nodes {
		if n.Type == NodeTypeTrigger {
			return n
		}
	}

	return nil
}

// OutgoingEdges returns all edges whose source is the given node, in
// declaration order.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range w.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// NextEdge selects the outgoing edge for a handler's output handle: an edge
// whose SourceHandle equals the handle wins; with an empty handle the single
// outgoing edge is the default. No match means the node is an implicit
// terminal. Ambiguous fan-out without a matching handle is a configuration
// error surfaced by ValidateGraph, not here.
func (w *Workflow) NextEdge(nodeID, outputHandle string) *Edge {
	edges := w.OutgoingEdges(nodeID)

	for _, e := range edges {
		if e.SourceHandle == outputHandle {
			return e
		}
	}

	if outputHandle == "" && len(edges) == 1 {
		return edges[0]
	}

	return nil
}

// ValidateGraph checks the structural invariants the executor relies on:
// unique node and edge IDs, exactly one trigger entry node, no dangling edge
// endpoints, no unlabeled fan-out, and no cycles. Loops are unsupported
// because every node runs at most once per execution, so an edge back into
// a completed node could never take a labeled branch again.
func (w *Workflow) ValidateGraph() error {
	nodeIDs := make(map[string]bool, len(w.Nodes))

	triggers := 0

	for _, n := range w.Nodes {
		if nodeIDs[n.ID] {
			return &ConfigurationError{WorkflowID: w.ID, NodeID: n.ID, Reason: "duplicate node id"}
		}

		nodeIDs[n.ID] = true

		if !n.Type.IsValid() {
			return &ConfigurationError{WorkflowID: w.ID, NodeID: n.ID, Reason: fmt.Sprintf("unknown node type %q", n.Type)}
		}

		if n.Type == NodeTypeTrigger {
			triggers++
		}
	}

	if triggers != 1 {
		return &ConfigurationError{WorkflowID: w.ID, Reason: fmt.Sprintf("workflow must have exactly one trigger node, has %d", triggers)}
	}

	edgeIDs := make(map[string]bool, len(w.Edges))

	for _, e := range w.Edges {
		if edgeIDs[e.ID] {
			return &ConfigurationError{WorkflowID: w.ID, EdgeID: e.ID, Reason: "duplicate edge id"}
		}

		edgeIDs[e.ID] = true

		if !nodeIDs[e.Source] {
			return &ConfigurationError{WorkflowID: w.ID, EdgeID: e.ID, Reason: fmt.Sprintf("edge source %q references no node", e.Source)}
		}

		if !nodeIDs[e.Target] {
			return &ConfigurationError{WorkflowID: w.ID, EdgeID: e.ID, Reason: fmt.Sprintf("edge target %q references no node", e.Target)}
		}
	}

	// Fan-out from a node is only unambiguous when every outgoing edge
	// carries a distinct source handle.
	for _, n := range w.Nodes {
		edges := w.OutgoingEdges(n.ID)
		if len(edges) <= 1 {
			continue
		}

		handles := make(map[string]bool, len(edges))

		for _, e := range edges {
			if e.SourceHandle == "" {
				return &ConfigurationError{WorkflowID: w.ID, NodeID: n.ID, Reason: "ambiguous fan-out: multiple outgoing edges require source handles"}
			}

			if handles[e.SourceHandle] {
				return &ConfigurationError{WorkflowID: w.ID, NodeID: n.ID, Reason: fmt.Sprintf("duplicate source handle %q", e.SourceHandle)}
			}

			handles[e.SourceHandle] = true
		}
	}

	return w.rejectCycles()
}

// rejectCycles runs a depth-first walk over the edges, reporting the first
// back edge found.
func (w *Workflow) rejectCycles() error {
	const (
		visiting = 1
		done     = 2
	)

	state := make(map[string]int, len(w.Nodes))

	var visit func(nodeID string) error

	visit = func(nodeID string) error {
		state[nodeID] = visiting

		for _, e := range w.OutgoingEdges(nodeID) {
			switch state[e.Target] {
			case visiting:
				return &ConfigurationError{WorkflowID: w.ID, EdgeID: e.ID, Reason: fmt.Sprintf("cycle through node %q: loops are not supported", e.Target)}
			case done:
				continue
			}

			if err := visit(e.Target); err != nil {
				return err
			}
		}

		state[nodeID] = done

		return nil
	}

	for _, n := range w.Nodes {
		if state[n.ID] == 0 {
			if err := visit(n.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// BumpVersion marks a graph mutation on save.
func (w *Workflow) BumpVersion() {
	w.Version++
	w.UpdatedAt = time.Now().UTC()
}

// ConfigurationError reports a malformed graph. Executions fail fast on it
// before any node runs, and it is never retried.
type ConfigurationError struct {
	WorkflowID string
	NodeID     string
	EdgeID     string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("workflow %s: node %s: %s", e.WorkflowID, e.NodeID, e.Reason)
	case e.EdgeID != "":
		return fmt.Sprintf("workflow %s: edge %s: %s", e.WorkflowID, e.EdgeID, e.Reason)
	default:
		return fmt.Sprintf("workflow %s: %s", e.WorkflowID, e.Reason)
	}
}
