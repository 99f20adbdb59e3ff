package models

import "time"

// ExecutionStatus is the lifecycle state of an AutomationExecution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "in_progress"
	ExecutionStatusSuspended ExecutionStatus = "suspended"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsValid checks if the execution status is one of the known states.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusSuspended,
		ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the execution can never advance again.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the execution still owns its (workflow, contact)
// slot. At most one active execution exists per pair.
func (s ExecutionStatus) IsActive() bool {
	return !s.IsTerminal()
}

// HistoryStatus is the outcome of a single node attempt.
type HistoryStatus string

const (
	HistoryStatusCompleted HistoryStatus = "completed"
	HistoryStatusFailed    HistoryStatus = "failed"
	HistoryStatusSkipped   HistoryStatus = "skipped"
)

// HistoryEntry is one record in the append-only per-node attempt log.
type HistoryEntry struct {
	NodeID     string         `json:"node_id"`
	NodeName   string         `json:"node_name"`
	NodeType   NodeType       `json:"node_type"`
	Status     HistoryStatus  `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NodeError captures the last node-level failure of an execution.
type NodeError struct {
	NodeID    string         `json:"node_id"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecutionData is the scratch space threaded through node handlers.
// Variables accumulate across nodes and are never rolled back.
type ExecutionData struct {
	Variables map[string]any `json:"variables"`
	LastError *NodeError     `json:"last_error,omitempty"`
}

// AutomationExecution is one graph traversal attempt for a (workflow,
// contact) pair. It is created at trigger-match time, mutated only by the
// executor that owns it, and never mutated after a terminal status is set.
type AutomationExecution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	TenantID   string          `json:"tenant_id"`
	ContactID  string          `json:"contact_id"`
	ChannelID  string          `json:"channel_id"`
	Status     ExecutionStatus `json:"status"`

	CurrentNodeID    string         `json:"current_node_id,omitempty"`
	CompletedNodeIDs []string       `json:"completed_node_ids"`
	Data             ExecutionData  `json:"execution_data"`
	History          []HistoryEntry `json:"execution_history"`

	// ResumeAt is set while the execution is suspended on a delay node.
	ResumeAt  *time.Time `json:"resume_at,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// HasCompleted reports whether the node already succeeded in this execution,
// which makes re-entry after a resume idempotent.
func (e *AutomationExecution) HasCompleted(nodeID string) bool {
	for _, id := range e.CompletedNodeIDs {
		if id == nodeID {
			return true
		}
	}

	return false
}

// MarkNodeCompleted appends the node to the completed set. Called only after
// the node's handler returned success.
func (e *AutomationExecution) MarkNodeCompleted(nodeID string) {
	e.CompletedNodeIDs = append(e.CompletedNodeIDs, nodeID)
}

// AppendHistory records one node attempt.
func (e *AutomationExecution) AppendHistory(entry HistoryEntry) {
	e.History = append(e.History, entry)
}

// RecordError stores the failure as the execution's last error.
func (e *AutomationExecution) RecordError(nodeID, message string, details map[string]any) {
	e.Data.LastError = &NodeError{
		NodeID:    nodeID,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// SetVariable writes into the execution's variable map.
func (e *AutomationExecution) SetVariable(key string, value any) {
	if e.Data.Variables == nil {
		e.Data.Variables = make(map[string]any)
	}

	e.Data.Variables[key] = value
}

// Finalize moves the execution to a terminal status and stamps the end time.
func (e *AutomationExecution) Finalize(status ExecutionStatus) {
	now := time.Now().UTC()
	e.Status = status
	e.EndTime = &now
	e.ResumeAt = nil
}
