// Package models defines the core domain models for node-based messaging automation.
package models

// NodeType discriminates the behavior of a workflow node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeWebhook   NodeType = "webhook"
)

// IsValid checks if the node type is one of the supported types.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeCondition, NodeTypeAction, NodeTypeDelay, NodeTypeWebhook:
		return true
	default:
		return false
	}
}

// Node represents a node instance in a workflow graph. Config carries the
// type-specific payload and is validated against the node factory's schema
// when the workflow is saved.
type Node struct {
	ID        string         `json:"id"   validate:"required"`
	Type      NodeType       `json:"type" validate:"required"`
	Name      string         `json:"name" validate:"required,min=1"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// Edge is a directed connection between two nodes. SourceHandle keys the
// output of multi-output nodes (condition true/false); an empty handle marks
// the default edge.
type Edge struct {
	ID           string `json:"id"     validate:"required"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
	Label        string `json:"label,omitempty"`
}
