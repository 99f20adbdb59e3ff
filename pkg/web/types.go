// Package web provides HTTP request and response types for the automation API.
package web

import "github.com/zapllo/zaptick-sub010/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	TenantID    string         `json:"tenant_id"   validate:"required"`
	ChannelID   string         `json:"channel_id"`
	IsActive    bool           `json:"is_active"`
	Nodes       []*models.Node `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.Edge `json:"edges"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates; replacing
// nodes or edges bumps the workflow version.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
	Nodes       []*models.Node `json:"nodes,omitempty"`
	Edges       []*models.Edge `json:"edges,omitempty"`
}

// AutoReplyRequest represents the request body for creating or updating an
// auto reply.
type AutoReplyRequest struct {
	Name          string           `json:"name"           validate:"required,min=1"`
	TenantID      string           `json:"tenant_id"      validate:"required"`
	ChannelID     string           `json:"channel_id"`
	Priority      int              `json:"priority"`
	MatchType     models.MatchType `json:"match_type"     validate:"required"`
	CaseSensitive bool             `json:"case_sensitive"`
	Phrases       []string         `json:"phrases"        validate:"required,min=1"`
	Reply         map[string]any   `json:"reply"          validate:"required"`
	IsActive      bool             `json:"is_active"`
}

// CancelExecutionRequest carries an optional cancellation reason.
type CancelExecutionRequest struct {
	Reason string `json:"reason,omitempty"`
}
