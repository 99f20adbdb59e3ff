package models

import "time"

// InboundMessage is a message event delivered to the engine's entry point.
// How it arrives (webhook edge, queue, poll) is the trigger source's concern.
type InboundMessage struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"  validate:"required"`
	ChannelID   string         `json:"channel_id" validate:"required"`
	ContactID   string         `json:"contact_id" validate:"required"`
	ContactName string         `json:"contact_name,omitempty"`
	Text        string         `json:"text"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// OutboundMessage is what action nodes and auto-replies hand to the
// messaging collaborator.
type OutboundMessage struct {
	TenantID  string         `json:"tenant_id"`
	ChannelID string         `json:"channel_id"`
	ContactID string         `json:"contact_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}
