package models

import (
	"strings"
	"time"
)

// MatchType selects how a trigger phrase is compared against message text.
type MatchType string

const (
	MatchTypeExact      MatchType = "exact"
	MatchTypeContains   MatchType = "contains"
	MatchTypeStartsWith MatchType = "starts_with"
	MatchTypeEndsWith   MatchType = "ends_with"
)

// IsValid checks if the match type is supported.
func (m MatchType) IsValid() bool {
	switch m {
	case MatchTypeExact, MatchTypeContains, MatchTypeStartsWith, MatchTypeEndsWith:
		return true
	default:
		return false
	}
}

// TriggerRule is a prioritized keyword rule scoped to a (tenant, channel)
// pair. Exactly one rule, the highest-priority match, fires per inbound
// message. A rule fronts either a workflow entry trigger or a standalone
// auto-reply, never both.
type TriggerRule struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	ChannelID     string    `json:"channel_id"`
	Name          string    `json:"name"`
	Priority      int       `json:"priority"`
	MatchType     MatchType `json:"match_type"`
	CaseSensitive bool      `json:"case_sensitive"`
	Phrases       []string  `json:"phrases"`
	UpdatedAt     time.Time `json:"updated_at"`

	WorkflowID  string `json:"workflow_id,omitempty"`
	AutoReplyID string `json:"auto_reply_id,omitempty"`
}

// Matches reports whether any of the rule's phrases matches the text under
// the rule's match type. Case folding is per rule: a case-insensitive rule
// lowercases both sides, a case-sensitive one compares verbatim.
func (r *TriggerRule) Matches(text string) bool {
	subject := text
	if !r.CaseSensitive {
		subject = strings.ToLower(text)
	}

	for _, phrase := range r.Phrases {
		p := phrase
		if !r.CaseSensitive {
			p = strings.ToLower(phrase)
		}

		if r.phraseMatches(subject, p) {
			return true
		}
	}

	return false
}

func (r *TriggerRule) phraseMatches(subject, phrase string) bool {
	switch r.MatchType {
	case MatchTypeExact:
		return subject == phrase
	case MatchTypeContains:
		return strings.Contains(subject, phrase)
	case MatchTypeStartsWith:
		return strings.HasPrefix(subject, phrase)
	case MatchTypeEndsWith:
		return strings.HasSuffix(subject, phrase)
	default:
		return false
	}
}

// AutoReply is a standalone keyword responder sharing the trigger-matching
// subsystem with workflows. It sends a fixed reply without starting a graph
// execution.
type AutoReply struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"  validate:"required"`
	ChannelID     string         `json:"channel_id"`
	Name          string         `json:"name"       validate:"required,min=1"`
	Priority      int            `json:"priority"`
	MatchType     MatchType      `json:"match_type" validate:"required"`
	CaseSensitive bool           `json:"case_sensitive"`
	Phrases       []string       `json:"phrases"    validate:"required,min=1"`
	Reply         map[string]any `json:"reply"      validate:"required"`
	IsActive      bool           `json:"is_active"`
	UsageCount    int64          `json:"usage_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Rule projects the auto-reply's matching fields into a trigger rule for the
// matcher.
func (a *AutoReply) Rule() TriggerRule {
	return TriggerRule{
		ID:            a.ID,
		TenantID:      a.TenantID,
		ChannelID:     a.ChannelID,
		Name:          a.Name,
		Priority:      a.Priority,
		MatchType:     a.MatchType,
		CaseSensitive: a.CaseSensitive,
		Phrases:       a.Phrases,
		UpdatedAt:     a.UpdatedAt,
		AutoReplyID:   a.ID,
	}
}
