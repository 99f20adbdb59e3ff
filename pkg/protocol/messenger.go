package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapllo/zaptick-sub010/pkg/models"
)

// SendResult carries the provider's acknowledgement of an outbound message.
type SendResult struct {
	ProviderMessageID string `json:"provider_message_id"`
}

// Messenger is the messaging collaborator used by action nodes and
// auto-replies. Implementations classify failures via SendError so the
// engine can tell retryable (timeout, rate limit) from terminal (invalid
// recipient) ones.
type Messenger interface {
	Send(ctx context.Context, msg models.OutboundMessage) (*SendResult, error)
}

// ContactService covers the non-message side effects an action node can
// request from the surrounding system.
type ContactService interface {
	ApplyTag(ctx context.Context, tenantID, contactID, tag string) error
	AssignAgent(ctx context.Context, tenantID, contactID, agentID string) error
}

// SendError is a classified messaging failure.
type SendError struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send failed (%s): %v", e.Code, e.Err)
	}

	return fmt.Sprintf("send failed (%s)", e.Code)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error chain carries a retryable
// classification from a collaborator or handler.
func IsRetryable(err error) bool {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Retryable
	}

	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Retryable
	}

	return false
}
