// Package httpapi implements the messaging collaborator against an HTTP
// channel gateway. Outbound messages and contact updates are posted as JSON
// to a configured base URL.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// Messenger sends outbound messages through a channel gateway's REST API.
// It implements both protocol.Messenger and protocol.ContactService.
type Messenger struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMessenger(logger *slog.Logger, baseURL, apiKey string) *Messenger {
	return &Messenger{
		logger:  logger.With("module", "messenger"),
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts the message to the gateway. Transport failures, 429 and 5xx
// responses come back as retryable SendErrors; other non-2xx statuses are
// terminal.
func (m *Messenger) Send(ctx context.Context, msg models.OutboundMessage) (*protocol.SendResult, error) {
	var ack struct {
		MessageID string `json:"message_id"`
	}

	if err := m.post(ctx, "/v1/messages", msg, &ack); err != nil {
		return nil, err
	}

	m.logger.Debug("Message sent",
		"contact_id", msg.ContactID,
		"provider_message_id", ack.MessageID)

	return &protocol.SendResult{ProviderMessageID: ack.MessageID}, nil
}

func (m *Messenger) ApplyTag(ctx context.Context, tenantID, contactID, tag string) error {
	payload := map[string]string{
		"tenant_id":  tenantID,
		"contact_id": contactID,
		"tag":        tag,
	}

	return m.post(ctx, "/v1/contacts/"+contactID+"/tags", payload, nil)
}

func (m *Messenger) AssignAgent(ctx context.Context, tenantID, contactID, agentID string) error {
	payload := map[string]string{
		"tenant_id":  tenantID,
		"contact_id": contactID,
		"agent_id":   agentID,
	}

	return m.post(ctx, "/v1/contacts/"+contactID+"/assignment", payload, nil)
}

func (m *Messenger) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &protocol.SendError{Code: "encode_failed", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &protocol.SendError{Code: "bad_request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return &protocol.SendError{Code: "transport", Retryable: true, Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &protocol.SendError{Code: "read_failed", Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &protocol.SendError{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:       fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, raw),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &protocol.SendError{Code: "decode_failed", Err: err}
		}
	}

	return nil
}
