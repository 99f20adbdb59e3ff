// Package webhook provides the outbound HTTP node for workflow graph execution.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
	"github.com/zapllo/zaptick-sub010/pkg/template"
)

const defaultTimeout = 30 * time.Second

// WebhookNode performs an outbound HTTP call with the execution's current
// variables as the JSON payload. It does not retry internally; retry policy
// belongs to the executor's per-node budget.
type WebhookNode struct {
	id      string
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

// WebhookConfig is the parsed node configuration.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout int               `json:"timeout"`
}

// NewWebhookNode parses the node config.
func NewWebhookNode(node *models.Node) (*WebhookNode, error) {
	config := WebhookConfig{
		Method:  http.MethodPost,
		Headers: make(map[string]string),
	}

	url, ok := node.Config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	config.URL = url

	if method, ok := node.Config["method"].(string); ok && method != "" {
		config.Method = strings.ToUpper(method)
	}

	if headers, ok := node.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				config.Headers[k] = strVal
			}
		}
	}

	timeout := defaultTimeout
	if secs, ok := node.Config["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	return &WebhookNode{
		id:      node.ID,
		url:     config.URL,
		method:  config.Method,
		headers: config.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Execute posts the current variables to the configured endpoint. Transport
// failures and 5xx responses are classified retryable, 4xx terminal.
func (n *WebhookNode) Execute(ctx context.Context, hctx protocol.HandlerContext) (*protocol.HandlerResult, error) {
	url, err := template.RenderString(n.url, &hctx)
	if err != nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "failed to render URL template", Err: err}
	}

	payload, err := json.Marshal(map[string]any{
		"execution_id": hctx.ExecutionID,
		"workflow_id":  hctx.WorkflowID,
		"variables":    hctx.Variables,
	})
	if err != nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "failed to encode payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, n.method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "failed to build request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range n.headers {
		rendered, err := template.RenderString(v, &hctx)
		if err != nil {
			rendered = v
		}

		req.Header.Set(k, rendered)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, &protocol.HandlerError{
			NodeID:    n.id,
			Message:   "webhook request failed",
			Retryable: true,
			Err:       err,
		}
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &protocol.HandlerError{NodeID: n.id, Message: "failed to read response", Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &protocol.HandlerError{
			NodeID:  n.id,
			Message: fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			Details: map[string]any{
				"status_code": resp.StatusCode,
				"body":        string(body),
			},
			Retryable: resp.StatusCode >= 500,
		}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		result["response"] = parsed
	} else if len(body) > 0 {
		result["response"] = string(body)
	}

	return &protocol.HandlerResult{
		Vars: map[string]any{
			"webhook_status":   resp.StatusCode,
			"webhook_response": result["response"],
		},
		Result: result,
	}, nil
}
