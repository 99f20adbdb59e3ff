// Package template provides templating functionality for dynamic node
// configuration.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// RenderWithContext renders a node config string against the handler
// context, exposing the execution's variables and the triggering message.
func RenderWithContext(input string, hctx *protocol.HandlerContext) (any, error) {
	data := map[string]any{
		"vars":      hctx.Variables,
		"variables": hctx.Variables,
		"execution": map[string]any{
			"id":          hctx.ExecutionID,
			"workflow_id": hctx.WorkflowID,
			"tenant_id":   hctx.TenantID,
		},
	}

	if hctx.Message != nil {
		data["message"] = map[string]any{
			"id":         hctx.Message.ID,
			"text":       hctx.Message.Text,
			"channel_id": hctx.Message.ChannelID,
			"metadata":   hctx.Message.Metadata,
		}
		data["contact"] = map[string]any{
			"id":   hctx.Message.ContactID,
			"name": hctx.Message.ContactName,
		}
	}

	return Render(input, data)
}

// Render executes the template string and coerces the output back into a
// JSON value, number or boolean when it parses as one.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("config").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderString renders and requires a string result.
func RenderString(templateStr string, hctx *protocol.HandlerContext) (string, error) {
	rendered, err := RenderWithContext(templateStr, hctx)
	if err != nil {
		return "", err
	}

	if s, ok := rendered.(string); ok {
		return s, nil
	}

	return fmt.Sprintf("%v", rendered), nil
}
