package redisqueue

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceRequiresQueue(t *testing.T) {
	_, err := NewSource(context.Background(), map[string]any{}, slog.Default())
	assert.Error(t, err)
}

func TestNewSourceParsesConnection(t *testing.T) {
	source, err := NewSource(context.Background(), map[string]any{
		"queue": "zaptick:inbound",
		"connection": map[string]any{
			"addr":     "redis:6379",
			"password": "secret",
			"db":       "2",
		},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "zaptick:inbound", source.Queue)
	assert.Equal(t, "redis:6379", source.Connection["addr"])
	assert.Equal(t, "2", source.Connection["db"])
}

func TestParseMessage(t *testing.T) {
	payload := []byte(`{
		"tenant_id": "tenant-1",
		"channel_id": "channel-1",
		"contact_id": "contact-1",
		"contact_name": "Dana",
		"text": "order status"
	}`)

	message, err := ParseMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", message.TenantID)
	assert.Equal(t, "order status", message.Text)
	assert.NotEmpty(t, message.ID)
	assert.False(t, message.Timestamp.IsZero())
}

func TestParseMessageRejectsMissingIdentifiers(t *testing.T) {
	_, err := ParseMessage([]byte(`{"text": "hello"}`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`{"tenant_id": "tenant-1", "text": "hello"}`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`not json`))
	assert.Error(t, err)
}
