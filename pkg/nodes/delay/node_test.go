package delay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

func TestDelayNode_RelativeDurationMs(t *testing.T) {
	node, err := NewDelayNode(&models.Node{
		ID:     "delay-1",
		Config: map[string]any{"duration_ms": 300000.0},
	})
	require.NoError(t, err)

	before := time.Now().UTC()

	result, err := node.Execute(context.Background(), protocol.HandlerContext{})
	require.NoError(t, err)

	assert.True(t, result.Suspend)
	assert.WithinDuration(t, before.Add(5*time.Minute), result.ResumeAt, 2*time.Second)
}

func TestDelayNode_RelativeDurationString(t *testing.T) {
	node, err := NewDelayNode(&models.Node{
		ID:     "delay-1",
		Config: map[string]any{"mode": "relative", "duration": "90s"},
	})
	require.NoError(t, err)

	before := time.Now().UTC()

	result, err := node.Execute(context.Background(), protocol.HandlerContext{})
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(90*time.Second), result.ResumeAt, 2*time.Second)
}

func TestDelayNode_Absolute(t *testing.T) {
	until := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	node, err := NewDelayNode(&models.Node{
		ID: "delay-2",
		Config: map[string]any{
			"mode":  "absolute",
			"until": until.Format(time.RFC3339),
		},
	})
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), protocol.HandlerContext{})
	require.NoError(t, err)
	assert.True(t, result.Suspend)
	assert.True(t, result.ResumeAt.Equal(until))
}

func TestDelayNode_Cron(t *testing.T) {
	node, err := NewDelayNode(&models.Node{
		ID:     "delay-3",
		Config: map[string]any{"mode": "cron", "cron": "0 9 * * *"},
	})
	require.NoError(t, err)

	result, err := node.Execute(context.Background(), protocol.HandlerContext{})
	require.NoError(t, err)
	assert.True(t, result.Suspend)
	assert.True(t, result.ResumeAt.After(time.Now().UTC()))
	assert.Equal(t, 9, result.ResumeAt.Hour())
}

func TestNewDelayNode_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{"no duration", map[string]any{"mode": "relative"}},
		{"negative duration", map[string]any{"duration_ms": -5.0}},
		{"bad duration string", map[string]any{"duration": "soon"}},
		{"absolute without until", map[string]any{"mode": "absolute"}},
		{"bad timestamp", map[string]any{"mode": "absolute", "until": "tomorrow"}},
		{"cron without expr", map[string]any{"mode": "cron"}},
		{"bad cron", map[string]any{"mode": "cron", "cron": "every day"}},
		{"unknown mode", map[string]any{"mode": "eventually"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDelayNode(&models.Node{ID: "bad", Config: tt.config})
			assert.Error(t, err)
		})
	}
}
