package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

func TestWorkflowStatsAfterRuns(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	require.NoError(t, rig.store.WorkflowRepository().Save(ctx, conditionWorkflow()))

	require.NoError(t, rig.engine.HandleMessage(ctx, inbound("contact-1", "order", map[string]any{"amount": float64(150)})))
	require.NoError(t, rig.engine.HandleMessage(ctx, inbound("contact-2", "order", map[string]any{"amount": float64(50)})))

	rig.messenger.failures = []error{
		&protocol.SendError{Code: "invalid_recipient", Retryable: false},
	}
	require.Error(t, rig.engine.HandleMessage(ctx, inbound("contact-3", "order", map[string]any{"amount": float64(50)})))

	analytics := NewAnalytics(rig.store.WorkflowRepository(), rig.store.ExecutionRepository())

	stats, err := analytics.WorkflowStats(ctx, "wf-orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ExecutionCount)
	assert.Equal(t, int64(2), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)
	assert.NotNil(t, stats.LastTriggered)
}

func TestWorkflowStatsNeverRan(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	require.NoError(t, rig.store.WorkflowRepository().Save(ctx, conditionWorkflow()))

	analytics := NewAnalytics(rig.store.WorkflowRepository(), rig.store.ExecutionRepository())

	stats, err := analytics.WorkflowStats(ctx, "wf-orders")
	require.NoError(t, err)
	assert.Zero(t, stats.SuccessRate)
	assert.Nil(t, stats.LastTriggered)
}

func TestNodeUsageCounts(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t)

	require.NoError(t, rig.store.WorkflowRepository().Save(ctx, conditionWorkflow()))

	require.NoError(t, rig.engine.HandleMessage(ctx, inbound("contact-1", "order", map[string]any{"amount": float64(150)})))
	require.NoError(t, rig.engine.HandleMessage(ctx, inbound("contact-2", "order", map[string]any{"amount": float64(50)})))

	analytics := NewAnalytics(rig.store.WorkflowRepository(), rig.store.ExecutionRepository())

	usage, err := analytics.NodeUsage(ctx, "wf-orders", 10)
	require.NoError(t, err)

	counts := make(map[string]int64)
	for _, u := range usage {
		counts[u.NodeID] = u.Executions
	}

	assert.Equal(t, int64(2), counts["trig"])
	assert.Equal(t, int64(2), counts["cond"])
	assert.Equal(t, int64(1), counts["send_vip_reply"])
	assert.Equal(t, int64(1), counts["send_standard_reply"])

	// Most executed nodes come first.
	assert.Equal(t, int64(2), usage[0].Executions)
}
