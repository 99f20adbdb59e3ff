package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

func TestWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())
	repo := p.WorkflowRepository()

	wf := &models.Workflow{
		ID:        "wf-1",
		TenantID:  "tenant-1",
		ChannelID: "channel-1",
		Name:      "order status",
		IsActive:  true,
		Nodes: []*models.Node{
			{ID: "trig", Type: models.NodeTypeTrigger, Config: map[string]any{"phrases": []any{"order status"}}},
		},
	}

	require.NoError(t, repo.Save(ctx, wf))

	loaded, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "order status", loaded.Name)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, models.NodeTypeTrigger, loaded.Nodes[0].Type)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRecordRunPersists(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-1", TenantID: "tenant-1", Name: "greeter"}))
	require.NoError(t, repo.RecordRun(ctx, "wf-1", true, time.Now().UTC()))

	wf, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), wf.ExecutionCount)
	assert.Equal(t, int64(1), wf.SuccessCount)
	assert.NotNil(t, wf.LastTriggered)
}

func TestExecutionCreateAndCAS(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	execution := &models.AutomationExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		TenantID:   "tenant-1",
		ContactID:  "contact-1",
		Status:     models.ExecutionStatusRunning,
		StartTime:  time.Now().UTC(),
	}

	require.NoError(t, repo.CreateExecution(ctx, execution))

	dup := &models.AutomationExecution{
		ID:         "exec-2",
		WorkflowID: "wf-1",
		ContactID:  "contact-1",
		Status:     models.ExecutionStatusPending,
		StartTime:  time.Now().UTC(),
	}
	assert.True(t, persistence.IsExecutionAlreadyRunning(repo.CreateExecution(ctx, dup)))

	updated, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusRunning, models.ExecutionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, updated.Status)
	assert.NotNil(t, updated.EndTime)

	_, err = repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusRunning, models.ExecutionStatusCompleted)
	assert.True(t, persistence.IsStatusConflict(err))
}

func TestExecutionUpdateRefusesAfterStatusSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	execution := &models.AutomationExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		TenantID:   "tenant-1",
		ContactID:  "contact-1",
		Status:     models.ExecutionStatusRunning,
		StartTime:  time.Now().UTC(),
	}
	require.NoError(t, repo.CreateExecution(ctx, execution))

	_, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusRunning, models.ExecutionStatusCancelled)
	require.NoError(t, err)

	// A checkpoint holding a copy from before the cancel must not win.
	execution.Status = models.ExecutionStatusCompleted
	err = repo.UpdateExecution(ctx, execution)
	require.Error(t, err)
	assert.True(t, persistence.IsStatusConflict(err))

	stored, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, stored.Status)
}

func TestExecutionDueResumes(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	suspended := &models.AutomationExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		ContactID:  "contact-1",
		Status:     models.ExecutionStatusSuspended,
		ResumeAt:   &past,
		StartTime:  now.Add(-time.Hour),
	}
	require.NoError(t, repo.CreateExecution(ctx, suspended))

	due, err := repo.DueResumes(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "exec-1", due[0].ID)
}

func TestAutoReplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).AutoReplyRepository()

	require.NoError(t, repo.Save(ctx, &models.AutoReply{
		ID:       "ar-1",
		TenantID: "tenant-1",
		Name:     "hours",
		IsActive: true,
		Phrases:  []string{"opening hours"},
		Reply:    map[string]any{"text": "We are open 9-5."},
	}))

	require.NoError(t, repo.IncrementUsage(ctx, "ar-1"))

	reply, err := repo.GetByID(ctx, "ar-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), reply.UsageCount)

	active, err := repo.ActiveAutoReplies(ctx, "tenant-1", "")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestHealthCheck(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir)
	assert.NoError(t, p.HealthCheck(context.Background()))

	missing := NewPersistence(dir + "/does-not-exist")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
