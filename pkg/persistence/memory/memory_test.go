package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

func newExecution(id, workflowID, contactID string, status models.ExecutionStatus) *models.AutomationExecution {
	return &models.AutomationExecution{
		ID:         id,
		WorkflowID: workflowID,
		TenantID:   "tenant-1",
		ContactID:  contactID,
		ChannelID:  "channel-1",
		Status:     status,
		StartTime:  time.Now().UTC(),
	}
}

func TestCreateExecutionRejectsDuplicateActive(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	require.NoError(t, repo.CreateExecution(ctx, newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusRunning)))

	err := repo.CreateExecution(ctx, newExecution("exec-2", "wf-1", "contact-1", models.ExecutionStatusPending))
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionAlreadyRunning(err))

	// Different contact on the same workflow is fine.
	assert.NoError(t, repo.CreateExecution(ctx, newExecution("exec-3", "wf-1", "contact-2", models.ExecutionStatusRunning)))
}

func TestCreateExecutionAllowsAfterTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	first := newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusRunning)
	require.NoError(t, repo.CreateExecution(ctx, first))

	_, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusRunning, models.ExecutionStatusCompleted)
	require.NoError(t, err)

	assert.NoError(t, repo.CreateExecution(ctx, newExecution("exec-2", "wf-1", "contact-1", models.ExecutionStatusRunning)))
}

func TestUpdateExecutionRefusesAfterStatusSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	require.NoError(t, repo.CreateExecution(ctx, newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusRunning)))

	_, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusRunning, models.ExecutionStatusCancelled)
	require.NoError(t, err)

	// A checkpoint holding a copy from before the cancel must not win.
	stale := newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusCompleted)
	err = repo.UpdateExecution(ctx, stale)
	require.Error(t, err)
	assert.True(t, persistence.IsStatusConflict(err))

	stored, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, stored.Status)
}

func TestCompareAndSwapStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	execution := newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusSuspended)
	resumeAt := time.Now().UTC().Add(-time.Minute)
	execution.ResumeAt = &resumeAt
	require.NoError(t, repo.CreateExecution(ctx, execution))

	updated, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusSuspended, models.ExecutionStatusRunning)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, updated.Status)

	// Second swap from suspended loses.
	_, err = repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusSuspended, models.ExecutionStatusRunning)
	require.Error(t, err)
	assert.True(t, persistence.IsStatusConflict(err))
}

func TestCompareAndSwapStatusConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	execution := newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusSuspended)
	require.NoError(t, repo.CreateExecution(ctx, execution))

	const attempts = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusSuspended, models.ExecutionStatusRunning); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestCompareAndSwapStatusTerminalStampsEndTime(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	execution := newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusSuspended)
	resumeAt := time.Now().UTC().Add(time.Hour)
	execution.ResumeAt = &resumeAt
	require.NoError(t, repo.CreateExecution(ctx, execution))

	updated, err := repo.CompareAndSwapStatus(ctx, "exec-1", models.ExecutionStatusSuspended, models.ExecutionStatusCancelled)
	require.NoError(t, err)
	assert.NotNil(t, updated.EndTime)
	assert.Nil(t, updated.ResumeAt)
}

func TestDueResumes(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	due := newExecution("exec-due", "wf-1", "contact-1", models.ExecutionStatusSuspended)
	due.ResumeAt = &past
	require.NoError(t, repo.CreateExecution(ctx, due))

	future := now.Add(time.Hour)
	notYet := newExecution("exec-later", "wf-1", "contact-2", models.ExecutionStatusSuspended)
	notYet.ResumeAt = &future
	require.NoError(t, repo.CreateExecution(ctx, notYet))

	running := newExecution("exec-running", "wf-1", "contact-3", models.ExecutionStatusRunning)
	require.NoError(t, repo.CreateExecution(ctx, running))

	found, err := repo.DueResumes(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "exec-due", found[0].ID)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().ExecutionRepository()

	execution := newExecution("exec-1", "wf-1", "contact-1", models.ExecutionStatusRunning)
	require.NoError(t, repo.CreateExecution(ctx, execution))

	first, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)

	first.SetVariable("mutated", true)

	second, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.NotContains(t, second.Data.Variables, "mutated")
}

func TestWorkflowRecordRun(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().WorkflowRepository()

	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-1", TenantID: "tenant-1", Name: "order status"}))

	triggeredAt := time.Now().UTC()
	require.NoError(t, repo.RecordRun(ctx, "wf-1", true, triggeredAt))
	require.NoError(t, repo.RecordRun(ctx, "wf-1", false, triggeredAt.Add(time.Second)))

	wf, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), wf.ExecutionCount)
	assert.Equal(t, int64(1), wf.SuccessCount)
	assert.Equal(t, int64(1), wf.FailureCount)
	require.NotNil(t, wf.LastTriggered)
	assert.Equal(t, triggeredAt.Add(time.Second).Unix(), wf.LastTriggered.Unix())
}

func TestActiveWorkflowsFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().WorkflowRepository()

	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-1", TenantID: "tenant-1", ChannelID: "channel-1", IsActive: true}))
	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-2", TenantID: "tenant-1", ChannelID: "channel-2", IsActive: true}))
	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-3", TenantID: "tenant-1", ChannelID: "channel-1", IsActive: false}))
	require.NoError(t, repo.Save(ctx, &models.Workflow{ID: "wf-4", TenantID: "tenant-2", ChannelID: "channel-1", IsActive: true}))

	active, err := repo.ActiveWorkflows(ctx, "tenant-1", "channel-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "wf-1", active[0].ID)
}

func TestListWorkflowsPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().WorkflowRepository()

	for _, id := range []string{"wf-a", "wf-b", "wf-c"} {
		require.NoError(t, repo.Save(ctx, &models.Workflow{ID: id, TenantID: "tenant-1", Name: id}))
	}

	result, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{
		TenantID:  "tenant-1",
		Limit:     2,
		SortBy:    "name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TotalCount)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "wf-a", result.Workflows[0].ID)
	assert.True(t, result.HasNextPage)
}

func TestAutoReplyIncrementUsage(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence().AutoReplyRepository()

	require.NoError(t, repo.Save(ctx, &models.AutoReply{
		ID:       "ar-1",
		TenantID: "tenant-1",
		Name:     "hours",
		IsActive: true,
		Phrases:  []string{"opening hours"},
		Reply:    map[string]any{"text": "We are open 9-5."},
	}))

	require.NoError(t, repo.IncrementUsage(ctx, "ar-1"))
	require.NoError(t, repo.IncrementUsage(ctx, "ar-1"))

	reply, err := repo.GetByID(ctx, "ar-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply.UsageCount)

	assert.ErrorIs(t, repo.IncrementUsage(ctx, "missing"), persistence.ErrAutoReplyNotFound)
}
