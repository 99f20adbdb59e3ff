// Package persistence provides data storage abstraction for workflows,
// executions and auto replies.
package persistence

import (
	"context"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
)

// Persistence aggregates the repositories backing a storage implementation.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	AutoReplyRepository() AutoReplyRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions controls filtering, sorting and pagination of
// workflow listings.
type ListWorkflowsOptions struct {
	TenantID   string
	ChannelID  string
	ActiveOnly bool

	Limit  int
	Offset int

	SortBy    string // "created_at", "updated_at", "name"
	SortOrder string // "asc", "desc"
}

// WorkflowListResult carries one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

// WorkflowRepository handles workflow storage operations.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)

	// ActiveWorkflows returns all active workflows for a tenant channel.
	// Used on every inbound message to collect candidate trigger rules.
	ActiveWorkflows(ctx context.Context, tenantID, channelID string) ([]*models.Workflow, error)

	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// RecordRun atomically bumps the workflow's execution counters and
	// last-triggered timestamp after a run finishes.
	RecordRun(ctx context.Context, workflowID string, succeeded bool, triggeredAt time.Time) error
}

// ExecutionRepository handles execution state storage. Implementations
// must make CreateExecution and CompareAndSwapStatus atomic so concurrent
// resume or cancel attempts cannot both win.
type ExecutionRepository interface {
	// CreateExecution persists a new execution. It returns
	// ErrExecutionAlreadyRunning when the same contact already has an
	// active execution of the same workflow.
	CreateExecution(ctx context.Context, execution *models.AutomationExecution) error

	// UpdateExecution persists the full execution state. Called after
	// every node completes so a restart can resume from the checkpoint.
	// It returns ErrStatusConflict when the stored record is no longer
	// in_progress, so a concurrent cancel's status swap is never
	// overwritten by a stale checkpoint.
	UpdateExecution(ctx context.Context, execution *models.AutomationExecution) error

	GetByID(ctx context.Context, id string) (*models.AutomationExecution, error)

	// CompareAndSwapStatus transitions an execution from one status to
	// another only if it currently holds the expected status, returning
	// the updated execution. A mismatch returns ErrStatusConflict.
	CompareAndSwapStatus(ctx context.Context, executionID string, from, to models.ExecutionStatus) (*models.AutomationExecution, error)

	// DueResumes returns suspended executions whose resume time is at or
	// before the given instant.
	DueResumes(ctx context.Context, before time.Time) ([]*models.AutomationExecution, error)

	// ListByWorkflow returns the most recent executions of a workflow,
	// newest first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.AutomationExecution, error)
}

// AutoReplyRepository handles standalone auto-reply storage.
type AutoReplyRepository interface {
	ActiveAutoReplies(ctx context.Context, tenantID, channelID string) ([]*models.AutoReply, error)
	GetByID(ctx context.Context, id string) (*models.AutoReply, error)
	Save(ctx context.Context, reply *models.AutoReply) error
	Delete(ctx context.Context, id string) error

	// IncrementUsage atomically bumps an auto reply's usage counter.
	IncrementUsage(ctx context.Context, id string) error
}
