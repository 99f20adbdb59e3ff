// Package memory provides an in-memory persistence implementation used in
// tests and single-process deployments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	autoReplyRepo *AutoReplyRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflowRepo:  &WorkflowRepository{workflows: make(map[string]*models.Workflow)},
		executionRepo: &ExecutionRepository{executions: make(map[string]*models.AutomationExecution)},
		autoReplyRepo: &AutoReplyRepository{replies: make(map[string]*models.AutoReply)},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) AutoReplyRepository() persistence.AutoReplyRepository {
	return p.autoReplyRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// clone deep-copies a value through JSON so callers never share state with
// the store.
func clone[T any](in *T) (*T, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to clone value: %w", err)
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to clone value: %w", err)
	}

	return out, nil
}

// WorkflowRepository is the in-memory workflow store.
type WorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

func (wr *WorkflowRepository) ListWorkflows(_ context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	wr.mu.RLock()

	filtered := make([]*models.Workflow, 0, len(wr.workflows))

	for _, wf := range wr.workflows {
		if opts.TenantID != "" && wf.TenantID != opts.TenantID {
			continue
		}

		if opts.ChannelID != "" && wf.ChannelID != opts.ChannelID {
			continue
		}

		if opts.ActiveOnly && !wf.IsActive {
			continue
		}

		copied, err := clone(wf)
		if err != nil {
			wr.mu.RUnlock()

			return nil, err
		}

		filtered = append(filtered, copied)
	}

	wr.mu.RUnlock()

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	startIdx := opts.Offset
	if startIdx >= len(filtered) {
		return &persistence.WorkflowListResult{
			Workflows:   make([]*models.Workflow, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := opts.Offset + opts.Limit
	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	return &persistence.WorkflowListResult{
		Workflows:   filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.Slice(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		case "name":
			less = workflows[i].Name < workflows[j].Name
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

func (wr *WorkflowRepository) ActiveWorkflows(_ context.Context, tenantID, channelID string) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	var active []*models.Workflow

	for _, wf := range wr.workflows {
		if !wf.IsActive || wf.TenantID != tenantID {
			continue
		}

		if channelID != "" && wf.ChannelID != "" && wf.ChannelID != channelID {
			continue
		}

		copied, err := clone(wf)
		if err != nil {
			return nil, err
		}

		active = append(active, copied)
	}

	return active, nil
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	wf, ok := wr.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return clone(wf)
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	copied, err := clone(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	wr.workflows[workflow.ID] = copied

	return nil
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	delete(wr.workflows, id)

	return nil
}

func (wr *WorkflowRepository) RecordRun(_ context.Context, workflowID string, succeeded bool, triggeredAt time.Time) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	wf, ok := wr.workflows[workflowID]
	if !ok {
		return persistence.NewWorkflowError("RecordRun", workflowID, persistence.ErrWorkflowNotFound)
	}

	wf.ExecutionCount++

	if succeeded {
		wf.SuccessCount++
	} else {
		wf.FailureCount++
	}

	if wf.LastTriggered == nil || triggeredAt.After(*wf.LastTriggered) {
		t := triggeredAt
		wf.LastTriggered = &t
	}

	return nil
}

// ExecutionRepository is the in-memory execution store. Create and CAS
// operations run under the same lock so concurrent starts, resumes and
// cancels serialize.
type ExecutionRepository struct {
	mu         sync.Mutex
	executions map[string]*models.AutomationExecution
}

func (er *ExecutionRepository) CreateExecution(_ context.Context, execution *models.AutomationExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	for _, existing := range er.executions {
		if existing.WorkflowID == execution.WorkflowID &&
			existing.ContactID == execution.ContactID &&
			existing.Status.IsActive() {
			return persistence.NewExecutionError("CreateExecution", execution.ID, persistence.ErrExecutionAlreadyRunning)
		}
	}

	copied, err := clone(execution)
	if err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	er.executions[execution.ID] = copied

	return nil
}

func (er *ExecutionRepository) UpdateExecution(_ context.Context, execution *models.AutomationExecution) error {
	copied, err := clone(execution)
	if err != nil {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	stored, ok := er.executions[execution.ID]
	if !ok {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	// The executor owns the record only while it is in_progress. A cancel
	// that swapped the status since the last checkpoint wins; the stale
	// copy must not overwrite it.
	if stored.Status != models.ExecutionStatusRunning {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, persistence.ErrStatusConflict)
	}

	er.executions[execution.ID] = copied

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, ok := er.executions[id]
	if !ok {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return clone(execution)
}

func (er *ExecutionRepository) CompareAndSwapStatus(_ context.Context, executionID string, from, to models.ExecutionStatus) (*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, ok := er.executions[executionID]
	if !ok {
		return nil, persistence.NewExecutionError("CompareAndSwapStatus", executionID, persistence.ErrExecutionNotFound)
	}

	if execution.Status != from {
		return nil, persistence.NewExecutionError("CompareAndSwapStatus", executionID, persistence.ErrStatusConflict)
	}

	execution.Status = to

	if to.IsTerminal() {
		now := time.Now().UTC()
		execution.EndTime = &now
		execution.ResumeAt = nil
	}

	return clone(execution)
}

func (er *ExecutionRepository) DueResumes(_ context.Context, before time.Time) ([]*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	var due []*models.AutomationExecution

	for _, execution := range er.executions {
		if execution.Status != models.ExecutionStatusSuspended {
			continue
		}

		if execution.ResumeAt == nil || execution.ResumeAt.After(before) {
			continue
		}

		copied, err := clone(execution)
		if err != nil {
			return nil, err
		}

		due = append(due, copied)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	return due, nil
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	var matched []*models.AutomationExecution

	for _, execution := range er.executions {
		if execution.WorkflowID != workflowID {
			continue
		}

		copied, err := clone(execution)
		if err != nil {
			return nil, err
		}

		matched = append(matched, copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// AutoReplyRepository is the in-memory auto-reply store.
type AutoReplyRepository struct {
	mu      sync.RWMutex
	replies map[string]*models.AutoReply
}

func (ar *AutoReplyRepository) ActiveAutoReplies(_ context.Context, tenantID, channelID string) ([]*models.AutoReply, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	var active []*models.AutoReply

	for _, reply := range ar.replies {
		if !reply.IsActive || reply.TenantID != tenantID {
			continue
		}

		if channelID != "" && reply.ChannelID != "" && reply.ChannelID != channelID {
			continue
		}

		copied, err := clone(reply)
		if err != nil {
			return nil, err
		}

		active = append(active, copied)
	}

	return active, nil
}

func (ar *AutoReplyRepository) GetByID(_ context.Context, id string) (*models.AutoReply, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	reply, ok := ar.replies[id]
	if !ok {
		return nil, persistence.ErrAutoReplyNotFound
	}

	return clone(reply)
}

func (ar *AutoReplyRepository) Save(_ context.Context, reply *models.AutoReply) error {
	now := time.Now().UTC()
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = now
	}

	reply.UpdatedAt = now

	copied, err := clone(reply)
	if err != nil {
		return err
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	ar.replies[reply.ID] = copied

	return nil
}

func (ar *AutoReplyRepository) Delete(_ context.Context, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	delete(ar.replies, id)

	return nil
}

func (ar *AutoReplyRepository) IncrementUsage(_ context.Context, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	reply, ok := ar.replies[id]
	if !ok {
		return persistence.ErrAutoReplyNotFound
	}

	reply.UsageCount++

	return nil
}
