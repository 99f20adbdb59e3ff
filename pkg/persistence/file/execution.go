package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations. All
// writes go through one mutex so create and compare-and-swap stay atomic
// within the process.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return path.Join(er.root, "executions")
}

// CreateExecution persists a new execution, rejecting it when the contact
// already has an active execution of the same workflow.
func (er *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.AutomationExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	existing, err := er.loadAll(ctx)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.WorkflowID == execution.WorkflowID &&
			other.ContactID == execution.ContactID &&
			other.Status.IsActive() {
			return persistence.NewExecutionError("CreateExecution", execution.ID, persistence.ErrExecutionAlreadyRunning)
		}
	}

	return er.write(execution)
}

// UpdateExecution persists the full execution state. It refuses to
// overwrite a record whose stored status is no longer in_progress, so a
// concurrent cancel's status swap survives the executor's checkpoint.
func (er *ExecutionRepository) UpdateExecution(_ context.Context, execution *models.AutomationExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.read(execution.ID)
	if err != nil {
		return err
	}

	if stored.Status != models.ExecutionStatusRunning {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, persistence.ErrStatusConflict)
	}

	return er.write(execution)
}

// GetByID retrieves an execution by its ID from the file system.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.read(id)
}

// CompareAndSwapStatus transitions an execution between statuses atomically
// within this process.
func (er *ExecutionRepository) CompareAndSwapStatus(_ context.Context, executionID string, from, to models.ExecutionStatus) (*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.read(executionID)
	if err != nil {
		return nil, err
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

	if err := er.write(execution); err != nil {
		return nil, err
	}

	return execution, nil
}

// DueResumes returns suspended executions whose resume time has passed.
func (er *ExecutionRepository) DueResumes(ctx context.Context, before time.Time) ([]*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	all, err := er.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var due []*models.AutomationExecution

	for _, execution := range all {
		if execution.Status != models.ExecutionStatusSuspended {
			continue
		}

		if execution.ResumeAt == nil || execution.ResumeAt.After(before) {
			continue
		}

		due = append(due, execution)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	return due, nil
}

// ListByWorkflow returns the most recent executions of a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.AutomationExecution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	all, err := er.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*models.AutomationExecution

	for _, execution := range all {
		if execution.WorkflowID == workflowID {
			matched = append(matched, execution)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (er *ExecutionRepository) loadAll(_ context.Context) ([]*models.AutomationExecution, error) {
	root := os.DirFS(er.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.AutomationExecution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		executionID := file[:len(file)-5]

		execution, err := er.read(executionID)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

func (er *ExecutionRepository) read(id string) (*models.AutomationExecution, error) {
	filePath := filepath.Clean(path.Join(er.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", id, err)
	}

	var execution models.AutomationExecution

	err = json.Unmarshal(body, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) write(execution *models.AutomationExecution) error {
	err := os.MkdirAll(er.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	filePath := path.Join(er.dir(), execution.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}
