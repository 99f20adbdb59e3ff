package engine

import (
	"context"
	"sort"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

// WorkflowStats summarizes a workflow's run history.
type WorkflowStats struct {
	WorkflowID     string  `json:"workflow_id"`
	ExecutionCount int64   `json:"execution_count"`
	SuccessCount   int64   `json:"success_count"`
	FailureCount   int64   `json:"failure_count"`
	SuccessRate    float64 `json:"success_rate"`

	LastTriggered *string `json:"last_triggered,omitempty"`
}

// NodeUsage counts how often a node completed across recent executions.
type NodeUsage struct {
	NodeID     string          `json:"node_id"`
	NodeName   string          `json:"node_name"`
	NodeType   models.NodeType `json:"node_type"`
	Executions int64           `json:"executions"`
}

// Analytics reads aggregate workflow statistics from the store.
type Analytics struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
}

// NewAnalytics creates an analytics reader.
func NewAnalytics(workflows persistence.WorkflowRepository, executions persistence.ExecutionRepository) *Analytics {
	return &Analytics{workflows: workflows, executions: executions}
}

// WorkflowStats returns the workflow's counters and success rate. A
// workflow that never ran has a rate of zero, not a division error.
func (a *Analytics) WorkflowStats(ctx context.Context, workflowID string) (*WorkflowStats, error) {
	wf, err := a.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	stats := &WorkflowStats{
		WorkflowID:     wf.ID,
		ExecutionCount: wf.ExecutionCount,
		SuccessCount:   wf.SuccessCount,
		FailureCount:   wf.FailureCount,
	}

	if wf.ExecutionCount > 0 {
		stats.SuccessRate = float64(wf.SuccessCount) / float64(wf.ExecutionCount)
	}

	if wf.LastTriggered != nil {
		formatted := wf.LastTriggered.Format("2006-01-02T15:04:05Z07:00")
		stats.LastTriggered = &formatted
	}

	return stats, nil
}

// NodeUsage folds the histories of the workflow's most recent executions
// into per-node completion counts, most used first.
func (a *Analytics) NodeUsage(ctx context.Context, workflowID string, recentLimit int) ([]NodeUsage, error) {
	executions, err := a.executions.ListByWorkflow(ctx, workflowID, recentLimit)
	if err != nil {
		return nil, err
	}

	byNode := make(map[string]*NodeUsage)

	for _, execution := range executions {
		for _, entry := range execution.History {
			if entry.Status != models.HistoryStatusCompleted {
				continue
			}

			usage, ok := byNode[entry.NodeID]
			if !ok {
				usage = &NodeUsage{
					NodeID:   entry.NodeID,
					NodeName: entry.NodeName,
					NodeType: entry.NodeType,
				}
				byNode[entry.NodeID] = usage
			}

			usage.Executions++
		}
	}

	usages := make([]NodeUsage, 0, len(byNode))
	for _, usage := range byNode {
		usages = append(usages, *usage)
	}

	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Executions != usages[j].Executions {
			return usages[i].Executions > usages[j].Executions
		}

		return usages[i].NodeID < usages[j].NodeID
	})

	return usages, nil
}
