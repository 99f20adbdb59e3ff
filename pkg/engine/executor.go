// Package engine implements the automation engine: trigger dispatch, graph
// execution and execution analytics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapllo/zaptick-sub010/pkg/eventbus"
	"github.com/zapllo/zaptick-sub010/pkg/events"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/otelhelper"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
	"github.com/zapllo/zaptick-sub010/pkg/registry"
)

const defaultRetryBackoff = 1000 * time.Millisecond

// GraphExecutor walks a workflow graph node by node, checkpointing the
// execution after every step. It owns the execution it runs: nothing else
// mutates an in_progress execution except a cancel's status swap, which the
// executor detects before each node and again at every checkpoint write.
type GraphExecutor struct {
	logger          *slog.Logger
	registry        *registry.Registry
	workflows       persistence.WorkflowRepository
	executions      persistence.ExecutionRepository
	eventBus        eventbus.EventPublisher
	resumeScheduler protocol.ResumeScheduler
	tracer          trace.Tracer
}

// NewGraphExecutor creates an executor. The event publisher and resume
// scheduler are optional.
func NewGraphExecutor(
	logger *slog.Logger,
	reg *registry.Registry,
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionRepository,
	eventBus eventbus.EventPublisher,
	resumeScheduler protocol.ResumeScheduler,
) *GraphExecutor {
	return &GraphExecutor{
		logger:          logger.With("module", "executor"),
		registry:        reg,
		workflows:       workflows,
		executions:      executions,
		eventBus:        eventBus,
		resumeScheduler: resumeScheduler,
		tracer:          otel.Tracer("zaptick-engine"),
	}
}

// Run advances an in_progress execution from its current node until it
// completes, fails, suspends on a delay, or is cancelled from outside. The
// execution must already hold the in_progress status.
func (ge *GraphExecutor) Run(ctx context.Context, workflow *models.Workflow, execution *models.AutomationExecution, message *models.InboundMessage) error {
	logger := ge.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
	)

	ctx, span := otelhelper.StartSpan(ctx, ge.tracer, "execution.run",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.TenantIDKey, execution.TenantID),
	)
	defer span.End()

	if err := workflow.ValidateGraph(); err != nil {
		logger.Error("Workflow graph is invalid", "error", err)

		return ge.fail(ctx, workflow, execution, "", err)
	}

	if execution.CurrentNodeID == "" {
		entry := workflow.EntryNode()
		if entry == nil {
			return ge.fail(ctx, workflow, execution, "", &models.ConfigurationError{WorkflowID: workflow.ID, Reason: "no trigger node"})
		}

		execution.CurrentNodeID = entry.ID
	}

	// Each node runs at most once, so an acyclic graph finishes within
	// len(Nodes) steps. Exceeding that means a cycle slipped past
	// validation.
	for steps := 0; steps <= len(workflow.Nodes); steps++ {
		if execution.CurrentNodeID == "" {
			return ge.complete(ctx, workflow, execution)
		}

		if cancelled, err := ge.cancelledElsewhere(ctx, execution.ID); err != nil {
			return err
		} else if cancelled {
			logger.Info("Execution cancelled, stopping")

			return nil
		}

		node := workflow.NodeByID(execution.CurrentNodeID)
		if node == nil {
			err := &models.ConfigurationError{WorkflowID: workflow.ID, NodeID: execution.CurrentNodeID, Reason: "current node not in graph"}

			return ge.fail(ctx, workflow, execution, execution.CurrentNodeID, err)
		}

		result, err := ge.runNode(ctx, workflow, execution, node, message)
		if err != nil {
			return ge.fail(ctx, workflow, execution, node.ID, err)
		}

		if result.Suspend {
			return ge.suspend(ctx, workflow, execution, node, result)
		}

		next := workflow.NextEdge(node.ID, result.OutputHandle)
		if next == nil {
			execution.CurrentNodeID = ""
		} else {
			execution.CurrentNodeID = next.Target
		}

		if err := ge.executions.UpdateExecution(ctx, execution); err != nil {
			if persistence.IsStatusConflict(err) {
				logger.Info("Execution cancelled, discarding checkpoint")

				return nil
			}

			return fmt.Errorf("failed to checkpoint execution %s: %w", execution.ID, err)
		}
	}

	err := &models.ConfigurationError{WorkflowID: workflow.ID, NodeID: execution.CurrentNodeID, Reason: "graph did not terminate, cycle suspected"}

	return ge.fail(ctx, workflow, execution, execution.CurrentNodeID, err)
}

// runNode executes one node with its retry budget, recording history and
// merging variable writes. Already-completed nodes are skipped so resuming
// past a delay never re-runs its side effects.
func (ge *GraphExecutor) runNode(ctx context.Context, workflow *models.Workflow, execution *models.AutomationExecution, node *models.Node, message *models.InboundMessage) (*protocol.HandlerResult, error) {
	if execution.HasCompleted(node.ID) {
		return &protocol.HandlerResult{}, nil
	}

	handler, err := ge.registry.CreateHandler(ctx, node)
	if err != nil {
		return nil, err
	}

	hctx := protocol.HandlerContext{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		TenantID:    execution.TenantID,
		Variables:   execution.Data.Variables,
		Message:     message,
	}

	maxRetries := intConfig(node.Config, "max_retries", 0)
	backoff := time.Duration(intConfig(node.Config, "backoff_ms", int(defaultRetryBackoff/time.Millisecond))) * time.Millisecond

	ctx, span := otelhelper.StartSpan(ctx, ge.tracer, "node.execute",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	startedAt := time.Now().UTC()

	var result *protocol.HandlerResult

	for attempt := 0; ; attempt++ {
		result, err = handler.Execute(ctx, hctx)
		if err == nil {
			break
		}

		if attempt >= maxRetries || !protocol.IsRetryable(err) {
			otelhelper.SetError(span, err,
				attribute.String(otelhelper.NodeIDKey, node.ID))
			execution.AppendHistory(models.HistoryEntry{
				NodeID:     node.ID,
				NodeName:   node.Name,
				NodeType:   node.Type,
				Status:     models.HistoryStatusFailed,
				StartedAt:  startedAt,
				FinishedAt: time.Now().UTC(),
				Error:      err.Error(),
			})

			return nil, err
		}

		ge.logger.Warn("Node failed, retrying",
			"execution_id", execution.ID,
			"node_id", node.ID,
			"attempt", attempt+1,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	for k, v := range result.Vars {
		execution.SetVariable(k, v)
	}

	execution.MarkNodeCompleted(node.ID)
	execution.AppendHistory(models.HistoryEntry{
		NodeID:     node.ID,
		NodeName:   node.Name,
		NodeType:   node.Type,
		Status:     models.HistoryStatusCompleted,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Result:     result.Result,
	})

	return result, nil
}

// suspend parks the execution on a delay node. The delay node is already
// marked completed and the cursor moved past it, so the resumed execution
// picks up at the following node exactly once.
func (ge *GraphExecutor) suspend(ctx context.Context, workflow *models.Workflow, execution *models.AutomationExecution, node *models.Node, result *protocol.HandlerResult) error {
	next := workflow.NextEdge(node.ID, result.OutputHandle)
	if next == nil {
		execution.CurrentNodeID = ""
	} else {
		execution.CurrentNodeID = next.Target
	}

	resumeAt := result.ResumeAt.UTC()
	execution.Status = models.ExecutionStatusSuspended
	execution.ResumeAt = &resumeAt

	if err := ge.executions.UpdateExecution(ctx, execution); err != nil {
		if persistence.IsStatusConflict(err) {
			ge.logger.Info("Execution cancelled, not suspending", "execution_id", execution.ID)

			return nil
		}

		return fmt.Errorf("failed to suspend execution %s: %w", execution.ID, err)
	}

	if ge.resumeScheduler != nil {
		if err := ge.resumeScheduler.ScheduleResume(ctx, execution.ID, resumeAt); err != nil {
			ge.logger.Error("Failed to schedule resume",
				"execution_id", execution.ID,
				"error", err)
		}
	}

	ge.publish(ctx, execution.WorkflowID, events.ExecutionSuspended{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSuspendedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		NodeID:      node.ID,
		ResumeAt:    resumeAt,
	})

	ge.logger.Info("Execution suspended",
		"execution_id", execution.ID,
		"node_id", node.ID,
		"resume_at", resumeAt)

	return nil
}

func (ge *GraphExecutor) complete(ctx context.Context, workflow *models.Workflow, execution *models.AutomationExecution) error {
	execution.Finalize(models.ExecutionStatusCompleted)
	execution.CurrentNodeID = ""

	if err := ge.executions.UpdateExecution(ctx, execution); err != nil {
		if persistence.IsStatusConflict(err) {
			ge.logger.Info("Execution cancelled, discarding completion", "execution_id", execution.ID)

			return nil
		}

		return fmt.Errorf("failed to finalize execution %s: %w", execution.ID, err)
	}

	if err := ge.workflows.RecordRun(ctx, workflow.ID, true, execution.StartTime); err != nil {
		ge.logger.Error("Failed to record workflow run", "workflow_id", workflow.ID, "error", err)
	}

	ge.publish(ctx, execution.WorkflowID, events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID:   execution.ID,
		ContactID:     execution.ContactID,
		DurationMs:    durationMs(execution),
		NodesExecuted: len(execution.CompletedNodeIDs),
		FinalResults:  execution.Data.Variables,
	})

	ge.logger.Info("Execution completed",
		"execution_id", execution.ID,
		"nodes_executed", len(execution.CompletedNodeIDs))

	return nil
}

func (ge *GraphExecutor) fail(ctx context.Context, workflow *models.Workflow, execution *models.AutomationExecution, nodeID string, cause error) error {
	var details map[string]any

	var handlerErr *protocol.HandlerError
	if errors.As(cause, &handlerErr) {
		details = handlerErr.Details

		if nodeID == "" {
			nodeID = handlerErr.NodeID
		}
	}

	execution.RecordError(nodeID, cause.Error(), details)
	execution.Finalize(models.ExecutionStatusFailed)

	if err := ge.executions.UpdateExecution(ctx, execution); err != nil {
		if persistence.IsStatusConflict(err) {
			ge.logger.Info("Execution cancelled, discarding failure", "execution_id", execution.ID)

			return nil
		}

		ge.logger.Error("Failed to persist failed execution",
			"execution_id", execution.ID,
			"error", err)
	}

	if err := ge.workflows.RecordRun(ctx, workflow.ID, false, execution.StartTime); err != nil {
		ge.logger.Error("Failed to record workflow run", "workflow_id", workflow.ID, "error", err)
	}

	ge.publish(ctx, execution.WorkflowID, events.ExecutionFailed{
		BaseEvent:     events.NewBaseEvent(events.ExecutionFailedEvent, execution.TenantID, execution.WorkflowID),
		ExecutionID:   execution.ID,
		ContactID:     execution.ContactID,
		DurationMs:    durationMs(execution),
		NodeID:        nodeID,
		Error:         cause.Error(),
		ErrorDetails:  details,
		NodesExecuted: len(execution.CompletedNodeIDs),
	})

	ge.logger.Error("Execution failed",
		"execution_id", execution.ID,
		"node_id", nodeID,
		"error", cause)

	return cause
}

// cancelledElsewhere checks whether a concurrent cancel claimed the
// execution since the last checkpoint.
func (ge *GraphExecutor) cancelledElsewhere(ctx context.Context, executionID string) (bool, error) {
	stored, err := ge.executions.GetByID(ctx, executionID)
	if err != nil {
		return false, err
	}

	return stored.Status != models.ExecutionStatusRunning, nil
}

func (ge *GraphExecutor) publish(ctx context.Context, key string, event eventbus.Event) {
	if ge.eventBus == nil {
		return
	}

	if err := ge.eventBus.Publish(ctx, key, event); err != nil {
		ge.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func durationMs(execution *models.AutomationExecution) int64 {
	end := time.Now().UTC()
	if execution.EndTime != nil {
		end = *execution.EndTime
	}

	return end.Sub(execution.StartTime).Milliseconds()
}

func intConfig(config map[string]any, key string, fallback int) int {
	raw, ok := config[key]
	if !ok {
		return fallback
	}

	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
