package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapllo/zaptick-sub010/pkg/eventbus"
	"github.com/zapllo/zaptick-sub010/pkg/events"
)

// EventLogger subscribes to execution lifecycle events and writes a
// structured audit trail. Workflow counters are recorded synchronously by
// the executor, so the listener only observes; it never mutates state.
type EventLogger struct {
	logger *slog.Logger
}

func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{logger: logger.With("module", "event_logger")}
}

// Register installs a handler per lifecycle event type and starts the
// bus subscription.
func (l *EventLogger) Register(ctx context.Context, bus eventbus.EventBus) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.ExecutionStartedEvent:   l.onStarted,
		events.ExecutionCompletedEvent: l.onCompleted,
		events.ExecutionFailedEvent:    l.onFailed,
		events.ExecutionSuspendedEvent: l.onSuspended,
		events.ExecutionResumedEvent:   l.onResumed,
		events.ExecutionCancelledEvent: l.onCancelled,
		events.AutoReplySentEvent:      l.onAutoReplySent,
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return bus.Subscribe(ctx)
}

func (l *EventLogger) onStarted(ctx context.Context, event any) error {
	e, ok := event.(*events.ExecutionStarted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.InfoContext(ctx, "Execution started",
		"execution_id", e.ExecutionID,
		"workflow_id", e.WorkflowID,
		"workflow_name", e.WorkflowName,
		"contact_id", e.ContactID)

	return nil
}

func (l *EventLogger) onCompleted(ctx context.Context, event any) error {
	e, ok := event.(*events.ExecutionCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.InfoContext(ctx, "Execution completed",
		"execution_id", e.ExecutionID,
		"workflow_id", e.WorkflowID,
		"duration_ms", e.DurationMs,
		"nodes_executed", e.NodesExecuted)

	return nil
}

func (l *EventLogger) onFailed(ctx context.Context, event any) error {
	e, ok := event.(*events.ExecutionFailed)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", e.ExecutionID,
		"workflow_id", e.WorkflowID,
		"node_id", e.NodeID,
		"error", e.Error)

	return nil
}

func (l *EventLogger) onSuspended(ctx context.Context, event any) error {
	e, ok := event.(*events.ExecutionSuspended)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.InfoContext(ctx, "Execution suspended",
		"execution_id", e.ExecutionID,
		"workflow_id", e.WorkflowID,
		"node_id", e.NodeID,
		"resume_at", e.ResumeAt)

	return nil
}

func (l *EventLogger) onResumed(ctx context.Context, event any) error {
	e, ok := event.(*events.ExecutionResumed)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.InfoContext(ctx, "Execution resumed",
		"execution_id", e.ExecutionID,
		"workflow_id", e.WorkflowID,
		"pause_duration_ms", e.PauseDurationMs)

	return nil
}

func (l *EventLogger) onCancelled(ctx context.Context, event any) error {
	e, ok := event.(*events.ExecutionCancelled)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.InfoContext(ctx, "Execution cancelled",
		"execution_id", e.ExecutionID,
		"workflow_id", e.WorkflowID,
		"reason", e.Reason)

	return nil
}

func (l *EventLogger) onAutoReplySent(ctx context.Context, event any) error {
	e, ok := event.(*events.AutoReplySent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	l.logger.InfoContext(ctx, "Auto reply sent",
		"auto_reply_id", e.AutoReplyID,
		"message_id", e.MessageID)

	return nil
}
