package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zapllo/zaptick-sub010/pkg/eventbus"
	"github.com/zapllo/zaptick-sub010/pkg/events"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
	"github.com/zapllo/zaptick-sub010/pkg/registry"
	"github.com/zapllo/zaptick-sub010/pkg/trigger"
)

// WorkflowEngine is the façade over trigger matching, auto replies and
// graph execution. One inbound message fires at most one rule.
type WorkflowEngine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	matcher     *trigger.Matcher
	messenger   protocol.Messenger
	eventBus    eventbus.EventPublisher
	executor    *GraphExecutor
}

// NewWorkflowEngine wires the engine. The event publisher and resume
// scheduler may be nil in tests.
func NewWorkflowEngine(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	messenger protocol.Messenger,
	eventBus eventbus.EventPublisher,
	resumeScheduler protocol.ResumeScheduler,
) *WorkflowEngine {
	return &WorkflowEngine{
		logger:      logger.With("module", "engine"),
		persistence: store,
		registry:    reg,
		matcher:     trigger.NewMatcher(),
		messenger:   messenger,
		eventBus:    eventBus,
		executor: NewGraphExecutor(
			logger,
			reg,
			store.WorkflowRepository(),
			store.ExecutionRepository(),
			eventBus,
			resumeScheduler,
		),
	}
}

// HandleMessage runs the trigger dispatch for one inbound message: collect
// candidate rules from active workflows and auto replies, pick the single
// winning rule, then either start an execution or send the auto reply.
func (we *WorkflowEngine) HandleMessage(ctx context.Context, message *models.InboundMessage) error {
	rules, workflowsByRule, repliesByRule, err := we.collectRules(ctx, message)
	if err != nil {
		return err
	}

	matched := we.matcher.Match(message.Text, rules)
	if matched == nil {
		we.logger.Debug("No trigger rule matched",
			"tenant_id", message.TenantID,
			"contact_id", message.ContactID)

		return nil
	}

	if matched.AutoReplyID != "" {
		return we.sendAutoReply(ctx, repliesByRule[matched.ID], message)
	}

	return we.StartExecution(ctx, workflowsByRule[matched.ID], message)
}

// collectRules builds the candidate rule set for a message: one rule per
// active workflow's trigger node plus one per active auto reply.
func (we *WorkflowEngine) collectRules(ctx context.Context, message *models.InboundMessage) ([]models.TriggerRule, map[string]*models.Workflow, map[string]*models.AutoReply, error) {
	workflows, err := we.persistence.WorkflowRepository().ActiveWorkflows(ctx, message.TenantID, message.ChannelID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load active workflows: %w", err)
	}

	var rules []models.TriggerRule

	workflowsByRule := make(map[string]*models.Workflow)

	for _, wf := range workflows {
		entry := wf.EntryNode()
		if entry == nil {
			continue
		}

		rule, ok := triggerRuleFromNode(wf, entry)
		if !ok {
			continue
		}

		rules = append(rules, rule)
		workflowsByRule[rule.ID] = wf
	}

	replies, err := we.persistence.AutoReplyRepository().ActiveAutoReplies(ctx, message.TenantID, message.ChannelID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load auto replies: %w", err)
	}

	repliesByRule := make(map[string]*models.AutoReply)

	for _, reply := range replies {
		rule := reply.Rule()
		rules = append(rules, rule)
		repliesByRule[rule.ID] = reply
	}

	return rules, workflowsByRule, repliesByRule, nil
}

// triggerRuleFromNode projects a workflow's entry trigger node config into
// a matcher rule.
func triggerRuleFromNode(wf *models.Workflow, node *models.Node) (models.TriggerRule, bool) {
	rawPhrases, ok := node.Config["phrases"].([]any)
	if !ok || len(rawPhrases) == 0 {
		return models.TriggerRule{}, false
	}

	phrases := make([]string, 0, len(rawPhrases))

	for _, raw := range rawPhrases {
		if phrase, ok := raw.(string); ok && phrase != "" {
			phrases = append(phrases, phrase)
		}
	}

	if len(phrases) == 0 {
		return models.TriggerRule{}, false
	}

	matchType := models.MatchTypeContains
	if raw, ok := node.Config["match_type"].(string); ok && models.MatchType(raw).IsValid() {
		matchType = models.MatchType(raw)
	}

	caseSensitive, _ := node.Config["case_sensitive"].(bool)

	return models.TriggerRule{
		ID:            wf.ID + "/" + node.ID,
		TenantID:      wf.TenantID,
		ChannelID:     wf.ChannelID,
		Name:          wf.Name,
		Priority:      intConfig(node.Config, "priority", 0),
		MatchType:     matchType,
		CaseSensitive: caseSensitive,
		Phrases:       phrases,
		UpdatedAt:     wf.UpdatedAt,
		WorkflowID:    wf.ID,
	}, true
}

// StartExecution creates and runs a new execution of the workflow for the
// message's contact. A contact with an active execution of the same
// workflow is rejected; the message is dropped for that workflow.
func (we *WorkflowEngine) StartExecution(ctx context.Context, workflow *models.Workflow, message *models.InboundMessage) error {
	if workflow == nil {
		return fmt.Errorf("cannot start execution: %w", persistence.ErrWorkflowNotFound)
	}

	execution := &models.AutomationExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		TenantID:   message.TenantID,
		ContactID:  message.ContactID,
		ChannelID:  message.ChannelID,
		Status:     models.ExecutionStatusPending,
		StartTime:  time.Now().UTC(),
	}

	if err := we.persistence.ExecutionRepository().CreateExecution(ctx, execution); err != nil {
		if persistence.IsExecutionAlreadyRunning(err) {
			we.logger.Info("Contact already has a running execution, dropping trigger",
				"workflow_id", workflow.ID,
				"contact_id", message.ContactID)

			return nil
		}

		return err
	}

	claimed, err := we.persistence.ExecutionRepository().CompareAndSwapStatus(ctx, execution.ID, models.ExecutionStatusPending, models.ExecutionStatusRunning)
	if err != nil {
		return err
	}

	we.publish(ctx, workflow.ID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, message.TenantID, workflow.ID),
		ExecutionID:  claimed.ID,
		ContactID:    message.ContactID,
		ChannelID:    message.ChannelID,
		WorkflowName: workflow.Name,
		TriggerData:  map[string]any{"message_text": message.Text},
	})

	we.logger.Info("Starting execution",
		"execution_id", claimed.ID,
		"workflow_id", workflow.ID,
		"contact_id", message.ContactID)

	return we.executor.Run(ctx, workflow, claimed, message)
}

// Resume wakes a suspended execution. The suspended-to-running swap is
// atomic, so concurrent resume attempts produce exactly one winner; losers
// get ErrStatusConflict.
func (we *WorkflowEngine) Resume(ctx context.Context, executionID string) error {
	executions := we.persistence.ExecutionRepository()

	execution, err := executions.CompareAndSwapStatus(ctx, executionID, models.ExecutionStatusSuspended, models.ExecutionStatusRunning)
	if err != nil {
		return err
	}

	workflow, err := we.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return err
	}

	var pauseMs int64
	if execution.ResumeAt != nil {
		pauseMs = time.Since(*execution.ResumeAt).Milliseconds()
		if pauseMs < 0 {
			pauseMs = 0
		}
	}

	execution.ResumeAt = nil

	we.publish(ctx, workflow.ID, events.ExecutionResumed{
		BaseEvent:       events.NewBaseEvent(events.ExecutionResumedEvent, execution.TenantID, workflow.ID),
		ExecutionID:     execution.ID,
		ContactID:       execution.ContactID,
		PauseDurationMs: pauseMs,
	})

	we.logger.Info("Resuming execution",
		"execution_id", execution.ID,
		"current_node_id", execution.CurrentNodeID)

	return we.executor.Run(ctx, workflow, execution, we.reconstructMessage(execution))
}

// reconstructMessage rebuilds the handler-visible message view from the
// execution's own fields after a resume. The original delivery is gone; the
// trigger node's seeded variables carry the text forward.
func (we *WorkflowEngine) reconstructMessage(execution *models.AutomationExecution) *models.InboundMessage {
	text, _ := execution.Data.Variables["message_text"].(string)

	return &models.InboundMessage{
		ID:        execution.ID,
		TenantID:  execution.TenantID,
		ChannelID: execution.ChannelID,
		ContactID: execution.ContactID,
		Text:      text,
		Timestamp: execution.StartTime,
	}
}

// Cancel terminates an active execution. Whichever of cancel and resume
// swaps the status first wins; the loser becomes a no-op error.
func (we *WorkflowEngine) Cancel(ctx context.Context, executionID, reason string) error {
	executions := we.persistence.ExecutionRepository()

	for _, from := range []models.ExecutionStatus{
		models.ExecutionStatusSuspended,
		models.ExecutionStatusRunning,
		models.ExecutionStatusPending,
	} {
		execution, err := executions.CompareAndSwapStatus(ctx, executionID, from, models.ExecutionStatusCancelled)
		if err != nil {
			if persistence.IsStatusConflict(err) {
				continue
			}

			return err
		}

		we.publish(ctx, execution.WorkflowID, events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.TenantID, execution.WorkflowID),
			ExecutionID: execution.ID,
			ContactID:   execution.ContactID,
			Reason:      reason,
		})

		we.logger.Info("Execution cancelled", "execution_id", execution.ID, "reason", reason)

		return nil
	}

	return persistence.NewExecutionError("Cancel", executionID, persistence.ErrStatusConflict)
}

// sendAutoReply sends the matched auto reply and bumps its usage counter.
func (we *WorkflowEngine) sendAutoReply(ctx context.Context, reply *models.AutoReply, message *models.InboundMessage) error {
	if reply == nil {
		return persistence.ErrAutoReplyNotFound
	}

	msgType, _ := reply.Reply["type"].(string)
	if msgType == "" {
		msgType = "text"
	}

	result, err := we.messenger.Send(ctx, models.OutboundMessage{
		TenantID:  message.TenantID,
		ChannelID: message.ChannelID,
		ContactID: message.ContactID,
		Type:      msgType,
		Payload:   reply.Reply,
	})
	if err != nil {
		return fmt.Errorf("failed to send auto reply %s: %w", reply.ID, err)
	}

	if err := we.persistence.AutoReplyRepository().IncrementUsage(ctx, reply.ID); err != nil {
		we.logger.Error("Failed to bump auto reply usage", "auto_reply_id", reply.ID, "error", err)
	}

	var messageID string
	if result != nil {
		messageID = result.ProviderMessageID
	}

	we.publish(ctx, reply.ID, events.AutoReplySent{
		BaseEvent:   events.NewBaseEvent(events.AutoReplySentEvent, message.TenantID, ""),
		AutoReplyID: reply.ID,
		ContactID:   message.ContactID,
		ChannelID:   message.ChannelID,
		MessageID:   messageID,
	})

	we.logger.Info("Auto reply sent",
		"auto_reply_id", reply.ID,
		"contact_id", message.ContactID)

	return nil
}

func (we *WorkflowEngine) publish(ctx context.Context, key string, event eventbus.Event) {
	if we.eventBus == nil {
		return
	}

	if err := we.eventBus.Publish(ctx, key, event); err != nil {
		we.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
