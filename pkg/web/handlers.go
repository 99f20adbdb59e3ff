package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/zapllo/zaptick-sub010/pkg/engine"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
	"github.com/zapllo/zaptick-sub010/pkg/registry"
)

// APIHandlers serves the automation REST API.
type APIHandlers struct {
	store     persistence.Persistence
	registry  *registry.Registry
	engine    *engine.WorkflowEngine
	analytics *engine.Analytics
	validator *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	reg *registry.Registry,
	eng *engine.WorkflowEngine,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:     store,
		registry:  reg,
		engine:    eng,
		analytics: engine.NewAnalytics(store.WorkflowRepository(), store.ExecutionRepository()),
		validator: validator,
	}
}

// RegisterRoutes mounts all API routes on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/workflows", h.GetWorkflows)
	app.Post("/workflows", h.CreateWorkflow)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Patch("/workflows/:id", h.UpdateWorkflow)
	app.Delete("/workflows/:id", h.DeleteWorkflow)
	app.Get("/workflows/:id/stats", h.GetWorkflowStats)
	app.Get("/workflows/:id/node-usage", h.GetNodeUsage)
	app.Get("/workflows/:id/executions", h.GetWorkflowExecutions)

	app.Get("/auto-replies/:id", h.GetAutoReply)
	app.Post("/auto-replies", h.CreateAutoReply)
	app.Put("/auto-replies/:id", h.UpdateAutoReply)
	app.Delete("/auto-replies/:id", h.DeleteAutoReply)

	app.Post("/messages", h.PostMessage)

	app.Get("/executions/:id", h.GetExecution)
	app.Post("/executions/:id/cancel", h.CancelExecution)
	app.Post("/executions/:id/resume", h.ResumeExecution)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.store.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	opts, err := h.parseListOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.store.WorkflowRepository().ListWorkflows(c.Context(), *opts)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func (h *APIHandlers) parseListOptions(c fiber.Ctx) (*persistence.ListWorkflowsOptions, error) {
	opts := &persistence.ListWorkflowsOptions{
		TenantID:  c.Query("tenant_id"),
		ChannelID: c.Query("channel_id"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return nil, err
		}

		opts.ActiveOnly = active
	}

	return opts, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.store.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		ChannelID:   req.ChannelID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	}

	if err := h.registry.ValidateWorkflow(workflow); err != nil {
		return handleStoreError(c, err)
	}

	workflow.BumpVersion()

	if err := h.store.WorkflowRepository().Save(c.Context(), workflow); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.store.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	graphChanged := false

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
		graphChanged = true
	}

	if req.Edges != nil {
		existing.Edges = req.Edges
		graphChanged = true
	}

	if graphChanged {
		if err := h.registry.ValidateWorkflow(existing); err != nil {
			return handleStoreError(c, err)
		}

		existing.BumpVersion()
	}

	if err := h.store.WorkflowRepository().Save(c.Context(), existing); err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.store.WorkflowRepository().GetByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	if err := h.store.WorkflowRepository().Delete(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetWorkflowStats(c fiber.Ctx) error {
	stats, err := h.analytics.WorkflowStats(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) GetNodeUsage(c fiber.Ctx) error {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit")
		}

		limit = parsed
	}

	usage, err := h.analytics.NodeUsage(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"node_usage": usage})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit")
		}

		limit = parsed
	}

	executions, err := h.store.ExecutionRepository().ListByWorkflow(c.Context(), c.Params("id"), limit)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetAutoReply(c fiber.Ctx) error {
	reply, err := h.store.AutoReplyRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(reply)
}

func (h *APIHandlers) CreateAutoReply(c fiber.Ctx) error {
	var req AutoReplyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !req.MatchType.IsValid() {
		return badRequest(c, "Unknown match type")
	}

	reply := &models.AutoReply{
		ID:            uuid.New().String(),
		TenantID:      req.TenantID,
		ChannelID:     req.ChannelID,
		Name:          req.Name,
		Priority:      req.Priority,
		MatchType:     req.MatchType,
		CaseSensitive: req.CaseSensitive,
		Phrases:       req.Phrases,
		Reply:         req.Reply,
		IsActive:      req.IsActive,
	}

	if err := h.store.AutoReplyRepository().Save(c.Context(), reply); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reply)
}

func (h *APIHandlers) UpdateAutoReply(c fiber.Ctx) error {
	id := c.Params("id")

	existing, err := h.store.AutoReplyRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	var req AutoReplyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !req.MatchType.IsValid() {
		return badRequest(c, "Unknown match type")
	}

	existing.Name = req.Name
	existing.ChannelID = req.ChannelID
	existing.Priority = req.Priority
	existing.MatchType = req.MatchType
	existing.CaseSensitive = req.CaseSensitive
	existing.Phrases = req.Phrases
	existing.Reply = req.Reply
	existing.IsActive = req.IsActive

	if err := h.store.AutoReplyRepository().Save(c.Context(), existing); err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteAutoReply(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.store.AutoReplyRepository().GetByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	if err := h.store.AutoReplyRepository().Delete(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PostMessage accepts an inbound message and runs the trigger dispatch
// synchronously. Channel connectors that want asynchronous handling push to
// the Redis queue instead.
func (h *APIHandlers) PostMessage(c fiber.Ctx) error {
	var message models.InboundMessage
	if err := c.Bind().JSON(&message); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(message); err != nil {
		return badRequest(c, err.Error())
	}

	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	if err := h.engine.HandleMessage(c.Context(), &message); err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message_id": message.ID})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.store.ExecutionRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	var req CancelExecutionRequest

	// Body is optional for cancels.
	_ = c.Bind().JSON(&req)

	if err := h.engine.Cancel(c.Context(), c.Params("id"), req.Reason); err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"status": "cancelled"})
}

// ResumeExecution wakes a suspended execution before its resume time.
func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	if err := h.engine.Resume(c.Context(), c.Params("id")); err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"status": "resumed"})
}
