package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-gate/internal/application/service"
	"github.com/garyjia/workflow-gate/internal/application/workflow"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine  workflow.Engine
	queries service.QueryService
	version string
	logger  *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.Engine, queries service.QueryService, version string, logger *zap.Logger) *Handlers {
	return &Handlers{
		engine:  engine,
		queries: queries,
		version: version,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Reasons []string    `json:"reasons,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ListInstancesRequest represents query parameters for listing instances
type ListInstancesRequest struct {
	OrganizationID string `form:"organizationId"`
	Status         string `form:"status"`
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
}

// transitionBody is the transition payload; the instance id comes from the path
type transitionBody struct {
	TargetState string                 `json:"targetState"`
	ActorRole   string                 `json:"actorRole"`
	Context     map[string]interface{} `json:"context"`
	Reason      string                 `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
		},
	})
}

// CreateInstance handles POST /api/v1/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req workflow.CreateInstanceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.InitiatorID = ActorID(c)

	instance, err := h.engine.CreateInstance(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// Transition handles POST /api/v1/instances/:id/transition
func (h *Handlers) Transition(c *gin.Context) {
	var body transitionBody
	if !h.bindJSON(c, &body) {
		return
	}

	result, err := h.engine.Transition(c.Request.Context(), workflow.TransitionRequest{
		InstanceID:  c.Param("id"),
		TargetState: body.TargetState,
		ActorRole:   body.ActorRole,
		Context:     body.Context,
		Reason:      body.Reason,
		ActorID:     ActorID(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// CheckPermission handles POST /api/v1/permissions/check
func (h *Handlers) CheckPermission(c *gin.Context) {
	var req workflow.CheckPermissionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = ActorID(c)

	result, err := h.engine.CheckPermission(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Pause handles POST /api/v1/instances/:id/pause
func (h *Handlers) Pause(c *gin.Context) {
	h.changeStatus(c, h.engine.Pause)
}

// Resume handles POST /api/v1/instances/:id/resume
func (h *Handlers) Resume(c *gin.Context) {
	h.changeStatus(c, h.engine.Resume)
}

// Cancel handles POST /api/v1/instances/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	h.changeStatus(c, h.engine.Cancel)
}

type statusChangeFunc func(ctx context.Context, req workflow.StatusChangeRequest) (*entity.WorkflowInstance, error)

func (h *Handlers) changeStatus(c *gin.Context, change statusChangeFunc) {
	instance, err := change(c.Request.Context(), workflow.StatusChangeRequest{
		InstanceID: c.Param("id"),
		ActorID:    ActorID(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// ListInstances handles GET /api/v1/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListInstancesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Debug("Invalid query parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	page, err := h.queries.ListInstances(c.Request.Context(), service.InstanceQuery{
		OrganizationID: req.OrganizationID,
		Status:         req.Status,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// GetInstance handles GET /api/v1/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.queries.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// ListHistory handles GET /api/v1/instances/:id/history
func (h *Handlers) ListHistory(c *gin.Context) {
	entries, err := h.queries.ListHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ListWorkflows handles GET /api/v1/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	workflows, err := h.queries.ListWorkflows(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: workflows})
}

// bindJSON decodes the body; an empty body is treated as {}
func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Debug("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return false
	}
	return true
}
