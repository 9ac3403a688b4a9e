package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Operation identifies one API action
type Operation string

// Operations exposed under /api/v1
const (
	OpCreateInstance  Operation = "create_instance"
	OpTransition      Operation = "transition"
	OpCheckPermission Operation = "check_permission"
	OpPauseInstance   Operation = "pause_instance"
	OpResumeInstance  Operation = "resume_instance"
	OpCancelInstance  Operation = "cancel_instance"
	OpListInstances   Operation = "list_instances"
	OpGetInstance     Operation = "get_instance"
	OpListHistory     Operation = "list_history"
	OpListWorkflows   Operation = "list_workflows"
)

const operationKey = "operation"

// command binds an operation to its route and handler
type command struct {
	op      Operation
	method  string
	path    string
	handler func(h *Handlers) gin.HandlerFunc
}

// commands is the complete API surface; routes are registered from it once
var commands = []command{
	{OpCreateInstance, http.MethodPost, "/instances", func(h *Handlers) gin.HandlerFunc { return h.CreateInstance }},
	{OpListInstances, http.MethodGet, "/instances", func(h *Handlers) gin.HandlerFunc { return h.ListInstances }},
	{OpGetInstance, http.MethodGet, "/instances/:id", func(h *Handlers) gin.HandlerFunc { return h.GetInstance }},
	{OpListHistory, http.MethodGet, "/instances/:id/history", func(h *Handlers) gin.HandlerFunc { return h.ListHistory }},
	{OpTransition, http.MethodPost, "/instances/:id/transition", func(h *Handlers) gin.HandlerFunc { return h.Transition }},
	{OpPauseInstance, http.MethodPost, "/instances/:id/pause", func(h *Handlers) gin.HandlerFunc { return h.Pause }},
	{OpResumeInstance, http.MethodPost, "/instances/:id/resume", func(h *Handlers) gin.HandlerFunc { return h.Resume }},
	{OpCancelInstance, http.MethodPost, "/instances/:id/cancel", func(h *Handlers) gin.HandlerFunc { return h.Cancel }},
	{OpCheckPermission, http.MethodPost, "/permissions/check", func(h *Handlers) gin.HandlerFunc { return h.CheckPermission }},
	{OpListWorkflows, http.MethodGet, "/workflows", func(h *Handlers) gin.HandlerFunc { return h.ListWorkflows }},
}

// Operations lists every registered operation in table order
func Operations() []Operation {
	ops := make([]Operation, len(commands))
	for i, cmd := range commands {
		ops[i] = cmd.op
	}
	return ops
}

func registerCommands(group *gin.RouterGroup, h *Handlers) {
	for _, cmd := range commands {
		group.Handle(cmd.method, cmd.path, tagOperation(cmd.op), cmd.handler(h))
	}
}

func tagOperation(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(operationKey, op)
		c.Next()
	}
}

// operationOf returns the tagged operation, or the route pattern for untagged routes
func operationOf(c *gin.Context) string {
	if v, ok := c.Get(operationKey); ok {
		if op, ok := v.(Operation); ok {
			return string(op)
		}
	}
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
