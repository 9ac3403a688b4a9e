// Package workflow executes state changes on workflow instances.
//
// Transitions are gated by the permission evaluator and committed together
// with their history and audit records. Pause, resume and cancel change the
// instance status without consulting the evaluator.
package workflow

import (
	"context"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
)

// Engine runs every instance mutation
type Engine interface {
	// CreateInstance starts an instance at the workflow's first active step
	CreateInstance(ctx context.Context, req CreateInstanceRequest) (*entity.WorkflowInstance, error)

	// Transition moves an active instance to another step if the actor is permitted
	Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)

	// CheckPermission evaluates without mutating anything
	CheckPermission(ctx context.Context, req CheckPermissionRequest) (*authz.PermissionResult, error)

	Pause(ctx context.Context, req StatusChangeRequest) (*entity.WorkflowInstance, error)
	Resume(ctx context.Context, req StatusChangeRequest) (*entity.WorkflowInstance, error)
	Cancel(ctx context.Context, req StatusChangeRequest) (*entity.WorkflowInstance, error)
}

// PermissionEvaluator decides whether an actor may enter a step
type PermissionEvaluator interface {
	Evaluate(ctx context.Context, actorID, stepID, actorRole string, data entity.ContextData) (*authz.PermissionResult, error)
}

var _ PermissionEvaluator = (*authz.Evaluator)(nil)

// CreateInstanceRequest starts a new instance
type CreateInstanceRequest struct {
	WorkflowID     string             `json:"workflowId"`
	OrganizationID string             `json:"organizationId"`
	InitialContext entity.ContextData `json:"initialContext,omitempty"`
	InitiatorID    string             `json:"-"`
}

// Validate checks required fields
func (r CreateInstanceRequest) Validate() error {
	return domainwf.Required(
		"workflowId", r.WorkflowID,
		"organizationId", r.OrganizationID,
		"actor", r.InitiatorID,
	)
}

// TransitionRequest asks to move an instance to TargetState
type TransitionRequest struct {
	InstanceID  string             `json:"instanceId"`
	TargetState string             `json:"targetState"`
	ActorRole   string             `json:"actorRole"`
	Context     entity.ContextData `json:"context,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	ActorID     string             `json:"-"`
}

// Validate checks required fields
func (r TransitionRequest) Validate() error {
	return domainwf.Required(
		"instanceId", r.InstanceID,
		"targetState", r.TargetState,
		"actorRole", r.ActorRole,
		"actor", r.ActorID,
	)
}

// TransitionResult is returned for a committed transition
type TransitionResult struct {
	InstanceID string             `json:"instanceId"`
	NewState   string             `json:"newState"`
	Context    entity.ContextData `json:"context"`
	Timestamp  time.Time          `json:"timestamp"`
}

// CheckPermissionRequest is a dry-run evaluation
type CheckPermissionRequest struct {
	WorkflowStepID string             `json:"workflowStepId"`
	ActorRole      string             `json:"actorRole"`
	Context        entity.ContextData `json:"context,omitempty"`
	ActorID        string             `json:"-"`
}

// Validate checks required fields
func (r CheckPermissionRequest) Validate() error {
	return domainwf.Required(
		"workflowStepId", r.WorkflowStepID,
		"actorRole", r.ActorRole,
		"actor", r.ActorID,
	)
}

// StatusChangeRequest pauses, resumes or cancels an instance
type StatusChangeRequest struct {
	InstanceID string `json:"instanceId"`
	ActorID    string `json:"-"`
}

// Validate checks required fields
func (r StatusChangeRequest) Validate() error {
	return domainwf.Required(
		"instanceId", r.InstanceID,
		"actor", r.ActorID,
	)
}
