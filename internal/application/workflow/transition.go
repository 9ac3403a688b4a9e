package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Keys written into the instance context by a committed transition
const (
	ContextKeyPerformedBy       = "performed_by"
	ContextKeyActorRole         = "actor_role"
	ContextKeyPermissionContext = "permission_context"
	ContextKeyTransitionReason  = "transition_reason"
)

// Transition moves an instance to req.TargetState.
//
// The instance is read once; the write is a compare-and-swap on its version so
// a concurrent writer between read and commit yields ErrConflict and nothing is written.
func (e *engineImpl) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	instance, err := e.instances.GetByID(ctx, req.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("instance %s: %w", req.InstanceID, domainwf.ErrNotFound)
	}

	if instance.Status != entity.StatusActive {
		return nil, fmt.Errorf("instance %s is %s: %w", instance.ID, instance.Status, domainwf.ErrInvalidState)
	}

	step, err := e.workflows.GetActiveStepByName(ctx, instance.WorkflowID, req.TargetState)
	if err != nil {
		return nil, fmt.Errorf("failed to load target step: %w", err)
	}
	if step == nil {
		return nil, fmt.Errorf("step %q of workflow %s: %w", req.TargetState, instance.WorkflowID, domainwf.ErrNotFound)
	}

	evalContext := instance.ContextData.Merge(req.Context)
	result, err := e.evaluator.Evaluate(ctx, req.ActorID, step.ID, req.ActorRole, evalContext)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate permission: %w", err)
	}

	if !result.Allowed {
		return nil, e.recordDenial(ctx, req, instance, step, result.Reasons)
	}

	fromState := instance.CurrentState
	now := e.now()

	updated := instance.Clone()
	updated.CurrentState = req.TargetState
	updated.UpdatedAt = now
	updated.ContextData = instance.ContextData.Merge(req.Context, entity.ContextData{
		ContextKeyPerformedBy:       req.ActorID,
		ContextKeyActorRole:         req.ActorRole,
		ContextKeyPermissionContext: result.MatchedPermissions,
		ContextKeyTransitionReason:  req.Reason,
	})

	audit, err := e.newAudit(
		entity.AuditEventTransition,
		req.ActorID,
		entity.ResourceWorkflowInstance,
		instance.ID,
		fmt.Sprintf("transition_%s_to_%s", fromState, req.TargetState),
		entity.AuditResultSuccess,
		instance.ID,
		map[string]interface{}{
			"from_state": fromState,
			"to_state":   req.TargetState,
			"actor_role": req.ActorRole,
			"context":    req.Context,
		},
	)
	if err != nil {
		return nil, err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instances.UpdateState(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update instance state: %w", err)
		}

		history := &entity.WorkflowHistoryEntry{
			ID:          uuid.NewString(),
			InstanceID:  instance.ID,
			FromState:   fromState,
			ToState:     req.TargetState,
			Action:      entity.HistoryActionTransition,
			ContextData: req.Context.Clone(),
			PerformedBy: req.ActorID,
			ActorRole:   req.ActorRole,
			Reason:      req.Reason,
			PerformedAt: now,
		}
		if err := e.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history entry: %w", err)
		}

		if err := e.audit.Create(txCtx, audit); err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainwf.ErrConflict) {
			e.logger.Warn("Transition lost a concurrent update",
				zap.String("instance_id", instance.ID),
				zap.Int64("version", instance.Version),
				zap.String("target_state", req.TargetState))
		}
		return nil, err
	}

	e.logger.Info("Instance transitioned",
		zap.String("instance_id", instance.ID),
		zap.String("from_state", fromState),
		zap.String("to_state", req.TargetState),
		zap.String("actor_id", req.ActorID),
		zap.String("actor_role", req.ActorRole))

	e.emit(ctx, event.NewEvent(event.TypeTransitionCompleted, instance.ID, req.ActorID, map[string]interface{}{
		event.KeyWorkflowID: instance.WorkflowID,
		event.KeyFromState:  fromState,
		event.KeyToState:    req.TargetState,
		event.KeyActorRole:  req.ActorRole,
	}))

	return &TransitionResult{
		InstanceID: instance.ID,
		NewState:   req.TargetState,
		Context:    updated.ContextData,
		Timestamp:  now,
	}, nil
}

// recordDenial writes the denial audit entry and returns the PermissionDeniedError.
// The instance is left untouched.
func (e *engineImpl) recordDenial(ctx context.Context, req TransitionRequest, instance *entity.WorkflowInstance, step *entity.WorkflowStep, reasons []string) error {
	audit, err := e.newAudit(
		entity.AuditEventPermissionDenied,
		req.ActorID,
		entity.ResourceWorkflowStep,
		step.ID,
		req.ActorRole,
		entity.AuditResultDenied,
		instance.ID,
		map[string]interface{}{
			"reasons": reasons,
			"context": req.Context,
		},
	)
	if err != nil {
		return err
	}
	if err := e.audit.Create(ctx, audit); err != nil {
		return fmt.Errorf("failed to create denial audit entry: %w", err)
	}

	e.emit(ctx, event.NewEvent(event.TypePermissionDenied, instance.ID, req.ActorID, map[string]interface{}{
		event.KeyWorkflowID: instance.WorkflowID,
		event.KeyStepID:     step.ID,
		event.KeyToState:    step.StepName,
		event.KeyActorRole:  req.ActorRole,
		event.KeyReasons:    reasons,
	}))

	return &domainwf.PermissionDeniedError{Reasons: reasons}
}
