package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"go.uber.org/zap"
)

// Pause sets the instance status to paused
func (e *engineImpl) Pause(ctx context.Context, req StatusChangeRequest) (*entity.WorkflowInstance, error) {
	return e.changeStatus(ctx, req, entity.StatusPaused)
}

// Resume sets the instance status back to active
func (e *engineImpl) Resume(ctx context.Context, req StatusChangeRequest) (*entity.WorkflowInstance, error) {
	return e.changeStatus(ctx, req, entity.StatusActive)
}

// Cancel sets the instance status to cancelled
func (e *engineImpl) Cancel(ctx context.Context, req StatusChangeRequest) (*entity.WorkflowInstance, error) {
	return e.changeStatus(ctx, req, entity.StatusCancelled)
}

// changeStatus writes the status and its audit entry. No permission check applies.
func (e *engineImpl) changeStatus(ctx context.Context, req StatusChangeRequest, status string) (*entity.WorkflowInstance, error) {
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

	previous := instance.Status
	updated := instance.Clone()
	updated.Status = status
	updated.UpdatedAt = e.now()

	audit, err := e.newAudit(
		entity.AuditEventStatusChange,
		req.ActorID,
		entity.ResourceWorkflowInstance,
		instance.ID,
		"status_change_to_"+status,
		entity.AuditResultSuccess,
		instance.ID,
		map[string]interface{}{"previous_status": previous},
	)
	if err != nil {
		return nil, err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instances.UpdateStatus(txCtx, updated); err != nil {
			return fmt.Errorf("failed to update instance status: %w", err)
		}
		if err := e.audit.Create(txCtx, audit); err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance status changed",
		zap.String("instance_id", instance.ID),
		zap.String("previous_status", previous),
		zap.String("status", status),
		zap.String("actor_id", req.ActorID))

	e.emit(ctx, event.NewEvent(event.TypeStatusChanged, instance.ID, req.ActorID, map[string]interface{}{
		event.KeyWorkflowID:     instance.WorkflowID,
		event.KeyPreviousStatus: previous,
		event.KeyStatus:         status,
	}))

	return updated, nil
}
