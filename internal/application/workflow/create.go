package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateInstance starts an active instance of an active workflow
func (e *engineImpl) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*entity.WorkflowInstance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	wf, err := e.workflows.GetActive(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %s: %w", req.WorkflowID, domainwf.ErrNotFound)
	}

	initialState := entity.FallbackInitialState
	first, err := e.workflows.FirstActiveStep(ctx, wf.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first step: %w", err)
	}
	if first != nil {
		initialState = first.StepName
	}

	now := e.now()
	instance := &entity.WorkflowInstance{
		ID:              uuid.NewString(),
		WorkflowID:      wf.ID,
		CurrentState:    initialState,
		Status:          entity.StatusActive,
		ContextData:     req.InitialContext.Clone(),
		OrganizationID:  req.OrganizationID,
		InitiatorUserID: req.InitiatorID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	audit, err := e.newAudit(
		entity.AuditEventInstanceCreated,
		req.InitiatorID,
		entity.ResourceWorkflowInstance,
		instance.ID,
		"create",
		entity.AuditResultSuccess,
		instance.ID,
		map[string]interface{}{
			"workflow_id":     wf.ID,
			"organization_id": req.OrganizationID,
			"initial_context": req.InitialContext,
		},
	)
	if err != nil {
		return nil, err
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instances.Create(txCtx, instance); err != nil {
			return fmt.Errorf("failed to create instance: %w", err)
		}
		if err := e.audit.Create(txCtx, audit); err != nil {
			return fmt.Errorf("failed to create audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance created",
		zap.String("instance_id", instance.ID),
		zap.String("workflow_id", wf.ID),
		zap.String("initial_state", initialState))

	e.emit(ctx, event.NewEvent(event.TypeInstanceCreated, instance.ID, req.InitiatorID, map[string]interface{}{
		event.KeyWorkflowID:     wf.ID,
		event.KeyOrganizationID: req.OrganizationID,
		event.KeyToState:        initialState,
	}))

	return instance, nil
}
