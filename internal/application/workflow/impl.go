package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/application/dispatcher"
	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	workflows port.WorkflowRepository
	instances port.InstanceRepository
	history   port.HistoryRepository
	audit     port.AuditRepository
	txManager port.TransactionManager
	evaluator PermissionEvaluator

	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	workflows port.WorkflowRepository,
	instances port.InstanceRepository,
	history port.HistoryRepository,
	audit port.AuditRepository,
	txManager port.TransactionManager,
	evaluator PermissionEvaluator,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		workflows: workflows,
		instances: instances,
		history:   history,
		audit:     audit,
		txManager: txManager,
		evaluator: evaluator,
		logger:    zap.NewNop(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CheckPermission runs the evaluator as a dry run
func (e *engineImpl) CheckPermission(ctx context.Context, req CheckPermissionRequest) (*authz.PermissionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := e.evaluator.Evaluate(ctx, req.ActorID, req.WorkflowStepID, req.ActorRole, req.Context.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate permission: %w", err)
	}
	return result, nil
}

func (e *engineImpl) newAudit(eventType, actorID, resourceType, resourceID, action, result, instanceID string, details map[string]interface{}) (*entity.AuditLogEntry, error) {
	entry := &entity.AuditLogEntry{
		ID:                 uuid.NewString(),
		EventType:          eventType,
		UserID:             actorID,
		ResourceType:       resourceType,
		ResourceID:         resourceID,
		Action:             action,
		Result:             result,
		WorkflowInstanceID: instanceID,
		Timestamp:          e.now(),
	}

	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audit details: %w", err)
		}
		entry.Details = string(raw)
	}
	return entry, nil
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}
