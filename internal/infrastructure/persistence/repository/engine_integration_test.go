package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/application/workflow"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type integrationEnv struct {
	engine    workflow.Engine
	instances port.InstanceRepository
	history   port.HistoryRepository
	audit     port.AuditRepository
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	db := setupTestDB(t)
	seedOrg(t, db)
	mustExec(t, db, `INSERT INTO organization_positions (id, user_id, group_type, group_id, job_level, is_active)
		VALUES ('pos-1', 'user-approver', 'team', 'team-ap', 5, 1)`)

	logger := zap.NewNop()
	org := NewOrganizationRepository(db, logger)
	evaluator := authz.NewEvaluator(org, NewPermissionRepository(db, logger), org, nil, logger)

	env := &integrationEnv{
		instances: NewInstanceRepository(db, logger),
		history:   NewHistoryRepository(db, logger),
		audit:     NewAuditRepository(db, logger),
	}
	env.engine = workflow.NewEngine(
		NewWorkflowRepository(db, logger),
		env.instances,
		env.history,
		env.audit,
		sqlite.NewDB(db, logger),
		evaluator,
		workflow.WithLogger(logger),
	)
	return env
}

func TestEngine_EndToEndAgainstSQLite(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	inst, err := env.engine.CreateInstance(ctx, workflow.CreateInstanceRequest{
		WorkflowID:     "wf-expense",
		OrganizationID: "org-1",
		InitiatorID:    "user-requester",
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", inst.CurrentState)

	// team position inherits the department rule; 5000 breaks the amount limit
	_, err = env.engine.Transition(ctx, workflow.TransitionRequest{
		InstanceID: inst.ID, TargetState: "review", ActorRole: "approver", ActorID: "user-approver",
		Context: entity.ContextData{"amount": float64(5000)},
	})
	require.ErrorIs(t, err, domainwf.ErrPermissionDenied)

	result, err := env.engine.Transition(ctx, workflow.TransitionRequest{
		InstanceID: inst.ID, TargetState: "review", ActorRole: "approver", ActorID: "user-approver",
		Context: entity.ContextData{"amount": float64(500)}, Reason: "within limit",
	})
	require.NoError(t, err)
	assert.Equal(t, "review", result.NewState)

	stored, err := env.instances.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", stored.CurrentState)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, "within limit", stored.ContextData[workflow.ContextKeyTransitionReason])
	assert.NotNil(t, stored.ContextData[workflow.ContextKeyPermissionContext])

	history, err := env.history.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "draft", history[0].FromState)

	logs, err := env.audit.List(ctx, port.AuditFilter{InstanceID: inst.ID})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, entity.AuditEventInstanceCreated, logs[0].EventType)
	assert.Equal(t, entity.AuditEventPermissionDenied, logs[1].EventType)
	assert.Equal(t, entity.AuditEventTransition, logs[2].EventType)

	paused, err := env.engine.Pause(ctx, workflow.StatusChangeRequest{InstanceID: inst.ID, ActorID: "user-ops"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), paused.Version)

	_, err = env.engine.Transition(ctx, workflow.TransitionRequest{
		InstanceID: inst.ID, TargetState: "approved", ActorRole: "approver", ActorID: "user-approver",
	})
	assert.ErrorIs(t, err, domainwf.ErrInvalidState)
}

func TestEngine_ConcurrentTransitionsNeverLoseUpdates(t *testing.T) {
	const writers = 6

	env := newIntegrationEnv(t)
	ctx := context.Background()

	inst, err := env.engine.CreateInstance(ctx, workflow.CreateInstanceRequest{
		WorkflowID: "wf-expense", OrganizationID: "org-1", InitiatorID: "user-requester",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.engine.Transition(ctx, workflow.TransitionRequest{
				InstanceID: inst.ID, TargetState: "review", ActorRole: "approver", ActorID: "user-approver",
				Context: entity.ContextData{"amount": float64(10 + i)},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, errors.Is(err, domainwf.ErrConflict), "unexpected error: %v", err)
	}
	require.GreaterOrEqual(t, succeeded, 1)

	stored, err := env.instances.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+succeeded), stored.Version)

	history, err := env.history.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Len(t, history, succeeded)

	logs, err := env.audit.List(ctx, port.AuditFilter{InstanceID: inst.ID, Result: entity.AuditResultSuccess})
	require.NoError(t, err)
	// creation plus one per committed transition
	assert.Len(t, logs, 1+succeeded)
}
