package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/application/dispatcher"
	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
)

// Mock implementations

type mockWorkflowRepo struct {
	workflows map[string]*entity.Workflow
	steps     []*entity.WorkflowStep
}

func (m *mockWorkflowRepo) GetActive(ctx context.Context, id string) (*entity.Workflow, error) {
	wf, ok := m.workflows[id]
	if !ok || !wf.IsActive {
		return nil, nil
	}
	return wf, nil
}

func (m *mockWorkflowRepo) FirstActiveStep(ctx context.Context, workflowID string) (*entity.WorkflowStep, error) {
	var first *entity.WorkflowStep
	for _, s := range m.steps {
		if s.WorkflowID == workflowID && s.IsActive && (first == nil || s.StepOrder < first.StepOrder) {
			first = s
		}
	}
	return first, nil
}

func (m *mockWorkflowRepo) GetActiveStepByName(ctx context.Context, workflowID, stepName string) (*entity.WorkflowStep, error) {
	for _, s := range m.steps {
		if s.WorkflowID == workflowID && s.StepName == stepName && s.IsActive {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockWorkflowRepo) ListActiveWithSteps(ctx context.Context) ([]*entity.Workflow, error) {
	return nil, nil
}

// mockInstanceRepo stores copies and enforces the version compare-and-swap
type mockInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*entity.WorkflowInstance
	readGate  *sync.WaitGroup
	getErr    error
}

func newMockInstanceRepo(instances ...*entity.WorkflowInstance) *mockInstanceRepo {
	m := &mockInstanceRepo{instances: make(map[string]*entity.WorkflowInstance)}
	for _, inst := range instances {
		m.instances[inst.ID] = inst.Clone()
	}
	return m
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instance.ID] = instance.Clone()
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}

	m.mu.Lock()
	inst, ok := m.instances[id]
	var out *entity.WorkflowInstance
	if ok {
		out = inst.Clone()
	}
	m.mu.Unlock()

	// hold every reader until all have read the same version
	if m.readGate != nil {
		m.readGate.Done()
		m.readGate.Wait()
	}
	return out, nil
}

func (m *mockInstanceRepo) swap(instance *entity.WorkflowInstance, apply func(stored *entity.WorkflowInstance)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.instances[instance.ID]
	if !ok {
		return domainwf.ErrNotFound
	}
	if stored.Version != instance.Version {
		return domainwf.ErrConflict
	}
	apply(stored)
	stored.UpdatedAt = instance.UpdatedAt
	stored.Version++
	instance.Version = stored.Version
	return nil
}

func (m *mockInstanceRepo) UpdateState(ctx context.Context, instance *entity.WorkflowInstance) error {
	return m.swap(instance, func(stored *entity.WorkflowInstance) {
		stored.CurrentState = instance.CurrentState
		stored.ContextData = instance.ContextData.Clone()
	})
}

func (m *mockInstanceRepo) UpdateStatus(ctx context.Context, instance *entity.WorkflowInstance) error {
	return m.swap(instance, func(stored *entity.WorkflowInstance) {
		stored.Status = instance.Status
	})
}

func (m *mockInstanceRepo) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	return nil, nil
}

func (m *mockInstanceRepo) get(id string) *entity.WorkflowInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[id].Clone()
}

type mockHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.WorkflowHistoryEntry
}

func (m *mockHistoryRepo) Create(ctx context.Context, entry *entity.WorkflowHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistoryRepo) ListByInstance(ctx context.Context, instanceID string) ([]*entity.WorkflowHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowHistoryEntry
	for _, e := range m.entries {
		if e.InstanceID == instanceID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PerformedAt.After(out[j].PerformedAt) })
	return out, nil
}

func (m *mockHistoryRepo) all() []*entity.WorkflowHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.WorkflowHistoryEntry(nil), m.entries...)
}

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*entity.AuditLogEntry
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, filter port.AuditFilter) ([]*entity.AuditLogEntry, error) {
	return m.all(), nil
}

func (m *mockAuditRepo) all() []*entity.AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.AuditLogEntry(nil), m.entries...)
}

// mockTxManager runs fn directly without isolation
type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type stubEvaluator struct {
	mu     sync.Mutex
	result *authz.PermissionResult
	err    error
	calls  int
	seen   []entity.ContextData
}

func (s *stubEvaluator) Evaluate(ctx context.Context, actorID, stepID, actorRole string, data entity.ContextData) (*authz.PermissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seen = append(s.seen, data)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func allowAll() *stubEvaluator {
	return &stubEvaluator{result: &authz.PermissionResult{
		Allowed:            true,
		Reasons:            []string{},
		MatchedPermissions: []authz.MatchedPermission{{MatchType: entity.MatchTypeGroup}},
	}}
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// org fakes used with the real authz.Evaluator

type mockPositionRepo map[string][]*entity.ActorPosition

func (m mockPositionRepo) ActivePositions(ctx context.Context, userID string) ([]*entity.ActorPosition, error) {
	return m[userID], nil
}

type mockPermissionRepo []*entity.WorkflowPermission

func (m mockPermissionRepo) ActiveForStepAndRole(ctx context.Context, stepID, actorRole string) ([]*entity.WorkflowPermission, error) {
	var out []*entity.WorkflowPermission
	for _, p := range m {
		if p.WorkflowStepID == stepID && p.ActorRole == actorRole && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockOrgRepo map[string]string

func (m mockOrgRepo) TeamDepartmentID(ctx context.Context, teamID string) (string, bool, error) {
	dept, ok := m[teamID]
	return dept, ok, nil
}
