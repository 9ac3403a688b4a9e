package port

import (
	"context"
	"time"

	"github.com/garyjia/workflow-gate/internal/domain/entity"
)

// Lookups return (nil, nil) when the row does not exist; callers decide whether that is NotFound or a denial.

// WorkflowRepository reads workflow definitions and their steps
type WorkflowRepository interface {
	// GetActive returns the workflow only if it is active
	GetActive(ctx context.Context, id string) (*entity.Workflow, error)

	// FirstActiveStep returns the active step with the lowest step_order
	FirstActiveStep(ctx context.Context, workflowID string) (*entity.WorkflowStep, error)

	// GetActiveStepByName returns the active step named stepName within the workflow
	GetActiveStepByName(ctx context.Context, workflowID, stepName string) (*entity.WorkflowStep, error)

	// ListActiveWithSteps returns active workflows ordered by name, each with its steps
	ListActiveWithSteps(ctx context.Context) ([]*entity.Workflow, error)
}

// InstanceFilter narrows instance listings
type InstanceFilter struct {
	OrganizationID string
	Status         string
	Limit          int
	Offset         int
}

// InstanceRepository persists WorkflowInstance.
// UpdateState and UpdateStatus compare-and-swap on instance.Version and
// increment it on success; a stale version yields workflow.ErrConflict.
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	UpdateState(ctx context.Context, instance *entity.WorkflowInstance) error
	UpdateStatus(ctx context.Context, instance *entity.WorkflowInstance) error
	List(ctx context.Context, filter InstanceFilter) ([]*entity.WorkflowInstance, error)
}

// PositionRepository resolves a user's active organizational positions
type PositionRepository interface {
	ActivePositions(ctx context.Context, userID string) ([]*entity.ActorPosition, error)
}

// PermissionRepository reads step permission rules
type PermissionRepository interface {
	// ActiveForStepAndRole returns active rules of the step joined on actor role name
	ActiveForStepAndRole(ctx context.Context, stepID, actorRole string) ([]*entity.WorkflowPermission, error)
}

// OrganizationRepository answers org-structure questions
type OrganizationRepository interface {
	// TeamDepartmentID returns the parent department of a team; found is false for unknown teams
	TeamDepartmentID(ctx context.Context, teamID string) (departmentID string, found bool, err error)
}

// HistoryRepository appends and lists WorkflowHistoryEntry
type HistoryRepository interface {
	Create(ctx context.Context, entry *entity.WorkflowHistoryEntry) error

	// ListByInstance returns entries most-recent-first
	ListByInstance(ctx context.Context, instanceID string) ([]*entity.WorkflowHistoryEntry, error)
}

// AuditFilter narrows audit listings; zero times are unbounded
type AuditFilter struct {
	From       time.Time
	To         time.Time
	InstanceID string
	Result     string
	Limit      int
}

// AuditRepository appends and lists AuditLogEntry
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditLogEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*entity.AuditLogEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
