package service

import (
	"context"
	"fmt"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"go.uber.org/zap"
)

// Listing defaults
const (
	DefaultInstanceLimit = 50
	MaxInstanceLimit     = 500
)

// InstanceQuery filters an instance listing
type InstanceQuery struct {
	OrganizationID string
	Status         string
	Limit          int
	Offset         int
}

// InstancePage is one page of instances with the applied window
type InstancePage struct {
	Instances []*entity.WorkflowInstance `json:"instances"`
	Limit     int                        `json:"limit"`
	Offset    int                        `json:"offset"`
}

// QueryService serves the read-only views
type QueryService interface {
	ListInstances(ctx context.Context, q InstanceQuery) (*InstancePage, error)
	GetInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	ListHistory(ctx context.Context, instanceID string) ([]*entity.WorkflowHistoryEntry, error)
	ListWorkflows(ctx context.Context) ([]*entity.Workflow, error)
}

type queryServiceImpl struct {
	workflows    port.WorkflowRepository
	instances    port.InstanceRepository
	history      port.HistoryRepository
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// QueryOption configures the query service
type QueryOption func(*queryServiceImpl)

// WithLimits overrides the default and maximum page size
func WithLimits(defaultLimit, maxLimit int) QueryOption {
	return func(s *queryServiceImpl) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

// NewQueryService creates a new QueryService
func NewQueryService(
	workflows port.WorkflowRepository,
	instances port.InstanceRepository,
	history port.HistoryRepository,
	logger *zap.Logger,
	opts ...QueryOption,
) QueryService {
	s := &queryServiceImpl{
		workflows:    workflows,
		instances:    instances,
		history:      history,
		defaultLimit: DefaultInstanceLimit,
		maxLimit:     MaxInstanceLimit,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// ListInstances returns instances newest first.
// A missing or non-positive limit uses the default; larger limits are capped.
func (s *queryServiceImpl) ListInstances(ctx context.Context, q InstanceQuery) (*InstancePage, error) {
	if q.Status != "" && !entity.IsValidStatus(q.Status) {
		return nil, domainwf.Invalid("status", fmt.Sprintf("must be one of %s, %s, %s or %s, got %q",
			entity.StatusActive, entity.StatusPaused, entity.StatusCancelled, entity.StatusCompleted, q.Status))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	instances, err := s.instances.List(ctx, port.InstanceFilter{
		OrganizationID: q.OrganizationID,
		Status:         q.Status,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		s.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("list instances: %w", err)
	}

	return &InstancePage{Instances: instances, Limit: limit, Offset: offset}, nil
}

// GetInstance returns one instance or ErrNotFound
func (s *queryServiceImpl) GetInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	if err := domainwf.Required("id", id); err != nil {
		return nil, err
	}

	instance, err := s.instances.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("instance %s: %w", id, domainwf.ErrNotFound)
	}
	return instance, nil
}

// ListHistory returns the instance's transitions, most recent first
func (s *queryServiceImpl) ListHistory(ctx context.Context, instanceID string) ([]*entity.WorkflowHistoryEntry, error) {
	if err := domainwf.Required("id", instanceID); err != nil {
		return nil, err
	}

	entries, err := s.history.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// ListWorkflows returns the active workflow catalog with steps
func (s *queryServiceImpl) ListWorkflows(ctx context.Context) ([]*entity.Workflow, error) {
	workflows, err := s.workflows.ListActiveWithSteps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return workflows, nil
}
