package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// GetActive retrieves an active workflow by ID
func (r *WorkflowRepository) GetActive(ctx context.Context, id string) (*entity.Workflow, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM workflows
		WHERE id = ? AND is_active = 1
	`

	var wf entity.Workflow
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&wf.ID,
		&wf.Name,
		&wf.IsActive,
		&wf.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return &wf, nil
}

// FirstActiveStep returns the active step with the lowest step_order
func (r *WorkflowRepository) FirstActiveStep(ctx context.Context, workflowID string) (*entity.WorkflowStep, error) {
	query := `
		SELECT id, workflow_id, step_name, step_order, is_active
		FROM workflow_steps
		WHERE workflow_id = ? AND is_active = 1
		ORDER BY step_order ASC
		LIMIT 1
	`

	return r.getStep(ctx, query, workflowID)
}

// GetActiveStepByName returns the active step named stepName within the workflow
func (r *WorkflowRepository) GetActiveStepByName(ctx context.Context, workflowID, stepName string) (*entity.WorkflowStep, error) {
	query := `
		SELECT id, workflow_id, step_name, step_order, is_active
		FROM workflow_steps
		WHERE workflow_id = ? AND step_name = ? AND is_active = 1
	`

	return r.getStep(ctx, query, workflowID, stepName)
}

func (r *WorkflowRepository) getStep(ctx context.Context, query string, args ...interface{}) (*entity.WorkflowStep, error) {
	step, err := scanStep(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow step", zap.Any("args", args), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow step: %w", err)
	}
	return step, nil
}

// ListActiveWithSteps returns active workflows ordered by name, each with all of its steps by step_order
func (r *WorkflowRepository) ListActiveWithSteps(ctx context.Context) ([]*entity.Workflow, error) {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, name, is_active, created_at
		FROM workflows
		WHERE is_active = 1
		ORDER BY name ASC
	`)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*entity.Workflow, 0)
	byID := make(map[string]*entity.Workflow)
	for rows.Next() {
		var wf entity.Workflow
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.IsActive, &wf.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		wf.Steps = make([]*entity.WorkflowStep, 0)
		workflows = append(workflows, &wf)
		byID[wf.ID] = &wf
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	stepRows, err := exec.QueryContext(ctx, `
		SELECT s.id, s.workflow_id, s.step_name, s.step_order, s.is_active
		FROM workflow_steps s
		JOIN workflows w ON w.id = s.workflow_id
		WHERE w.is_active = 1
		ORDER BY s.workflow_id, s.step_order ASC
	`)
	if err != nil {
		r.logger.Error("Failed to list workflow steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		step, err := scanStep(stepRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		if wf, ok := byID[step.WorkflowID]; ok {
			wf.Steps = append(wf.Steps, step)
		}
	}

	return workflows, stepRows.Err()
}

func scanStep(row rowScanner) (*entity.WorkflowStep, error) {
	var step entity.WorkflowStep
	if err := row.Scan(&step.ID, &step.WorkflowID, &step.StepName, &step.StepOrder, &step.IsActive); err != nil {
		return nil, err
	}
	return &step, nil
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
