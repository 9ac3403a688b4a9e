package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, workflow_id, current_state, status, context_data,
	organization_id, initiator_user_id, version, created_at, updated_at`

// Create inserts a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances (` + instanceColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if instance.Version == 0 {
		instance.Version = 1
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowID,
		instance.CurrentState,
		instance.Status,
		instance.ContextData,
		instance.OrganizationID,
		instance.InitiatorUserID,
		instance.Version,
		instance.CreatedAt.UTC(),
		instance.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?`

	instance, err := scanInstance(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// UpdateState writes current_state and context_data if the stored version still matches
func (r *InstanceRepository) UpdateState(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		UPDATE workflow_instances
		SET current_state = ?, context_data = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	return r.compareAndSwap(ctx, instance, query,
		instance.CurrentState,
		instance.ContextData,
		instance.UpdatedAt.UTC(),
		instance.ID,
		instance.Version,
	)
}

// UpdateStatus writes status if the stored version still matches
func (r *InstanceRepository) UpdateStatus(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		UPDATE workflow_instances
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	return r.compareAndSwap(ctx, instance, query,
		instance.Status,
		instance.UpdatedAt.UTC(),
		instance.ID,
		instance.Version,
	)
}

func (r *InstanceRepository) compareAndSwap(ctx context.Context, instance *entity.WorkflowInstance, query string, args ...interface{}) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("instance %s at version %d: %w", instance.ID, instance.Version, domainwf.ErrConflict)
	}

	instance.Version++
	return nil
}

// List returns instances newest first, narrowed by filter
func (r *InstanceRepository) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*entity.WorkflowInstance, 0)
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	err := row.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.CurrentState,
		&instance.Status,
		&instance.ContextData,
		&instance.OrganizationID,
		&instance.InitiatorUserID,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
