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

// PermissionRepository implements port.PermissionRepository
type PermissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *sql.DB, logger *zap.Logger) port.PermissionRepository {
	return &PermissionRepository{
		db:     db,
		logger: logger,
	}
}

// ActiveForStepAndRole returns active rules of the step whose actor role is named actorRole
func (r *PermissionRepository) ActiveForStepAndRole(ctx context.Context, stepID, actorRole string) ([]*entity.WorkflowPermission, error) {
	query := `
		SELECT p.id, p.workflow_step_id, a.name, p.group_type, p.group_id,
			COALESCE(p.designation_id, ''), p.permission_type, p.conditions, p.is_active
		FROM workflow_permissions p
		JOIN workflow_actors a ON a.id = p.actor_id
		WHERE p.workflow_step_id = ? AND a.name = ? AND p.is_active = 1
		ORDER BY p.id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, stepID, actorRole)
	if err != nil {
		r.logger.Error("Failed to load step permissions",
			zap.String("step_id", stepID),
			zap.String("actor_role", actorRole),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load step permissions: %w", err)
	}
	defer rows.Close()

	rules := make([]*entity.WorkflowPermission, 0)
	for rows.Next() {
		var p entity.WorkflowPermission
		err := rows.Scan(
			&p.ID,
			&p.WorkflowStepID,
			&p.ActorRole,
			&p.GroupType,
			&p.GroupID,
			&p.DesignationID,
			&p.PermissionType,
			&p.Conditions,
			&p.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		rules = append(rules, &p)
	}

	return rules, rows.Err()
}

// Verify interface compliance
var _ port.PermissionRepository = (*PermissionRepository)(nil)
