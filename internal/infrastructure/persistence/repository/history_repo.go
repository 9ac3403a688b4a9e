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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history entry
func (r *HistoryRepository) Create(ctx context.Context, entry *entity.WorkflowHistoryEntry) error {
	query := `
		INSERT INTO workflow_history (
			id, instance_id, from_state, to_state, action,
			context_data, performed_by, actor_role, reason, performed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.InstanceID,
		entry.FromState,
		entry.ToState,
		entry.Action,
		entry.ContextData,
		entry.PerformedBy,
		entry.ActorRole,
		entry.Reason,
		entry.PerformedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history entry", zap.String("instance_id", entry.InstanceID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	return nil
}

// ListByInstance returns the instance's history, most recent first
func (r *HistoryRepository) ListByInstance(ctx context.Context, instanceID string) ([]*entity.WorkflowHistoryEntry, error) {
	query := `
		SELECT id, instance_id, from_state, to_state, action,
			context_data, performed_by, actor_role, reason, performed_at
		FROM workflow_history
		WHERE instance_id = ?
		ORDER BY performed_at DESC, rowid DESC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	entries := make([]*entity.WorkflowHistoryEntry, 0)
	for rows.Next() {
		var entry entity.WorkflowHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.FromState,
			&entry.ToState,
			&entry.Action,
			&entry.ContextData,
			&entry.PerformedBy,
			&entry.ActorRole,
			&entry.Reason,
			&entry.PerformedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
