package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (
			id, event_type, user_id, resource_type, resource_id,
			action, result, details, workflow_instance_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.EventType,
		entry.UserID,
		entry.ResourceType,
		entry.ResourceID,
		entry.Action,
		entry.Result,
		entry.Details,
		nullString(entry.WorkflowInstanceID),
		entry.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry",
			zap.String("event_type", entry.EventType),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// List returns audit entries oldest first within the filter
func (r *AuditRepository) List(ctx context.Context, filter port.AuditFilter) ([]*entity.AuditLogEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if !filter.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.InstanceID != "" {
		where = append(where, "workflow_instance_id = ?")
		args = append(args, filter.InstanceID)
	}
	if filter.Result != "" {
		where = append(where, "result = ?")
		args = append(args, filter.Result)
	}

	query := `
		SELECT id, event_type, user_id, resource_type, resource_id,
			action, result, details, COALESCE(workflow_instance_id, ''), timestamp
		FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp ASC, rowid ASC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*entity.AuditLogEntry, 0)
	for rows.Next() {
		var e entity.AuditLogEntry
		err := rows.Scan(
			&e.ID,
			&e.EventType,
			&e.UserID,
			&e.ResourceType,
			&e.ResourceID,
			&e.Action,
			&e.Result,
			&e.Details,
			&e.WorkflowInstanceID,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
