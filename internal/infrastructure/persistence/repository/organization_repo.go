package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// OrganizationRepository implements port.PositionRepository and port.OrganizationRepository
type OrganizationRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB, logger *zap.Logger) *OrganizationRepository {
	return &OrganizationRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// positionTimeLayout is the UTC text form read by SQLite's date functions
const positionTimeLayout = "2006-01-02 15:04:05"

// ActivePositions returns the user's active positions whose date range covers now.
// A NULL start or end date leaves that side open. A date-only end date covers that whole day.
func (r *OrganizationRepository) ActivePositions(ctx context.Context, userID string) ([]*entity.ActorPosition, error) {
	query := `
		SELECT user_id, group_type, group_id, COALESCE(designation_id, ''), job_level
		FROM organization_positions
		WHERE user_id = ?
			AND is_active = 1
			AND (start_date IS NULL OR julianday(start_date) <= julianday(?))
			AND (end_date IS NULL OR CASE
				WHEN length(end_date) = 10 THEN date(end_date) >= date(?)
				ELSE julianday(end_date) >= julianday(?)
			END)
		ORDER BY id
	`

	now := r.now().UTC().Format(positionTimeLayout)
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID, now, now, now)
	if err != nil {
		r.logger.Error("Failed to load positions", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*entity.ActorPosition, 0)
	for rows.Next() {
		var p entity.ActorPosition
		if err := rows.Scan(&p.UserID, &p.GroupType, &p.GroupID, &p.DesignationID, &p.JobLevel); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}

	return positions, rows.Err()
}

// TeamDepartmentID returns the department owning teamID
func (r *OrganizationRepository) TeamDepartmentID(ctx context.Context, teamID string) (string, bool, error) {
	var deptID string
	err := sqlite.ExecutorFrom(ctx, r.db).
		QueryRowContext(ctx, `SELECT department_id FROM organization_teams WHERE id = ?`, teamID).
		Scan(&deptID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve team", zap.String("team_id", teamID), zap.Error(err))
		return "", false, fmt.Errorf("failed to resolve team: %w", err)
	}
	return deptID, true, nil
}

// Verify interface compliance
var (
	_ port.PositionRepository     = (*OrganizationRepository)(nil)
	_ port.OrganizationRepository = (*OrganizationRepository)(nil)
)
