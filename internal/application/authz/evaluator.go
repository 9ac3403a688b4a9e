// Package authz decides whether an actor, acting under a role, may enter a workflow step.
//
// Permission rules are matched against every active organizational position of
// the actor. A matched forbidden rule vetoes the whole evaluation; otherwise a
// single matched required or optional rule grants access.
package authz

import (
	"context"
	"fmt"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"go.uber.org/zap"
)

// Canonical denial reasons
const (
	ReasonNoPositions   = "no active organizational positions"
	ReasonNoPermissions = "no permissions configured for this workflow step"
	ReasonForbidden     = "forbidden permission matched for this action"
	ReasonNoMatch       = "does not match any required permission for this step"
)

// PermissionResult is the outcome of one evaluation
type PermissionResult struct {
	Allowed            bool                    `json:"allowed"`
	Reasons            []string                `json:"reasons"`
	MatchedPermissions []MatchedPermission     `json:"matchedPermissions"`
	Positions          []*entity.ActorPosition `json:"positions"`
}

// MatchedPermission pairs a granting rule with the position that satisfied it
type MatchedPermission struct {
	Permission *entity.WorkflowPermission `json:"permission"`
	Position   *entity.ActorPosition      `json:"userPosition"`
	MatchType  string                     `json:"matchType"`
	Conditions map[string]bool            `json:"conditions"`
}

// Evaluator is the permission evaluator
type Evaluator struct {
	positions   port.PositionRepository
	permissions port.PermissionRepository
	org         port.OrganizationRepository
	conditions  *ConditionEvaluator
	logger      *zap.Logger
}

// NewEvaluator creates a permission evaluator
func NewEvaluator(
	positions port.PositionRepository,
	permissions port.PermissionRepository,
	org port.OrganizationRepository,
	conditions *ConditionEvaluator,
	logger *zap.Logger,
) *Evaluator {
	if conditions == nil {
		conditions = NewConditionEvaluator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		positions:   positions,
		permissions: permissions,
		org:         org,
		conditions:  conditions,
		logger:      logger,
	}
}

// Evaluate decides whether actorID may act as actorRole on the step.
// Empty lookups are denials; only store failures return an error.
func (e *Evaluator) Evaluate(ctx context.Context, actorID, stepID, actorRole string, data entity.ContextData) (*PermissionResult, error) {
	positions, err := e.positions.ActivePositions(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	if len(positions) == 0 {
		e.logDenied(actorID, stepID, actorRole, ReasonNoPositions)
		return denied(nil, ReasonNoPositions), nil
	}

	rules, err := e.permissions.ActiveForStepAndRole(ctx, stepID, actorRole)
	if err != nil {
		return nil, fmt.Errorf("failed to load step permissions: %w", err)
	}
	if len(rules) == 0 {
		e.logDenied(actorID, stepID, actorRole, ReasonNoPermissions)
		return denied(positions, ReasonNoPermissions), nil
	}

	teams := newTeamLookup(e.org)
	matched := make([]MatchedPermission, 0)

	for _, rule := range rules {
		for _, position := range positions {
			m, err := e.match(ctx, rule, position, data, teams)
			if err != nil {
				return nil, err
			}
			if !m.matches {
				continue
			}

			switch rule.PermissionType {
			case entity.PermissionForbidden:
				e.logger.Warn("Forbidden permission matched",
					zap.String("actor_id", actorID),
					zap.String("step_id", stepID),
					zap.String("actor_role", actorRole),
					zap.String("permission_id", rule.ID))
				return denied(positions, ReasonForbidden), nil

			case entity.PermissionRequired, entity.PermissionOptional:
				matched = append(matched, MatchedPermission{
					Permission: rule,
					Position:   position,
					MatchType:  m.matchType,
					Conditions: m.conditions,
				})
			}
		}
	}

	if len(matched) == 0 {
		e.logDenied(actorID, stepID, actorRole, ReasonNoMatch)
		return denied(positions, ReasonNoMatch), nil
	}

	e.logger.Info("Permission granted",
		zap.String("actor_id", actorID),
		zap.String("step_id", stepID),
		zap.String("actor_role", actorRole),
		zap.Int("matched", len(matched)))

	return &PermissionResult{
		Allowed:            true,
		Reasons:            []string{},
		MatchedPermissions: matched,
		Positions:          positions,
	}, nil
}

type matchOutcome struct {
	matches    bool
	matchType  string
	conditions map[string]bool
}

// match computes whether one position satisfies one rule
func (e *Evaluator) match(
	ctx context.Context,
	rule *entity.WorkflowPermission,
	position *entity.ActorPosition,
	data entity.ContextData,
	teams *teamLookup,
) (matchOutcome, error) {
	out := matchOutcome{matchType: entity.MatchTypeNone, conditions: map[string]bool{}}

	groupMatches, err := e.groupMatches(ctx, rule, position, teams)
	if err != nil {
		return out, err
	}

	qualified := true
	if rule.HasDesignation() {
		qualified = position.DesignationID == rule.DesignationID
	}

	if len(rule.Conditions) > 0 {
		out.conditions = e.conditions.Evaluate(rule.Conditions, data, position)
		qualified = qualified && AllPassed(out.conditions)
	}

	out.matches = groupMatches && qualified
	if out.matches {
		if rule.HasDesignation() {
			out.matchType = entity.MatchTypeExact
		} else {
			out.matchType = entity.MatchTypeGroup
		}
	}
	return out, nil
}

// groupMatches applies the department/team hierarchy: a department rule covers its teams
func (e *Evaluator) groupMatches(ctx context.Context, rule *entity.WorkflowPermission, position *entity.ActorPosition, teams *teamLookup) (bool, error) {
	switch rule.GroupType {
	case entity.GroupTypeDepartment:
		switch position.GroupType {
		case entity.GroupTypeDepartment:
			return position.GroupID == rule.GroupID, nil
		case entity.GroupTypeTeam:
			deptID, found, err := teams.department(ctx, position.GroupID)
			if err != nil {
				return false, err
			}
			return found && deptID == rule.GroupID, nil
		}
	case entity.GroupTypeTeam:
		return position.GroupType == entity.GroupTypeTeam && position.GroupID == rule.GroupID, nil
	}
	return false, nil
}

func (e *Evaluator) logDenied(actorID, stepID, actorRole, reason string) {
	e.logger.Warn("Permission denied",
		zap.String("actor_id", actorID),
		zap.String("step_id", stepID),
		zap.String("actor_role", actorRole),
		zap.String("reason", reason))
}

func denied(positions []*entity.ActorPosition, reason string) *PermissionResult {
	if positions == nil {
		positions = []*entity.ActorPosition{}
	}
	return &PermissionResult{
		Allowed:            false,
		Reasons:            []string{reason},
		MatchedPermissions: []MatchedPermission{},
		Positions:          positions,
	}
}

// teamLookup memoizes team parentage for the span of one evaluation
type teamLookup struct {
	org   port.OrganizationRepository
	cache map[string]teamParent
}

type teamParent struct {
	departmentID string
	found        bool
}

func newTeamLookup(org port.OrganizationRepository) *teamLookup {
	return &teamLookup{org: org, cache: make(map[string]teamParent)}
}

func (t *teamLookup) department(ctx context.Context, teamID string) (string, bool, error) {
	if p, ok := t.cache[teamID]; ok {
		return p.departmentID, p.found, nil
	}
	deptID, found, err := t.org.TeamDepartmentID(ctx, teamID)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve team %s: %w", teamID, err)
	}
	t.cache[teamID] = teamParent{departmentID: deptID, found: found}
	return deptID, found, nil
}
