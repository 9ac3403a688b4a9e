package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory fakes for the evaluator's store lookups

type fakePositions map[string][]*entity.ActorPosition

func (f fakePositions) ActivePositions(ctx context.Context, userID string) ([]*entity.ActorPosition, error) {
	return f[userID], nil
}

type fakePermissions struct {
	rules []*entity.WorkflowPermission
	err   error
}

func (f *fakePermissions) ActiveForStepAndRole(ctx context.Context, stepID, actorRole string) ([]*entity.WorkflowPermission, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*entity.WorkflowPermission
	for _, r := range f.rules {
		if r.WorkflowStepID == stepID && r.ActorRole == actorRole && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeOrg struct {
	teams   map[string]string
	lookups int
}

func (f *fakeOrg) TeamDepartmentID(ctx context.Context, teamID string) (string, bool, error) {
	f.lookups++
	dept, ok := f.teams[teamID]
	return dept, ok, nil
}

func rule(id, permType, groupType, groupID string) *entity.WorkflowPermission {
	return &entity.WorkflowPermission{
		ID:             id,
		WorkflowStepID: "step-review",
		ActorRole:      "approver",
		GroupType:      groupType,
		GroupID:        groupID,
		PermissionType: permType,
		IsActive:       true,
	}
}

func newTestEvaluator(positions fakePositions, rules []*entity.WorkflowPermission, org *fakeOrg) *Evaluator {
	if org == nil {
		org = &fakeOrg{teams: map[string]string{}}
	}
	return NewEvaluator(positions, &fakePermissions{rules: rules}, org, nil, nil)
}

func TestEvaluator_NoPositionsDenies(t *testing.T) {
	e := newTestEvaluator(fakePositions{}, []*entity.WorkflowPermission{
		rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
	}, nil)

	for _, data := range []entity.ContextData{nil, {"amount": 1}, {"anything": "else"}} {
		result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", data)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, []string{ReasonNoPositions}, result.Reasons)
		assert.Empty(t, result.MatchedPermissions)
		assert.Empty(t, result.Positions)
	}
}

func TestEvaluator_NoPermissionsConfigured(t *testing.T) {
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", JobLevel: 3}}}
	e := newTestEvaluator(positions, nil, nil)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{ReasonNoPermissions}, result.Reasons)
	assert.Len(t, result.Positions, 1)
}

func TestEvaluator_RoleFiltersRules(t *testing.T) {
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin"}}}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
	}, nil)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "reviewer", nil)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{ReasonNoPermissions}, result.Reasons)
}

func TestEvaluator_DepartmentRuleMatchesDepartmentPosition(t *testing.T) {
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", JobLevel: 5}}}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
	}, nil)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.Reasons)
	require.Len(t, result.MatchedPermissions, 1)
	assert.Equal(t, entity.MatchTypeGroup, result.MatchedPermissions[0].MatchType)
	assert.Equal(t, "p1", result.MatchedPermissions[0].Permission.ID)
}

func TestEvaluator_DepartmentRuleCoversTeamsOfDepartment(t *testing.T) {
	org := &fakeOrg{teams: map[string]string{"team-ap": "dept-fin", "team-web": "dept-eng"}}
	positions := fakePositions{
		"inside":  {{GroupType: entity.GroupTypeTeam, GroupID: "team-ap"}},
		"outside": {{GroupType: entity.GroupTypeTeam, GroupID: "team-web"}},
		"orphan":  {{GroupType: entity.GroupTypeTeam, GroupID: "team-unknown"}},
	}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
	}, org)

	result, err := e.Evaluate(context.Background(), "inside", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = e.Evaluate(context.Background(), "outside", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{ReasonNoMatch}, result.Reasons)

	result, err = e.Evaluate(context.Background(), "orphan", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestEvaluator_TeamRuleRequiresSameTeam(t *testing.T) {
	positions := fakePositions{
		"member":   {{GroupType: entity.GroupTypeTeam, GroupID: "team-ap"}},
		"deptHead": {{GroupType: entity.GroupTypeDepartment, GroupID: "team-ap"}},
	}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p1", entity.PermissionOptional, entity.GroupTypeTeam, "team-ap"),
	}, nil)

	result, err := e.Evaluate(context.Background(), "member", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// same id but a department position never satisfies a team rule
	result, err = e.Evaluate(context.Background(), "deptHead", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestEvaluator_DesignationMustMatchExactly(t *testing.T) {
	r := rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin")
	r.DesignationID = "desig-manager"

	positions := fakePositions{
		"manager": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", DesignationID: "desig-manager"}},
		"analyst": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", DesignationID: "desig-analyst"}},
	}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{r}, nil)

	result, err := e.Evaluate(context.Background(), "manager", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, entity.MatchTypeExact, result.MatchedPermissions[0].MatchType)

	result, err = e.Evaluate(context.Background(), "analyst", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestEvaluator_ConditionsAreANDed(t *testing.T) {
	r := rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin")
	r.Conditions = entity.Conditions{ConditionMinJobLevel: float64(3), ConditionMaxJobLevel: float64(5)}

	tests := []struct {
		level int
		want  bool
	}{
		{2, false},
		{4, true},
		{6, false},
	}

	for _, tt := range tests {
		positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", JobLevel: tt.level}}}
		e := newTestEvaluator(positions, []*entity.WorkflowPermission{r}, nil)

		result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, result.Allowed, "job level %d", tt.level)
		if tt.want {
			assert.Equal(t, map[string]bool{ConditionMinJobLevel: true, ConditionMaxJobLevel: true},
				result.MatchedPermissions[0].Conditions)
		}
	}
}

func TestEvaluator_ForbiddenVetoesOtherMatches(t *testing.T) {
	positions := fakePositions{"u1": {
		{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", JobLevel: 5},
		{GroupType: entity.GroupTypeTeam, GroupID: "team-audit", JobLevel: 2},
	}}

	orders := map[string][]*entity.WorkflowPermission{
		"forbidden last": {
			rule("p-req", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
			rule("p-opt", entity.PermissionOptional, entity.GroupTypeDepartment, "dept-fin"),
			rule("p-forbid", entity.PermissionForbidden, entity.GroupTypeTeam, "team-audit"),
		},
		"forbidden first": {
			rule("p-forbid", entity.PermissionForbidden, entity.GroupTypeTeam, "team-audit"),
			rule("p-req", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
		},
	}

	for name, rules := range orders {
		t.Run(name, func(t *testing.T) {
			e := newTestEvaluator(positions, rules, nil)
			result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
			require.NoError(t, err)
			assert.False(t, result.Allowed)
			assert.Empty(t, result.MatchedPermissions)
			assert.Equal(t, []string{ReasonForbidden}, result.Reasons)
		})
	}
}

func TestEvaluator_UnmatchedForbiddenDoesNotVeto(t *testing.T) {
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin"}}}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p-forbid", entity.PermissionForbidden, entity.GroupTypeDepartment, "dept-legal"),
		rule("p-req", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
	}, nil)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestEvaluator_AccumulatesEveryMatch(t *testing.T) {
	org := &fakeOrg{teams: map[string]string{"team-ap": "dept-fin"}}
	positions := fakePositions{"u1": {
		{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin"},
		{GroupType: entity.GroupTypeTeam, GroupID: "team-ap"},
	}}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p-req", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
		rule("p-opt", entity.PermissionOptional, entity.GroupTypeTeam, "team-ap"),
	}, org)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	// p-req matches both positions, p-opt matches the team position
	assert.Len(t, result.MatchedPermissions, 3)
}

func TestEvaluator_TeamLookupMemoizedPerEvaluation(t *testing.T) {
	org := &fakeOrg{teams: map[string]string{"team-ap": "dept-fin"}}
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeTeam, GroupID: "team-ap"}}}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{
		rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin"),
		rule("p2", entity.PermissionOptional, entity.GroupTypeDepartment, "dept-fin"),
		rule("p3", entity.PermissionOptional, entity.GroupTypeDepartment, "dept-hr"),
	}, org)

	_, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, org.lookups)

	_, err = e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, org.lookups)
}

func TestEvaluator_StoreErrorPropagates(t *testing.T) {
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin"}}}
	storeErr := errors.New("connection reset")
	e := NewEvaluator(positions, &fakePermissions{err: storeErr}, &fakeOrg{}, nil, nil)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, storeErr)
}

func TestEvaluator_AmountLimitScenario(t *testing.T) {
	r := rule("p1", entity.PermissionRequired, entity.GroupTypeDepartment, "dept-fin")
	r.Conditions = entity.Conditions{
		ConditionMaxJobLevel:         float64(10),
		ConditionWorkflowAmountLimit: float64(1000),
	}
	positions := fakePositions{"u1": {{GroupType: entity.GroupTypeDepartment, GroupID: "dept-fin", JobLevel: 5}}}
	e := newTestEvaluator(positions, []*entity.WorkflowPermission{r}, nil)

	result, err := e.Evaluate(context.Background(), "u1", "step-review", "approver", entity.ContextData{"amount": float64(500)})
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = e.Evaluate(context.Background(), "u1", "step-review", "approver", entity.ContextData{"amount": float64(5000)})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{ReasonNoMatch}, result.Reasons)
}
