package entity

// Instance status constants for WorkflowInstance
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// FallbackInitialState is used as current_state when a workflow has no active steps
const FallbackInitialState = "initial"

// Group type constants shared by WorkflowPermission and ActorPosition
const (
	GroupTypeDepartment = "department"
	GroupTypeTeam       = "team"
)

// Permission type constants for WorkflowPermission
const (
	PermissionRequired  = "required"
	PermissionOptional  = "optional"
	PermissionForbidden = "forbidden"
)

// Match type constants reported for a matched permission
const (
	MatchTypeExact = "exact"
	MatchTypeGroup = "group"
	MatchTypeNone  = "none"
)

// Audit result constants
const (
	AuditResultSuccess = "success"
	AuditResultDenied  = "denied"
)

// Audit event type constants
const (
	AuditEventInstanceCreated  = "workflow_instance_created"
	AuditEventTransition       = "workflow_transition"
	AuditEventPermissionDenied = "permission_denied"
	AuditEventStatusChange     = "workflow_status_change"
)

// Audit resource type constants
const (
	ResourceWorkflowInstance = "workflow_instance"
	ResourceWorkflowStep     = "workflow_step"
)

// HistoryActionTransition is the action recorded on every history entry
const HistoryActionTransition = "transition"

// IsValidStatus reports whether s is one of the instance status constants
func IsValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}
