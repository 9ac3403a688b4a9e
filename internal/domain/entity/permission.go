package entity

// WorkflowPermission is a step-scoped authorization rule.
// DesignationID is empty when the rule applies to every designation in the group.
type WorkflowPermission struct {
	ID             string     `json:"id"`
	WorkflowStepID string     `json:"workflowStepId"`
	ActorRole      string     `json:"actorRole"`
	GroupType      string     `json:"groupType"`
	GroupID        string     `json:"groupId"`
	DesignationID  string     `json:"designationId,omitempty"`
	PermissionType string     `json:"permissionType"`
	Conditions     Conditions `json:"conditions,omitempty"`
	IsActive       bool       `json:"isActive"`
}

// HasDesignation reports whether the rule is pinned to a designation
func (p *WorkflowPermission) HasDesignation() bool {
	return p.DesignationID != ""
}

// ActorPosition is one active organizational assignment of a user
type ActorPosition struct {
	UserID        string `json:"userId,omitempty"`
	GroupType     string `json:"groupType"`
	GroupID       string `json:"groupId"`
	DesignationID string `json:"designationId,omitempty"`
	JobLevel      int    `json:"jobLevel"`
}
