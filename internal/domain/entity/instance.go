package entity

import "time"

// Workflow is a named template of steps an instance progresses through
type Workflow struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	IsActive  bool            `json:"isActive"`
	Steps     []*WorkflowStep `json:"workflowSteps,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// WorkflowStep is a named state within a workflow
type WorkflowStep struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	StepName   string `json:"stepName"`
	StepOrder  int    `json:"stepOrder"`
	IsActive   bool   `json:"isActive"`
}

// WorkflowInstance is a running occurrence of a workflow.
// Version is bumped on every write and guards against lost updates.
type WorkflowInstance struct {
	ID              string      `json:"id"`
	WorkflowID      string      `json:"workflowId"`
	CurrentState    string      `json:"currentState"`
	Status          string      `json:"status"`
	ContextData     ContextData `json:"contextData"`
	OrganizationID  string      `json:"organizationId"`
	InitiatorUserID string      `json:"initiatorUserId"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Clone returns a copy of the instance with its own context map
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	c := *i
	c.ContextData = i.ContextData.Clone()
	return &c
}
