package entity

import "time"

// WorkflowHistoryEntry records one completed state transition
type WorkflowHistoryEntry struct {
	ID          string      `json:"id"`
	InstanceID  string      `json:"instanceId"`
	FromState   string      `json:"fromState"`
	ToState     string      `json:"toState"`
	Action      string      `json:"action"`
	ContextData ContextData `json:"contextData"`
	PerformedBy string      `json:"performedBy"`
	ActorRole   string      `json:"actorRole"`
	Reason      string      `json:"reason,omitempty"`
	PerformedAt time.Time   `json:"performedAt"`
}

// AuditLogEntry records a security-relevant attempt: transitions, denials and status changes.
// Details holds a JSON document.
type AuditLogEntry struct {
	ID                 string    `json:"id"`
	EventType          string    `json:"eventType"`
	UserID             string    `json:"userId"`
	ResourceType       string    `json:"resourceType"`
	ResourceID         string    `json:"resourceId"`
	Action             string    `json:"action"`
	Result             string    `json:"result"`
	Details            string    `json:"details,omitempty"`
	WorkflowInstanceID string    `json:"workflowInstanceId,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}
