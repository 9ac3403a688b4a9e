package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys
const (
	KeyWorkflowID     = "workflow_id"
	KeyOrganizationID = "organization_id"
	KeyFromState      = "from_state"
	KeyToState        = "to_state"
	KeyStepID         = "step_id"
	KeyActorRole      = "actor_role"
	KeyReasons        = "reasons"
	KeyPreviousStatus = "previous_status"
	KeyStatus         = "status"
)

// Event is emitted after an audited action has been committed
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	InstanceID string                 `json:"instance_id"`
	ActorID    string                 `json:"actor_id"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewEvent creates a domain event with a fresh id
func NewEvent(eventType Type, instanceID, actorID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		InstanceID: instanceID,
		ActorID:    actorID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// WithPayload returns a copy of the event with key set (the receiver is not modified)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadStrings retrieves a string list from the payload
func (e *Event) GetPayloadStrings(key string) []string {
	switch v := e.Payload[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
