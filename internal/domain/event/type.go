package event

// Type identifies the type of domain event
type Type string

const (
	TypeInstanceCreated     Type = "instance.created"
	TypeTransitionCompleted Type = "transition.completed"
	TypePermissionDenied    Type = "permission.denied"
	TypeStatusChanged       Type = "instance.status_changed"
)

// All lists every event type in dispatch order of a typical instance lifetime
var All = []Type{
	TypeInstanceCreated,
	TypeTransitionCompleted,
	TypePermissionDenied,
	TypeStatusChanged,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInstanceCreated,
		TypeTransitionCompleted,
		TypePermissionDenied,
		TypeStatusChanged:
		return true
	default:
		return false
	}
}
