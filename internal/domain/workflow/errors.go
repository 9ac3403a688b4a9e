package workflow

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a workflow, step or instance is absent or inactive
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an instance is not active for a transition
	ErrInvalidState = errors.New("invalid instance state")

	// ErrPermissionDenied is returned when the evaluator disallows an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation is returned when a required request field is missing
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the instance changed between read and write
	ErrConflict = errors.New("instance was modified concurrently")
)

// PermissionDeniedError carries the evaluator's reasons
type PermissionDeniedError struct {
	Reasons []string
}

func (e *PermissionDeniedError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrPermissionDenied.Error()
	}
	return ErrPermissionDenied.Error() + ": " + strings.Join(e.Reasons, "; ")
}

// Unwrap makes errors.Is(err, ErrPermissionDenied) hold
func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// ValidationError names the offending field. An empty Reason means the field was missing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Field + " is required"
	}
	return e.Field + " " + e.Reason
}

// Unwrap makes errors.Is(err, ErrValidation) hold
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid returns a ValidationError for a field that is present but unacceptable
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Required returns a ValidationError for the first empty field in pairs of (name, value)
func Required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return &ValidationError{Field: fields[i]}
		}
	}
	return nil
}
