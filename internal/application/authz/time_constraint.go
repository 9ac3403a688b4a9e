package authz

import (
	"strings"
	"time"
)

// Time constraint fields
const (
	FieldBusinessHoursOnly = "business_hours_only"
	FieldDeadline          = "deadline"
)

// Default business window, minutes after midnight, both ends inclusive
const (
	DefaultBusinessStart = 9 * 60
	DefaultBusinessEnd   = 17 * 60
)

// TimeConstraintEvaluator evaluates calendar and deadline conditions against a clock
type TimeConstraintEvaluator struct {
	now      func() time.Time
	location *time.Location
	start    int
	end      int
}

// TimeOption configures a TimeConstraintEvaluator
type TimeOption func(*TimeConstraintEvaluator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) TimeOption {
	return func(e *TimeConstraintEvaluator) {
		e.now = now
	}
}

// WithLocation sets the zone in which business hours are judged
func WithLocation(loc *time.Location) TimeOption {
	return func(e *TimeConstraintEvaluator) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithBusinessHours sets the inclusive window in minutes after midnight
func WithBusinessHours(startMinute, endMinute int) TimeOption {
	return func(e *TimeConstraintEvaluator) {
		e.start = startMinute
		e.end = endMinute
	}
}

// NewTimeConstraintEvaluator defaults to the process-local zone and a 09:00-17:00 window
func NewTimeConstraintEvaluator(opts ...TimeOption) *TimeConstraintEvaluator {
	e := &TimeConstraintEvaluator{
		now:      time.Now,
		location: time.Local,
		start:    DefaultBusinessStart,
		end:      DefaultBusinessEnd,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks a time_constraint value.
// business_hours_only takes precedence over deadline; with neither field set the constraint passes.
func (e *TimeConstraintEvaluator) Evaluate(constraint map[string]interface{}) bool {
	now := e.now().In(e.location)

	if truthy(constraint[FieldBusinessHoursOnly]) {
		return e.withinBusinessHours(now)
	}

	if raw, ok := constraint[FieldDeadline]; ok && truthy(raw) {
		deadline, ok := e.parseDeadline(raw)
		if !ok {
			// an unparseable deadline can never be met
			return false
		}
		return now.Before(deadline)
	}

	return true
}

func (e *TimeConstraintEvaluator) withinBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= e.start && minute <= e.end
}

var deadlineLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDeadline reads a deadline without an explicit zone in the evaluator's location
func (e *TimeConstraintEvaluator) parseDeadline(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range deadlineLayouts {
			if t, err := time.ParseInLocation(layout, s, e.location); err == nil {
				return t, true
			}
		}
	case float64:
		// epoch milliseconds
		return time.UnixMilli(int64(v)), true
	case time.Time:
		return v, true
	}
	return time.Time{}, false
}

// truthy mirrors how loosely-typed JSON flags are read: false, 0, "" and null are off
func truthy(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != "" && b != "false"
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return true
	}
}
