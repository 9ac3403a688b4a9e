package authz

import (
	"github.com/garyjia/workflow-gate/internal/domain/entity"
)

// Recognized condition keys
const (
	ConditionMinJobLevel         = "min_job_level"
	ConditionMaxJobLevel         = "max_job_level"
	ConditionWorkflowAmountLimit = "workflow_amount_limit"
	ConditionTimeConstraint      = "time_constraint"
)

// ContextKeyAmount is the context field compared against workflow_amount_limit
const ContextKeyAmount = "amount"

// ConditionEvaluator evaluates a permission rule's condition set
type ConditionEvaluator struct {
	timeConstraints *TimeConstraintEvaluator
}

// NewConditionEvaluator creates a condition evaluator
func NewConditionEvaluator(timeConstraints *TimeConstraintEvaluator) *ConditionEvaluator {
	if timeConstraints == nil {
		timeConstraints = NewTimeConstraintEvaluator()
	}
	return &ConditionEvaluator{timeConstraints: timeConstraints}
}

// Evaluate returns the outcome of every condition key.
//
// Unrecognized keys evaluate to true. A misspelled key therefore does not
// restrict the rule; keep rule authoring validated upstream.
func (e *ConditionEvaluator) Evaluate(conditions entity.Conditions, data entity.ContextData, position *entity.ActorPosition) map[string]bool {
	results := make(map[string]bool, len(conditions))

	jobLevel := 0
	if position != nil {
		jobLevel = position.JobLevel
	}

	for key, threshold := range conditions {
		switch key {
		case ConditionMinJobLevel:
			limit, ok := entity.ToFloat(threshold)
			results[key] = ok && float64(jobLevel) >= limit

		case ConditionMaxJobLevel:
			limit, ok := entity.ToFloat(threshold)
			results[key] = ok && float64(jobLevel) <= limit

		case ConditionWorkflowAmountLimit:
			limit, ok := entity.ToFloat(threshold)
			if !ok {
				results[key] = false
				continue
			}
			amount, _, numeric := data.Number(ContextKeyAmount)
			results[key] = numeric && amount <= limit

		case ConditionTimeConstraint:
			constraint, _ := threshold.(map[string]interface{})
			results[key] = e.timeConstraints.Evaluate(constraint)

		default:
			results[key] = true
		}
	}

	return results
}

// AllPassed reports whether every condition evaluated true
func AllPassed(results map[string]bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
