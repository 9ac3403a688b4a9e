package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ContextData is the open string-keyed run-time context of an instance.
// It is stored as a JSON document.
type ContextData map[string]interface{}

// Merge returns a new map holding c overlaid with each of others in order.
// Later writes win per key; keys are never removed.
func (c ContextData) Merge(others ...ContextData) ContextData {
	size := len(c)
	for _, o := range others {
		size += len(o)
	}

	merged := make(ContextData, size)
	for k, v := range c {
		merged[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}

// Clone returns a shallow copy, never nil
func (c ContextData) Clone() ContextData {
	return c.Merge()
}

// Number returns the value under key as a float64.
// present is false when the key is absent or nil; ok is false when it cannot be read as a number.
func (c ContextData) Number(key string) (value float64, present bool, ok bool) {
	raw, exists := c[key]
	if !exists || raw == nil {
		return 0, false, true
	}
	v, ok := ToFloat(raw)
	return v, true, ok
}

// Value implements driver.Valuer
func (c ContextData) Value() (driver.Value, error) {
	return marshalJSONObject(c)
}

// Scan implements sql.Scanner
func (c *ContextData) Scan(src interface{}) error {
	m, err := scanJSONObject(src)
	if err != nil {
		return fmt.Errorf("scan context data: %w", err)
	}
	*c = m
	return nil
}

// Conditions maps a condition key (min_job_level, workflow_amount_limit, ...) to its threshold
type Conditions map[string]interface{}

// Value implements driver.Valuer
func (c Conditions) Value() (driver.Value, error) {
	return marshalJSONObject(c)
}

// Scan implements sql.Scanner
func (c *Conditions) Scan(src interface{}) error {
	m, err := scanJSONObject(src)
	if err != nil {
		return fmt.Errorf("scan conditions: %w", err)
	}
	*c = Conditions(m)
	return nil
}

// ToFloat converts JSON-like numeric values (including numeric strings) to float64
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func marshalJSONObject(m map[string]interface{}) (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSONObject(src interface{}) (map[string]interface{}, error) {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", src)
	}

	m := map[string]interface{}{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
