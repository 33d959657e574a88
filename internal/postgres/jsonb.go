// Package postgres provides the pgx/squirrel/scany persistence plumbing
// shared by the Task Catalog Store (C2) and the Workflow Repository (C4).
package postgres

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// ToJSONB marshals a value to JSONB-compatible bytes, returning nil for nil input.
func ToJSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling to jsonb: %w", err)
	}
	return data, nil
}

// FromJSONB unmarshals JSONB data into a pointer, setting nil if the source is nil.
func FromJSONB[T any](src []byte, dst **T) error {
	if src == nil {
		*dst = nil
		return nil
	}
	var target T
	if err := json.Unmarshal(src, &target); err != nil {
		return fmt.Errorf("unmarshaling from jsonb: %w", err)
	}
	*dst = &target
	return nil
}

// ToJSONMap unmarshals JSONB bytes into a generic map, treating nil/empty as
// an empty (non-nil) map so callers never nil-check before ranging.
func ToJSONMap(src []byte) (map[string]any, error) {
	if len(src) == 0 {
		return map[string]any{}, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(src, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling jsonb map: %w", err)
	}
	return out, nil
}
