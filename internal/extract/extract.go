// Package extract pulls a single price or rate out of a decoded JSON payload.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrShapeMismatch means an expected object is absent or of the wrong type.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrFieldMissing means none of the candidate fields holds a value.
	ErrFieldMissing = errors.New("field missing")
	// ErrNotNumeric means the chosen field is not a usable positive number.
	ErrNotNumeric = errors.New("not numeric")
)

// Shape describes where a value lives: a path of nested objects, then candidate
// fields in preference order.
type Shape struct {
	Path   []string
	Fields []string
}

// Float extracts the value described by shape from payload.
func Float(payload any, shape Shape) (float64, error) {
	obj, err := Object(payload, shape.Path...)
	if err != nil {
		return 0, err
	}
	return Value(obj, shape.Fields...)
}

// Object walks path from payload and returns the object found there.
func Object(payload any, path ...string) (map[string]any, error) {
	cur, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %T, want object", ErrShapeMismatch, payload)
	}
	for _, key := range path {
		next, err := parseNullableValue[map[string]any](cur, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrShapeMismatch, key, err)
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q absent", ErrShapeMismatch, key)
		}
		cur = *next
	}
	return cur, nil
}

// Value returns the first present, non-null, non-empty candidate as a number.
func Value(obj map[string]any, fields ...string) (float64, error) {
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		n, err := Number(v)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", f, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: none of %s", ErrFieldMissing, strings.Join(fields, ", "))
}

// Number converts a decoded JSON value to a price. Zero, negative and
// non-finite values are rejected.
func Number(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case json.Number:
		f, err = x.Float64()
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, ErrFieldMissing
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("%w: unexpected type %T", ErrNotNumeric, v)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
	}
	return f, nil
}

// String returns the first non-empty string among fields.
func String(obj map[string]any, fields ...string) string {
	for _, f := range fields {
		s, err := parseNullableValue[string](obj, f)
		if err == nil && s != nil && strings.TrimSpace(*s) != "" {
			return strings.TrimSpace(*s)
		}
	}
	return ""
}

// parseNullableValue is a helper function to parse a nullable value.
func parseNullableValue[T any](data map[string]any, key string) (*T, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, nil
	}
	if v, ok := v.(T); ok {
		return &v, nil
	}
	return nil, fmt.Errorf("unexpected type: %T", v)
}
