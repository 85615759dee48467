package document

import (
	"encoding/json"
	"fmt"
)

// Navigate walks tree along segments and returns the value found there.
// With create set, missing mappings along the way (and at the end) are
// created as empty maps.
func Navigate(tree map[string]any, segments []string, create bool) (any, bool) {
	if tree == nil || len(segments) == 0 {
		return nil, false
	}

	current := tree
	for i, seg := range segments {
		next, ok := current[seg]
		if !ok {
			if !create {
				return nil, false
			}
			next = make(map[string]any)
			current[seg] = next
		}
		if i == len(segments)-1 {
			return next, true
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, false
		}
		current = m
	}
	return nil, false
}

// SetAt writes value at segments, creating intermediate mappings as needed.
// When overwrite is false an existing value is left untouched and SetAt
// reports false.
func SetAt(tree map[string]any, segments []string, value any, overwrite bool) (bool, error) {
	if tree == nil {
		return false, fmt.Errorf("%w: nil tree", ErrNotMapping)
	}
	if err := ValidateSegments(segments); err != nil {
		return false, err
	}

	current := tree
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg]
		if !ok {
			m := make(map[string]any)
			current[seg] = m
			current = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrNotMapping, seg)
		}
		current = m
	}

	last := segments[len(segments)-1]
	if _, exists := current[last]; exists && !overwrite {
		return false, nil
	}
	current[last] = value
	return true, nil
}

// DeleteAt removes the value at segments. It reports whether anything was removed.
func DeleteAt(tree map[string]any, segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	parent := tree
	if len(segments) > 1 {
		v, ok := Navigate(tree, segments[:len(segments)-1], false)
		if !ok {
			return false
		}
		if parent, ok = v.(map[string]any); !ok {
			return false
		}
	}
	last := segments[len(segments)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// Clone returns a deep copy of a normalized tree value. Scalars are returned as is.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// Normalize converts decoder output into the canonical tree shape:
// map[string]any for mappings, []any for sequences and int64 for integers.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = Normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = Normalize(item)
		}
		return val
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > 1<<63-1 {
			return val
		}
		return int64(val)
	default:
		return v
	}
}

// normalizeRoot normalizes decoded data and checks that the root is a mapping.
func normalizeRoot(v any) (map[string]any, error) {
	if v == nil {
		return make(map[string]any), nil
	}
	root, ok := Normalize(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document root is %T", ErrNotMapping, v)
	}
	if root == nil {
		root = make(map[string]any)
	}
	return root, nil
}
