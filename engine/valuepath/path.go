// Package valuepath implements dotted-path navigation over the generic
// JSON value universe (nil, bool, float64, string, []any, map[string]any)
// used throughout the engine to read and write a message's context.
package valuepath

import (
	"strconv"
	"strings"
)

// Get resolves a dotted path against value. Numeric path segments index
// into sequences; any other segment keys into mappings. A missing
// intermediate segment, an out-of-range index, or a type mismatch (e.g.
// indexing into a mapping) all yield (nil, false).
func Get(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}
	cur := value
	for _, part := range strings.Split(path, ".") {
		if cur == nil {
			return nil, false
		}
		if idx, isIndex := numericIndex(part); isIndex {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, exists := m[part]
		if !exists {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Set writes newValue at path within *target, creating intermediate
// mappings (or sequences, when the next segment is numeric) on demand,
// and returns the value that previously occupied that path (nil if
// absent). An empty path replaces *target wholesale. A numeric segment
// materializes a sequence, extended with nil up to that index, even when
// the surrounding value was a mapping — this makes digit-string map keys
// unreachable by design (see spec.md §9, "Path numeric-segment ambiguity").
func Set(target *any, path string, newValue any) any {
	if path == "" {
		old := *target
		*target = newValue
		return old
	}
	parts := strings.Split(path, ".")
	return setParts(target, parts, newValue)
}

func setParts(cur *any, parts []string, newValue any) any {
	part := parts[0]
	idx, isIndex := numericIndex(part)
	last := len(parts) == 1

	if isIndex {
		arr := asArray(*cur)
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		if last {
			old := arr[idx]
			arr[idx] = newValue
			*cur = arr
			return old
		}
		child := arr[idx]
		old := setParts(&child, parts[1:], newValue)
		arr[idx] = child
		*cur = arr
		return old
	}

	m := asMap(*cur)
	if last {
		old, existed := m[part]
		if !existed {
			old = nil
		}
		m[part] = newValue
		*cur = m
		return old
	}

	child, existed := m[part]
	if !existed {
		if _, nextIsIndex := numericIndex(parts[1]); nextIsIndex {
			child = []any{}
		} else {
			child = map[string]any{}
		}
	}
	old := setParts(&child, parts[1:], newValue)
	m[part] = child
	*cur = m
	return old
}

// IsTruthy reports the JSONLogic-style truthiness of value: false for
// nil, false, zero-valued numbers, empty strings, and empty sequences or
// mappings; true for everything else.
func IsTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) != 0
	case map[string]any:
		return len(v) != 0
	default:
		return true
	}
}

// numericIndex reports whether s is a non-negative integer sequence
// index, and its value.
func numericIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asArray(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return []any{}
}
