package core

import (
	"fmt"
	"maps"

	"github.com/mohae/deepcopy"
)

// CloneMap creates a shallow copy of any map type with comparable keys.
// Returns an empty initialized map when src is nil, so callers never have
// to nil-check before mutating the result.
func CloneMap[K comparable, V any](src map[K]V) map[K]V {
	if src == nil {
		return make(map[K]V)
	}
	return maps.Clone(src)
}

// DeepCopy creates a deep copy of v using github.com/mohae/deepcopy and
// returns it cast back to T. Used for the map executor's task-start view
// snapshot and for the hot-reload merge, wherever the kernel needs a copy
// that is safe to retain across later mutation of the original.
func DeepCopy[T any](v T) (T, error) {
	var zero T
	copied := deepcopy.Copy(v)
	result, ok := copied.(T)
	if !ok {
		return zero, fmt.Errorf("failed to cast deep copy to type %T", zero)
	}
	return result, nil
}
