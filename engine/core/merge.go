package core

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeOverride merges src onto dst in place, with non-zero fields of src
// overriding dst and slices appended rather than replaced. It is used by
// the hot-reload path to compose a freshly parsed config onto the one
// currently compiled into the engine.
func MergeOverride(dst, src any) error {
	if err := mergo.Merge(dst, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}
