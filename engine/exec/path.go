// Package exec is the internal (map/validation) and built-in
// (parse/publish) executor, plus the task dispatcher that routes a
// task's function to one of these or to a registered custom handler
// (spec.md §4.4, §4.5).
package exec

import "strings"

const (
	subtreeData     = "data"
	subtreeMetadata = "metadata"
	subtreeTempData = "temp_data"
)

// subtreeOf reports which context subtree path addresses, based on its
// first dotted segment (spec.md §6, "path syntax").
func subtreeOf(path string) string {
	head := path
	if i := strings.IndexByte(path, '.'); i >= 0 {
		head = path[:i]
	}
	switch head {
	case subtreeMetadata, subtreeTempData:
		return head
	default:
		return subtreeData
	}
}

// resolvePath returns the full context path for a configured path,
// defaulting to the data subtree when no recognized prefix is present
// (spec.md §6: "absent prefix defaults to data").
func resolvePath(path string) string {
	switch {
	case path == subtreeData || path == subtreeMetadata || path == subtreeTempData:
		return path
	case strings.HasPrefix(path, subtreeData+"."),
		strings.HasPrefix(path, subtreeMetadata+"."),
		strings.HasPrefix(path, subtreeTempData+"."):
		return path
	default:
		return subtreeData + "." + path
	}
}
