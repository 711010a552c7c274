package logic

import "encoding/json"

// Cache is the engine-owned arena of validated JSONLogic expressions
// (spec.md §3, "Compiled expression cache"). Each entry is held as raw
// JSON bytes; it is not kept in a parsed form, and the evaluator parses
// it again on every evaluation. It is append-only during
// compilation and immutable — therefore safe to read from any
// goroutine — once the engine is constructed.
type Cache struct {
	expressions []json.RawMessage
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Add appends rule and returns its slot index.
func (c *Cache) Add(rule json.RawMessage) int {
	c.expressions = append(c.expressions, rule)
	return len(c.expressions) - 1
}

// Get returns the expression at index, and whether it was in bounds.
func (c *Cache) Get(index int) (json.RawMessage, bool) {
	if index < 0 || index >= len(c.expressions) {
		return nil, false
	}
	return c.expressions[index], true
}

// Len reports how many expressions the cache holds.
func (c *Cache) Len() int {
	return len(c.expressions)
}

// isCompilable reports whether a raw JSONLogic expression is an object
// or array (spec.md §4.3: "literals are recorded without compilation
// and evaluated as themselves"). A nil/empty expression is not
// compilable.
func isCompilable(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

// IsBareBoolean reports whether raw is exactly the JSON literal true or
// false (spec.md §4.3: "if condition is not a bare boolean literal,
// compile it").
func IsBareBoolean(raw json.RawMessage) bool {
	trimmed := make([]byte, 0, len(raw))
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			trimmed = append(trimmed, b)
		}
	}
	s := string(trimmed)
	return s == "true" || s == "false"
}
