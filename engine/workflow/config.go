// Package workflow is the typed, declarative representation of a
// workflow/task configuration (spec.md §3, §6): the shape the logic
// compiler validates and annotates with expression-cache indices before
// the engine ever sees a message.
package workflow

import (
	"encoding/json"
)

// Config is a single workflow: a named, ordered group of tasks guarded
// by one condition (spec.md §3).
type Config struct {
	ID              string          `json:"id"                         yaml:"id"                         validate:"required"`
	Name            string          `json:"name"                       yaml:"name"                       validate:"required"`
	Priority        int             `json:"priority,omitempty"         yaml:"priority,omitempty"`
	Description     string          `json:"description,omitempty"      yaml:"description,omitempty"`
	Condition       json.RawMessage `json:"condition,omitempty"        yaml:"condition,omitempty"`
	ContinueOnError bool            `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
	Tasks           []*TaskConfig   `json:"tasks"                      yaml:"tasks"                      validate:"required,dive"`

	// ConditionIndex is filled by the logic compiler with the slot in the
	// engine's expression cache (spec.md §4.3). Nil until compiled, and
	// never serialized.
	ConditionIndex *int `json:"-" yaml:"-"`
}

// TaskConfig is a single task: a condition-guarded unit of work dispatched
// to a builtin function or a named custom handler (spec.md §3).
type TaskConfig struct {
	ID              string          `json:"id"                          yaml:"id"                          validate:"required"`
	Name            string          `json:"name"                        yaml:"name"`
	Description     string          `json:"description,omitempty"       yaml:"description,omitempty"`
	Condition       json.RawMessage `json:"condition,omitempty"         yaml:"condition,omitempty"`
	ContinueOnError bool            `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
	Function        *FunctionConfig `json:"function"                    yaml:"function"                    validate:"required"`

	ConditionIndex *int `json:"-" yaml:"-"`
}

// DefaultCondition is the JSONLogic literal used when a workflow or task
// omits "condition" (spec.md §6: "default true").
var DefaultCondition = json.RawMessage("true")

// EffectiveCondition returns c.Condition, defaulting to DefaultCondition
// when unset.
func (c *Config) EffectiveCondition() json.RawMessage {
	if len(c.Condition) == 0 {
		return DefaultCondition
	}
	return c.Condition
}

// EffectiveCondition returns t.Condition, defaulting to DefaultCondition
// when unset.
func (t *TaskConfig) EffectiveCondition() json.RawMessage {
	if len(t.Condition) == 0 {
		return DefaultCondition
	}
	return t.Condition
}
