package exec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/flowforge/dataflow/engine/core"
	"github.com/flowforge/dataflow/engine/logic"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/valuepath"
	"github.com/flowforge/dataflow/engine/workflow"
)

// Internal evaluates compiled or inline JSONLogic against a message
// view and executes the map/validation built-in functions (spec.md
// §4.4). It never talks to the custom handler registry.
type Internal struct {
	evaluator logic.Evaluator
	cache     *logic.Cache
}

// NewInternal constructs an Internal bound to evaluator and cache.
func NewInternal(evaluator logic.Evaluator, cache *logic.Cache) *Internal {
	return &Internal{evaluator: evaluator, cache: cache}
}

// resolveExpression evaluates a mapping/rule's logic: the cached form
// when logicIndex is set, the literal value when logic is a scalar, or
// an inline evaluation otherwise (spec.md §4.4 step 1).
func (in *Internal) resolveExpression(logicIndex *int, raw json.RawMessage, view any) (any, error) {
	if logicIndex != nil {
		compiled, ok := in.cache.Get(*logicIndex)
		if !ok {
			compiled = raw
		}
		return in.evaluator.Evaluate(compiled, view)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var literal any
	if err := json.Unmarshal(raw, &literal); err != nil {
		return nil, err
	}
	switch literal.(type) {
	case map[string]any, []any:
		return in.evaluator.Evaluate(raw, view)
	default:
		return literal, nil
	}
}

// Map executes a "map" function: each mapping is computed against a
// single view snapshotted once at task start — later mappings in the
// same batch do not observe earlier mappings' writes — and writes are
// applied to the live context in declared order (spec.md §4.4, "Map
// execution"; spec.md §8, "Map idempotence").
func (in *Internal) Map(msg *message.Message, cfg *workflow.MapConfig) (int, []message.Change, error) {
	view, err := core.DeepCopy(msg.ContextView())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to snapshot context view: %w", err)
	}
	changes := make([]message.Change, 0, len(cfg.Mappings))

	var target any = msg.Context
	for _, mapping := range cfg.Mappings {
		value, err := in.resolveExpression(mapping.LogicIndex, mapping.Logic, view)
		if err != nil {
			return 0, nil, err
		}
		if value == nil {
			continue
		}
		full := resolvePath(mapping.Path)
		old := valuepath.Set(&target, full, value)
		if reflect.DeepEqual(old, value) {
			continue
		}
		changes = append(changes, message.Change{Path: mapping.Path, OldValue: old, NewValue: value})
	}
	msg.InvalidateView()
	return 200, changes, nil
}

// Validation executes a "validation"/"validate" function: every rule
// is checked against the subtree its path addresses, failures are
// recorded as structured errors and pushed onto
// temp_data.validation_errors (spec.md §4.4, "Validation execution").
func (in *Internal) Validation(msg *message.Message, workflowID, taskID string, cfg *workflow.ValidationConfig) (int, []message.Change, error) {
	failed := false

	for _, rule := range cfg.Rules {
		subtree := subtreeOf(rule.Path)
		view := map[string]any{subtree: msg.ContextView()[subtree]}

		result, err := in.resolveExpression(rule.LogicIndex, rule.Logic, view)
		ok := err == nil && valuepath.IsTruthy(result)
		if ok {
			continue
		}

		failed = true
		msg.AppendError(message.ErrorRecord{
			Code:       message.CodeValidation,
			Message:    rule.Message,
			Path:       rule.Path,
			WorkflowID: workflowID,
			TaskID:     taskID,
		})
		errs, _ := msg.TempData()["validation_errors"].([]any)
		msg.TempData()["validation_errors"] = append(errs, rule.Message)
	}

	if failed {
		msg.InvalidateView()
		return 400, nil, nil
	}
	return 200, nil, nil
}
