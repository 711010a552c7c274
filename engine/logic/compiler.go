package logic

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/flowforge/dataflow/engine/workflow"
)

// Rejection records why a workflow did not survive compilation
// (spec.md §4.3: "errors during compilation of a single workflow
// reject that workflow ... but must not abort others").
type Rejection struct {
	WorkflowID string
	Err        error
}

// Result is the output of Compile: the surviving workflows keyed by
// id, the shared expression cache they reference, and any rejections.
type Result struct {
	Workflows map[string]*workflow.Config
	Cache     *Cache
	Rejected  []Rejection
}

// Compiler validates workflow schemas, checks each JSONLogic expression
// with the evaluator, and appends it as raw JSON to a flat cache
// (spec.md §4.3).
type Compiler struct {
	evaluator Evaluator
	validate  *validator.Validate
}

// NewCompiler constructs a Compiler bound to evaluator, used to
// validate every compiled expression at construction time.
func NewCompiler(evaluator Evaluator) *Compiler {
	return &Compiler{evaluator: evaluator, validate: validator.New()}
}

// Compile validates and compiles every workflow in configs, skipping
// (and reporting) any that fail, and returns the survivors sharing one
// cache.
func (c *Compiler) Compile(configs []*workflow.Config) *Result {
	result := &Result{Workflows: map[string]*workflow.Config{}, Cache: NewCache()}
	for _, cfg := range configs {
		if err := c.compileOne(cfg, result.Cache); err != nil {
			result.Rejected = append(result.Rejected, Rejection{WorkflowID: cfg.ID, Err: err})
			continue
		}
		result.Workflows[cfg.ID] = cfg
	}
	return result
}

func (c *Compiler) compileOne(cfg *workflow.Config, cache *Cache) error {
	if err := c.validate.Struct(cfg); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	condition := cfg.EffectiveCondition()
	if err := c.evaluator.ValidateExpression(condition); err != nil {
		return fmt.Errorf("invalid workflow condition: %w", err)
	}
	index := cache.Add(condition)
	cfg.ConditionIndex = &index

	for _, task := range cfg.Tasks {
		if err := c.compileTask(task, cache); err != nil {
			return fmt.Errorf("task %q: %w", task.ID, err)
		}
	}
	return nil
}

func (c *Compiler) compileTask(task *workflow.TaskConfig, cache *Cache) error {
	condition := task.EffectiveCondition()
	if !IsBareBoolean(condition) {
		if err := c.evaluator.ValidateExpression(condition); err != nil {
			return fmt.Errorf("invalid task condition: %w", err)
		}
		index := cache.Add(condition)
		task.ConditionIndex = &index
	}

	fn := task.Function
	if fn == nil {
		return fmt.Errorf("missing function")
	}
	switch {
	case fn.Map != nil:
		for _, mapping := range fn.Map.Mappings {
			if err := c.compileExpression(mapping.Logic, &mapping.LogicIndex, cache); err != nil {
				return fmt.Errorf("mapping %q: %w", mapping.Path, err)
			}
		}
	case fn.Validation != nil:
		for _, rule := range fn.Validation.Rules {
			if err := c.compileExpression(rule.Logic, &rule.LogicIndex, cache); err != nil {
				return fmt.Errorf("rule %q: %w", rule.Path, err)
			}
		}
	case fn.Custom != nil:
		// Handler owns its input; nothing to compile.
	}
	return nil
}

// compileExpression compiles logic into cache and records its index in
// *slot, unless logic is a literal (not an object/array), which is left
// uncompiled and evaluated as itself (spec.md §4.3/§4.4).
func (c *Compiler) compileExpression(logic json.RawMessage, slot **int, cache *Cache) error {
	if len(logic) == 0 || !isCompilable(logic) {
		return nil
	}
	if err := c.evaluator.ValidateExpression(logic); err != nil {
		return err
	}
	index := cache.Add(logic)
	*slot = &index
	return nil
}
