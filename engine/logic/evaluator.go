// Package logic is the boundary between the kernel and the JSONLogic
// evaluator (spec.md §1: "the JSONLogic evaluator itself... we specify
// only the contract the kernel requires"). It also owns the compiled
// expression cache (spec.md §4.3/§9, the "arena+index" model).
package logic

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonlogic "github.com/diegoholiveira/jsonlogic/v3"
)

// Evaluator is the contract the kernel requires of a JSONLogic engine:
// evaluate a compiled expression against a data view, and check that an
// expression is well-formed before it is cached.
type Evaluator interface {
	// Evaluate applies rule to data and returns the decoded result. A
	// non-boolean result is valid; callers coerce it with
	// valuepath.IsTruthy.
	Evaluate(rule json.RawMessage, data any) (any, error)

	// ValidateExpression reports whether rule is well-formed JSON
	// accepted by the evaluator, without evaluating it against message
	// data.
	ValidateExpression(rule json.RawMessage) error
}

// JSONLogicEvaluator adapts github.com/diegoholiveira/jsonlogic/v3 to
// the Evaluator contract.
type JSONLogicEvaluator struct{}

// NewJSONLogicEvaluator constructs the shipped Evaluator.
func NewJSONLogicEvaluator() *JSONLogicEvaluator {
	return &JSONLogicEvaluator{}
}

// Evaluate implements Evaluator.
func (e *JSONLogicEvaluator) Evaluate(rule json.RawMessage, data any) (any, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation data: %w", err)
	}

	var result bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(rule), bytes.NewReader(dataBytes), &result); err != nil {
		return nil, fmt.Errorf("failed to apply jsonlogic rule: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(result.Bytes(), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode jsonlogic result: %w", err)
	}
	return decoded, nil
}

// ValidateExpression implements Evaluator. jsonlogic/v3 has no separate
// parse step, so validation is a dry-run against an empty object — any
// malformed operator or shape surfaces the same way it would at
// evaluation time.
func (e *JSONLogicEvaluator) ValidateExpression(rule json.RawMessage) error {
	var result bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(rule), bytes.NewReader([]byte("{}")), &result); err != nil {
		return fmt.Errorf("invalid jsonlogic expression: %w", err)
	}
	return nil
}
