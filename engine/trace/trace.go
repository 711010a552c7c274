// Package trace implements the optional step-by-step execution trace
// (spec.md §4, item 5; §6, "Execution trace JSON").
package trace

import (
	"encoding/json"
	"fmt"

	"github.com/flowforge/dataflow/engine/message"
)

// Result is whether a step executed or was skipped by its condition.
type Result string

const (
	ResultExecuted Result = "executed"
	ResultSkipped  Result = "skipped"
)

// Step is one workflow- or task-level trace entry (spec.md §6).
type Step struct {
	WorkflowID      string           `json:"workflow_id"`
	TaskID          string           `json:"task_id,omitempty"`
	Result          Result           `json:"result"`
	Message         *message.Message `json:"message,omitempty"`
	MappingContexts []any            `json:"mapping_contexts,omitempty"`
}

// Trace is the full sequence of steps recorded for one message's
// processing.
type Trace struct {
	Steps []Step `json:"steps"`
}

// RecordSkipped appends a skipped step for workflowID (and optionally
// taskID, for a task-level skip).
func (t *Trace) RecordSkipped(workflowID, taskID string) {
	t.Steps = append(t.Steps, Step{WorkflowID: workflowID, TaskID: taskID, Result: ResultSkipped})
}

// RecordExecuted appends an executed step, snapshotting msg through its
// own wire encoding so the recorded copy is unaffected by later
// mutations (spec.md §4, item 5: "records every executed/skipped step
// with a message snapshot").
func (t *Trace) RecordExecuted(workflowID, taskID string, msg *message.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to snapshot message: %w", err)
	}
	snapshot, err := message.FromJSON(raw)
	if err != nil {
		return fmt.Errorf("failed to restore message snapshot: %w", err)
	}
	t.Steps = append(t.Steps, Step{WorkflowID: workflowID, TaskID: taskID, Result: ResultExecuted, Message: snapshot})
	return nil
}
