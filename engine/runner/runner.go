// Package runner implements the workflow and task execution loop
// (spec.md §4.6): condition evaluation, sequential dispatch, the task
// state machine, and audit/error/trace recording.
package runner

import (
	"context"
	"fmt"

	"github.com/flowforge/dataflow/engine/exec"
	"github.com/flowforge/dataflow/engine/kerrors"
	"github.com/flowforge/dataflow/engine/logic"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/trace"
	"github.com/flowforge/dataflow/engine/valuepath"
	"github.com/flowforge/dataflow/engine/workflow"
	"github.com/flowforge/dataflow/pkg/logger"
)

// Runner sequences a fixed, ordered set of compiled workflows against
// one message at a time (spec.md §4.6, §4.7: "workflow ordering at
// runtime is by declared priority").
type Runner struct {
	workflows []*workflow.Config
	evaluator logic.Evaluator
	cache     *logic.Cache
	task      *exec.Task
	log       logger.Logger
}

// New constructs a Runner. workflows must already be ordered the way
// the caller wants them evaluated (the engine facade sorts by priority
// with a stable tie-break before calling this). A nil log falls back to
// logger.NewLogger(nil).
func New(workflows []*workflow.Config, evaluator logic.Evaluator, cache *logic.Cache, task *exec.Task, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Runner{workflows: workflows, evaluator: evaluator, cache: cache, task: task, log: log}
}

// Workflows returns the compiled, ordered workflow set this Runner
// dispatches against. Used by the engine facade to merge a hot-reloaded
// config onto the one currently active (SPEC_FULL.md §4.8).
func (r *Runner) Workflows() []*workflow.Config {
	return r.workflows
}

// Process runs every workflow against msg, mutating it in place
// (spec.md §4.7, "process(message)").
func (r *Runner) Process(ctx context.Context, msg *message.Message) error {
	_, err := r.run(ctx, msg, nil)
	return err
}

// ProcessWithTrace runs every workflow against msg and additionally
// returns a step-by-step trace (spec.md §4.7,
// "process_with_trace(message) -> trace").
func (r *Runner) ProcessWithTrace(ctx context.Context, msg *message.Message) (*trace.Trace, error) {
	tr := &trace.Trace{}
	_, err := r.run(ctx, msg, tr)
	return tr, err
}

func (r *Runner) run(ctx context.Context, msg *message.Message, tr *trace.Trace) (*message.Message, error) {
	for _, wf := range r.workflows {
		ok, err := r.evaluateCondition(msg, wf.ConditionIndex, wf.EffectiveCondition())
		if err != nil {
			return msg, fmt.Errorf("workflow %q: %w", wf.ID, err)
		}
		if !ok {
			if tr != nil {
				tr.RecordSkipped(wf.ID, "")
			}
			continue
		}

		if err := r.runWorkflow(ctx, msg, wf, tr); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

func (r *Runner) runWorkflow(ctx context.Context, msg *message.Message, wf *workflow.Config, tr *trace.Trace) error {
	var workflowErr error

	for _, t := range wf.Tasks {
		conditionRaw := t.EffectiveCondition()
		var conditionOK bool
		var err error
		if logic.IsBareBoolean(conditionRaw) {
			conditionOK = string(conditionRaw) == "true"
		} else {
			conditionOK, err = r.evaluateCondition(msg, t.ConditionIndex, conditionRaw)
		}
		if err != nil {
			return fmt.Errorf("workflow %q task %q: %w", wf.ID, t.ID, err)
		}
		if !conditionOK {
			if tr != nil {
				tr.RecordSkipped(wf.ID, t.ID)
			}
			continue
		}

		status, changes, execErr := r.task.Dispatch(ctx, msg, wf.ID, t)
		if execErr != nil {
			msg.AppendAudit(message.AuditRecord{WorkflowID: wf.ID, TaskID: t.ID, Status: 500})
			msg.AppendError(message.ErrorRecord{Code: message.CodeTask, Message: execErr.Error(), WorkflowID: wf.ID, TaskID: t.ID})
			// spec.md §4.6 step (b): a task refuses to continue only if
			// neither its own nor its workflow's continue_on_error allows
			// it — either one is enough to move on to the next task.
			if !t.ContinueOnError && !wf.ContinueOnError {
				return fmt.Errorf("workflow %q task %q: %w", wf.ID, t.ID, execErr)
			}
			workflowErr = execErr
		} else if status >= 500 {
			msg.AppendAudit(message.AuditRecord{WorkflowID: wf.ID, TaskID: t.ID, Status: status, Changes: changes})
			msg.AppendError(message.ErrorRecord{Code: message.CodeTask, Message: fmt.Sprintf("task returned status %d", status), WorkflowID: wf.ID, TaskID: t.ID})
			if !t.ContinueOnError && !wf.ContinueOnError {
				return kerrors.Newf(kerrors.CodeTask, "workflow %q task %q returned status %d", wf.ID, t.ID, status)
			}
			workflowErr = kerrors.Newf(kerrors.CodeTask, "task %q returned status %d", t.ID, status)
		} else {
			if status >= 400 {
				r.log.Warn("task completed with client error status", "workflow_id", wf.ID, "task_id", t.ID, "status", status)
			}
			msg.AppendAudit(message.AuditRecord{WorkflowID: wf.ID, TaskID: t.ID, Status: status, Changes: changes})
			msg.Metadata()["progress"] = map[string]any{"workflow_id": wf.ID, "task_id": t.ID, "status_code": status}
			msg.InvalidateView()
		}

		if tr != nil {
			if err := tr.RecordExecuted(wf.ID, t.ID, msg); err != nil {
				return fmt.Errorf("workflow %q task %q: %w", wf.ID, t.ID, err)
			}
		}
	}

	if workflowErr != nil {
		if wf.ContinueOnError {
			msg.AppendError(message.ErrorRecord{Code: message.CodeWorkflow, Message: workflowErr.Error(), WorkflowID: wf.ID})
			return nil
		}
		return fmt.Errorf("workflow %q: %w", wf.ID, workflowErr)
	}
	return nil
}

func (r *Runner) evaluateCondition(msg *message.Message, index *int, raw []byte) (bool, error) {
	var expr []byte = raw
	if index != nil {
		if compiled, ok := r.cache.Get(*index); ok {
			expr = compiled
		}
	}
	result, err := r.evaluator.Evaluate(expr, msg.ContextView())
	if err != nil {
		return false, err
	}
	return valuepath.IsTruthy(result), nil
}
