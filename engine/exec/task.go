package exec

import (
	"context"
	"fmt"

	"github.com/flowforge/dataflow/engine/kerrors"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/workflow"
)

// Handler is the contract custom functions implement (spec.md §4.5,
// §6): mutate message in place, returning the changes made, or an
// error. Handlers that mutate message.Context must invalidate its view
// before returning. Handlers may perform I/O and may therefore block or
// respect ctx cancellation.
type Handler interface {
	Execute(ctx context.Context, msg *message.Message, input map[string]any) (status int, changes []message.Change, err error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *message.Message, input map[string]any) (int, []message.Change, error)

func (f HandlerFunc) Execute(ctx context.Context, msg *message.Message, input map[string]any) (int, []message.Change, error) {
	return f(ctx, msg, input)
}

// Registry is an immutable-after-construction lookup of custom
// handlers by name, safe for concurrent reads (spec.md §5).
type Registry map[string]Handler

// Task dispatches one task's function to the internal executor, a
// built-in parse/publish transform, or a registered custom handler
// (spec.md §4.5).
type Task struct {
	internal *Internal
	builtin  *Builtin
	handlers Registry
}

// NewTask constructs a Task dispatcher.
func NewTask(internal *Internal, builtin *Builtin, handlers Registry) *Task {
	if handlers == nil {
		handlers = Registry{}
	}
	return &Task{internal: internal, builtin: builtin, handlers: handlers}
}

// Dispatch runs task.Function against msg, returning the result status
// and changes, or an error (spec.md §4.5 dispatch table).
func (t *Task) Dispatch(ctx context.Context, msg *message.Message, workflowID string, task *workflow.TaskConfig) (int, []message.Change, error) {
	fn := task.Function
	switch {
	case fn.Map != nil:
		return t.internal.Map(msg, fn.Map)
	case fn.Validation != nil:
		return t.internal.Validation(msg, workflowID, task.ID, fn.Validation)
	case fn.Parse != nil && fn.Name == workflow.FunctionParseJSON:
		return t.builtin.ParseJSON(msg, fn.Parse)
	case fn.Parse != nil && fn.Name == workflow.FunctionParseXML:
		return t.builtin.ParseXML(msg, fn.Parse)
	case fn.Publish != nil && fn.Name == workflow.FunctionPublishJSON:
		return t.builtin.PublishJSON(msg, fn.Publish)
	case fn.Publish != nil && fn.Name == workflow.FunctionPublishXML:
		return t.builtin.PublishXML(msg, fn.Publish)
	case fn.Custom != nil:
		handler, ok := t.handlers[fn.Custom.Name]
		if !ok {
			return 0, nil, kerrors.New(kerrors.CodeFunctionNotFound, fmt.Sprintf("no handler registered for %q", fn.Custom.Name))
		}
		return handler.Execute(ctx, msg, fn.Custom.Input)
	default:
		return 0, nil, kerrors.New(kerrors.CodeTask, "task has no recognized function")
	}
}
