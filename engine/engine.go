// Package engine is the engine facade (spec.md §4.7): it owns the
// compiled workflow set and handler registry, and exposes the two
// suspendable entry points a caller submits messages to.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/flowforge/dataflow/engine/core"
	"github.com/flowforge/dataflow/engine/exec"
	"github.com/flowforge/dataflow/engine/kerrors"
	"github.com/flowforge/dataflow/engine/logic"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/reload"
	"github.com/flowforge/dataflow/engine/runner"
	"github.com/flowforge/dataflow/engine/trace"
	"github.com/flowforge/dataflow/engine/workflow"
	"github.com/flowforge/dataflow/pkg/logger"
)

// Engine owns a compiled, ordered workflow set and a handler registry,
// both immutable after construction unless WithReload is in effect
// (spec.md §4.7, §5: "the engine and its expression cache and handler
// registry are shared read-only after construction").
type Engine struct {
	evaluator logic.Evaluator
	handlers  exec.Registry
	log       logger.Logger

	state   atomic.Pointer[state]
	watcher *reload.Watcher
}

// state is the engine's compiled snapshot: the ordered workflow list a
// Runner dispatches against, the expression cache it reads from, and
// the id set surfaced via WorkflowIDs. Swapped atomically by Reload so
// in-flight Process calls keep running against the snapshot they
// started with (spec.md §5, SPEC_FULL.md §5).
type state struct {
	ids    []string
	runner *runner.Runner
}

// Option configures an Engine at construction time.
type Option func(*options)

type options struct {
	evaluator     logic.Evaluator
	log           logger.Logger
	reloadFs      afero.Fs
	reloadDir     string
	reloadDebounc time.Duration
}

// WithEvaluator overrides the JSONLogic evaluator (default:
// logic.NewJSONLogicEvaluator()).
func WithEvaluator(e logic.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

// WithLogger attaches a logger used for compilation warnings and
// reload activity.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithReload enables hot-reload of the workflow directory dir
// (SPEC_FULL.md §4.8). Change events come from fsnotify on the operating
// system path dir; the files are re-read through afs. An Engine constructed without this option
// never touches the filesystem again after New.
func WithReload(afs afero.Fs, dir string, debounce time.Duration) Option {
	return func(o *options) {
		o.reloadFs = afs
		o.reloadDir = dir
		o.reloadDebounc = debounce
	}
}

// New compiles configs and constructs an Engine ready to process
// messages (spec.md §4.7). Workflows that fail compilation are logged
// and excluded; a compile failure in one workflow never rejects another
// (spec.md §4.3).
func New(ctx context.Context, configs []*workflow.Config, handlers exec.Registry, opts ...Option) (*Engine, error) {
	o := &options{evaluator: logic.NewJSONLogicEvaluator(), log: logger.FromContext(ctx)}
	for _, opt := range opts {
		opt(o)
	}
	if handlers == nil {
		handlers = exec.Registry{}
	}

	e := &Engine{evaluator: o.evaluator, handlers: handlers, log: o.log}

	st, err := e.compile(configs)
	if err != nil {
		return nil, err
	}
	e.state.Store(st)

	if o.reloadDir != "" {
		if err := e.enableReload(ctx, o.reloadFs, o.reloadDir, o.reloadDebounc); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// compile runs the logic compiler over configs, orders survivors by
// declared priority with a stable tie-break on declaration order
// (spec.md §4.7, "Workflow ordering at runtime"), and builds the task
// dispatcher + runner bound to the resulting cache.
func (e *Engine) compile(configs []*workflow.Config) (*state, error) {
	compiler := logic.NewCompiler(e.evaluator)
	result := compiler.Compile(configs)
	for _, rejection := range result.Rejected {
		e.log.Warn("workflow rejected during compilation", "workflow_id", rejection.WorkflowID, "error", rejection.Err)
	}

	ordered := make([]*workflow.Config, 0, len(configs))
	for _, cfg := range configs {
		if _, ok := result.Workflows[cfg.ID]; ok {
			ordered = append(ordered, cfg)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	ids := make([]string, 0, len(ordered))
	for _, cfg := range ordered {
		ids = append(ids, cfg.ID)
	}

	internal := exec.NewInternal(e.evaluator, result.Cache)
	builtin := exec.NewBuiltin()
	task := exec.NewTask(internal, builtin, e.handlers)
	r := runner.New(ordered, e.evaluator, result.Cache, task, e.log)

	return &state{ids: ids, runner: r}, nil
}

// Process runs every compiled workflow against msg, mutating it in
// place (spec.md §4.7, "process(message)"). It is re-entrant across
// concurrent messages (spec.md §5).
func (e *Engine) Process(ctx context.Context, msg *message.Message) error {
	return e.state.Load().runner.Process(ctx, msg)
}

// ProcessWithTrace runs every compiled workflow against msg and
// additionally returns a step-by-step ExecutionTrace (spec.md §4.7,
// "process_with_trace(message) -> trace").
func (e *Engine) ProcessWithTrace(ctx context.Context, msg *message.Message) (*trace.Trace, error) {
	return e.state.Load().runner.ProcessWithTrace(ctx, msg)
}

// WorkflowCount reports how many workflows survived compilation.
func (e *Engine) WorkflowCount() int {
	return len(e.state.Load().ids)
}

// WorkflowIDs returns the ids of every compiled workflow, in the order
// they execute.
func (e *Engine) WorkflowIDs() []string {
	return append([]string(nil), e.state.Load().ids...)
}

// Close stops the reload watcher, if one is running. Safe to call on
// an Engine built without WithReload.
func (e *Engine) Close() error {
	if e.watcher == nil {
		return nil
	}
	return e.watcher.Close()
}

// enableReload wires a reload.Watcher over dir: on a settled change it
// reloads every workflow file, merges each onto the previously compiled
// config sharing its id (dario.cat/mergo, SPEC_FULL.md §4.8), recompiles,
// and atomically swaps e.state.
func (e *Engine) enableReload(ctx context.Context, afs afero.Fs, dir string, debounce time.Duration) error {
	if afs == nil {
		afs = afero.NewOsFs()
	}
	w, err := reload.New(dir, debounce, func(ctx context.Context) error {
		return e.reloadFromDir(afs, dir)
	}, e.log)
	if err != nil {
		return fmt.Errorf("failed to start workflow reload watcher: %w", err)
	}
	e.watcher = w
	go w.Run(ctx)
	return nil
}

func (e *Engine) reloadFromDir(afs afero.Fs, dir string) error {
	fresh, err := LoadWorkflowDir(afs, dir)
	if err != nil {
		return kerrors.Wrap(kerrors.CodeIO, err)
	}

	prevByID := e.previousByID()

	merged := make([]*workflow.Config, 0, len(fresh))
	for _, cfg := range fresh {
		if old, ok := prevByID[cfg.ID]; ok {
			clone, err := core.DeepCopy(old)
			if err != nil {
				return fmt.Errorf("failed to snapshot previous workflow %q for merge: %w", cfg.ID, err)
			}
			if err := core.MergeOverride(clone, cfg); err != nil {
				return fmt.Errorf("failed to merge reloaded workflow %q: %w", cfg.ID, err)
			}
			merged = append(merged, clone)
			continue
		}
		merged = append(merged, cfg)
	}

	st, err := e.compile(merged)
	if err != nil {
		return err
	}
	e.state.Store(st)
	e.log.Info("workflows reloaded", "count", len(merged))
	return nil
}

// previousByID reconstructs the currently active configs by id so a
// reload can merge onto them. The runner holds the compiled []*Config
// it dispatches against directly; we borrow that instead of keeping a
// second copy that could drift.
func (e *Engine) previousByID() map[string]*workflow.Config {
	cur := e.state.Load()
	out := make(map[string]*workflow.Config, len(cur.ids))
	for _, cfg := range cur.runner.Workflows() {
		out[cfg.ID] = cfg
	}
	return out
}
