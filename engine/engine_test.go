package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/dataflow/engine/exec"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/workflow"
)

func writeWorkflowFile(t *testing.T, afs afero.Fs, dir, name string, cfg *workflow.Config) {
	t.Helper()
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(afs, filepath.Join(dir, name), raw, 0o644))
}

func mapWorkflow(id string, priority int, path string, logic string) *workflow.Config {
	return &workflow.Config{
		ID: id, Name: id, Priority: priority,
		Tasks: []*workflow.TaskConfig{{
			ID: id + "-t1",
			Function: &workflow.FunctionConfig{Name: workflow.FunctionMap, Map: &workflow.MapConfig{
				Mappings: []*workflow.Mapping{{Path: path, Logic: json.RawMessage(logic)}},
			}},
		}},
	}
}

func TestEngineNew(t *testing.T) {
	t.Run("Should order compiled workflows by priority, stable on ties", func(t *testing.T) {
		configs := []*workflow.Config{
			mapWorkflow("b", 5, "data.order", `"b"`),
			mapWorkflow("a", 1, "data.order", `"a"`),
			mapWorkflow("c", 1, "data.order", `"c"`),
		}
		eng, err := New(context.Background(), configs, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, eng.WorkflowCount())
		assert.Equal(t, []string{"a", "c", "b"}, eng.WorkflowIDs())
	})

	t.Run("Should exclude a workflow that fails compilation without rejecting the others", func(t *testing.T) {
		broken := mapWorkflow("broken", 0, "data.x", `{not valid`)
		good := mapWorkflow("good", 0, "data.y", `"ok"`)
		eng, err := New(context.Background(), []*workflow.Config{broken, good}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"good"}, eng.WorkflowIDs())
	})
}

func TestEngineProcess(t *testing.T) {
	t.Run("Should mutate the message context through a compiled workflow", func(t *testing.T) {
		configs := []*workflow.Config{
			mapWorkflow("wf1", 0, "data.result", `{"var":"data.input"}`),
		}
		eng, err := New(context.Background(), configs, nil)
		require.NoError(t, err)

		msg, err := message.New(map[string]any{})
		require.NoError(t, err)
		msg.Data()["input"] = "hello"

		require.NoError(t, eng.Process(context.Background(), msg))
		assert.Equal(t, "hello", msg.Data()["result"])
		require.Len(t, msg.AuditTrail, 1)
	})

	t.Run("Should dispatch a custom handler registered at construction", func(t *testing.T) {
		called := false
		handlers := exec.Registry{"notify": exec.HandlerFunc(func(ctx context.Context, msg *message.Message, input map[string]any) (int, []message.Change, error) {
			called = true
			return 200, nil, nil
		})}
		configs := []*workflow.Config{{
			ID: "wf1", Name: "wf1",
			Tasks: []*workflow.TaskConfig{{
				ID:       "t1",
				Function: &workflow.FunctionConfig{Name: "notify", Custom: &workflow.CustomConfig{Name: "notify"}},
			}},
		}}
		eng, err := New(context.Background(), configs, handlers)
		require.NoError(t, err)

		msg, err := message.New(nil)
		require.NoError(t, err)
		require.NoError(t, eng.Process(context.Background(), msg))
		assert.True(t, called)
	})
}

func TestEngineProcessWithTrace(t *testing.T) {
	t.Run("Should return a trace whose executed steps count matches the audit trail", func(t *testing.T) {
		configs := []*workflow.Config{
			mapWorkflow("wf1", 0, "data.result", `"done"`),
		}
		eng, err := New(context.Background(), configs, nil)
		require.NoError(t, err)

		msg, err := message.New(nil)
		require.NoError(t, err)
		tr, err := eng.ProcessWithTrace(context.Background(), msg)
		require.NoError(t, err)

		executed := 0
		for _, step := range tr.Steps {
			if step.Result == "executed" {
				executed++
			}
		}
		assert.Equal(t, len(msg.AuditTrail), executed)
	})
}

func TestEngineClose(t *testing.T) {
	t.Run("Should be a no-op when no reload watcher was started", func(t *testing.T) {
		eng, err := New(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.NoError(t, eng.Close())
	})
}

func TestEngineReload(t *testing.T) {
	t.Run("Should pick up a newly written workflow file and process through it", func(t *testing.T) {
		dir := t.TempDir()
		afs := afero.NewOsFs()
		writeWorkflowFile(t, afs, dir, "wf1.json", mapWorkflow("wf1", 0, "data.result", `"first"`))

		configs, err := LoadWorkflowDir(afs, dir)
		require.NoError(t, err)
		eng, err := New(context.Background(), configs, nil, WithReload(afs, dir, 20*time.Millisecond))
		require.NoError(t, err)
		defer func() { _ = eng.Close() }()

		writeWorkflowFile(t, afs, dir, "wf1.json", mapWorkflow("wf1", 0, "data.result", `"second"`))

		require.Eventually(t, func() bool {
			msg, err := message.New(nil)
			require.NoError(t, err)
			require.NoError(t, eng.Process(context.Background(), msg))
			return msg.Data()["result"] == "second"
		}, time.Second, 10*time.Millisecond)
	})
}
