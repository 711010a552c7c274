package logic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/dataflow/engine/workflow"
)

func validWorkflow(id string) *workflow.Config {
	return &workflow.Config{
		ID:        id,
		Name:      id,
		Condition: json.RawMessage(`{"==": [1, 1]}`),
		Tasks: []*workflow.TaskConfig{
			{
				ID: "t1",
				Function: &workflow.FunctionConfig{
					Name: workflow.FunctionMap,
					Map: &workflow.MapConfig{
						Mappings: []*workflow.Mapping{
							{Path: "data.result", Logic: json.RawMessage(`{"var": "data.input"}`)},
							{Path: "data.literal", Logic: json.RawMessage(`42`)},
						},
					},
				},
			},
		},
	}
}

func TestCompilerCompile(t *testing.T) {
	t.Run("Should compile a valid workflow and fill cache indices", func(t *testing.T) {
		c := NewCompiler(NewJSONLogicEvaluator())
		result := c.Compile([]*workflow.Config{validWorkflow("wf1")})

		require.Empty(t, result.Rejected)
		require.Contains(t, result.Workflows, "wf1")

		wf := result.Workflows["wf1"]
		require.NotNil(t, wf.ConditionIndex)

		mapping := wf.Tasks[0].Function.Map.Mappings[0]
		require.NotNil(t, mapping.LogicIndex)

		literal := wf.Tasks[0].Function.Map.Mappings[1]
		assert.Nil(t, literal.LogicIndex)
	})

	t.Run("Should leave a bare boolean task condition uncompiled", func(t *testing.T) {
		c := NewCompiler(NewJSONLogicEvaluator())
		wf := validWorkflow("wf1")
		wf.Tasks[0].Condition = json.RawMessage(`true`)

		result := c.Compile([]*workflow.Config{wf})
		require.Empty(t, result.Rejected)
		assert.Nil(t, result.Workflows["wf1"].Tasks[0].ConditionIndex)
	})

	t.Run("Should reject a workflow missing required fields without aborting others", func(t *testing.T) {
		c := NewCompiler(NewJSONLogicEvaluator())
		bad := &workflow.Config{ID: "bad"} // missing Name, Tasks
		good := validWorkflow("wf-good")

		result := c.Compile([]*workflow.Config{bad, good})

		require.Len(t, result.Rejected, 1)
		assert.Equal(t, "bad", result.Rejected[0].WorkflowID)
		assert.Contains(t, result.Workflows, "wf-good")
		assert.NotContains(t, result.Workflows, "bad")
	})

	t.Run("Should reject a workflow with a malformed condition", func(t *testing.T) {
		c := NewCompiler(NewJSONLogicEvaluator())
		wf := validWorkflow("wf1")
		wf.Condition = json.RawMessage(`{not valid`)

		result := c.Compile([]*workflow.Config{wf})
		require.Len(t, result.Rejected, 1)
	})

	t.Run("Should not compile custom function input", func(t *testing.T) {
		c := NewCompiler(NewJSONLogicEvaluator())
		wf := validWorkflow("wf1")
		wf.Tasks[0].Function = &workflow.FunctionConfig{
			Name:   workflow.FunctionCustom,
			Custom: &workflow.CustomConfig{Name: "my_handler", Input: map[string]any{"k": "v"}},
		}

		result := c.Compile([]*workflow.Config{wf})
		require.Empty(t, result.Rejected)
	})
}
