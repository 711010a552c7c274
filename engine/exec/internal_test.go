package exec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/dataflow/engine/logic"
	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/workflow"
)

func newCompiledInternal(t *testing.T, mappings []*workflow.Mapping) (*Internal, *workflow.MapConfig) {
	t.Helper()
	evaluator := logic.NewJSONLogicEvaluator()
	cache := logic.NewCache()
	for _, m := range mappings {
		if len(m.Logic) == 0 {
			continue
		}
		var literal any
		require.NoError(t, json.Unmarshal(m.Logic, &literal))
		switch literal.(type) {
		case map[string]any, []any:
			idx := cache.Add(m.Logic)
			m.LogicIndex = &idx
		}
	}
	return NewInternal(evaluator, cache), &workflow.MapConfig{Mappings: mappings}
}

func TestInternalMap(t *testing.T) {
	t.Run("Should compute and write a mapping from data", func(t *testing.T) {
		in, cfg := newCompiledInternal(t, []*workflow.Mapping{
			{Path: "data.result", Logic: json.RawMessage(`{"var": "data.input"}`)},
		})
		msg, err := message.New(nil)
		require.NoError(t, err)
		msg.Data()["input"] = "hello"

		status, changes, err := in.Map(msg, cfg)
		require.NoError(t, err)
		assert.Equal(t, 200, status)
		require.Len(t, changes, 1)
		assert.Equal(t, "hello", msg.Data()["result"])
	})

	t.Run("Should skip the write when the computed value is nil", func(t *testing.T) {
		in, cfg := newCompiledInternal(t, []*workflow.Mapping{
			{Path: "data.result", Logic: json.RawMessage(`{"var": "data.missing"}`)},
		})
		msg, err := message.New(nil)
		require.NoError(t, err)

		status, changes, err := in.Map(msg, cfg)
		require.NoError(t, err)
		assert.Equal(t, 200, status)
		assert.Empty(t, changes)
		assert.NotContains(t, msg.Data(), "result")
	})

	t.Run("Should be idempotent when every mapping is a literal", func(t *testing.T) {
		in, cfg := newCompiledInternal(t, []*workflow.Mapping{
			{Path: "data.flag", Logic: json.RawMessage(`true`)},
		})
		msg, err := message.New(nil)
		require.NoError(t, err)

		_, first, err := in.Map(msg, cfg)
		require.NoError(t, err)
		_, second, err := in.Map(msg, cfg)
		require.NoError(t, err)

		assert.Len(t, first, 1)
		assert.Empty(t, second)
		assert.Equal(t, true, msg.Data()["flag"])
	})

	t.Run("Should audit both writes to a duplicate path but keep only the last", func(t *testing.T) {
		in, cfg := newCompiledInternal(t, []*workflow.Mapping{
			{Path: "data.result", Logic: json.RawMessage(`"first"`)},
			{Path: "data.result", Logic: json.RawMessage(`"second"`)},
		})
		msg, err := message.New(nil)
		require.NoError(t, err)

		status, changes, err := in.Map(msg, cfg)
		require.NoError(t, err)
		assert.Equal(t, 200, status)
		require.Len(t, changes, 2)
		assert.Equal(t, "first", changes[0].NewValue)
		assert.Equal(t, "second", changes[1].NewValue)
		assert.Equal(t, "second", msg.Data()["result"])
	})

	t.Run("Should evaluate all mappings against the view as of task start", func(t *testing.T) {
		in, cfg := newCompiledInternal(t, []*workflow.Mapping{
			{Path: "data.a", Logic: json.RawMessage(`{"var": "data.input"}`)},
			{Path: "data.b", Logic: json.RawMessage(`{"var": "data.a"}`)},
		})
		msg, err := message.New(nil)
		require.NoError(t, err)
		msg.Data()["input"] = "x"

		_, _, err = in.Map(msg, cfg)
		require.NoError(t, err)

		assert.Equal(t, "x", msg.Data()["a"])
		assert.Nil(t, msg.Data()["b"])
	})
}

func TestInternalValidation(t *testing.T) {
	t.Run("Should fail and record errors when a rule is false", func(t *testing.T) {
		evaluator := logic.NewJSONLogicEvaluator()
		cache := logic.NewCache()
		logicRaw := json.RawMessage(`{"!!": {"var": "data.email"}}`)
		idx := cache.Add(logicRaw)
		in := NewInternal(evaluator, cache)

		cfg := &workflow.ValidationConfig{Rules: []*workflow.Rule{
			{Path: "data", Logic: logicRaw, Message: "email required", LogicIndex: &idx},
		}}
		msg, err := message.New(nil)
		require.NoError(t, err)

		status, _, err := in.Validation(msg, "wf1", "t1", cfg)
		require.NoError(t, err)
		assert.Equal(t, 400, status)
		require.Len(t, msg.Errors, 1)
		assert.Equal(t, message.CodeValidation, msg.Errors[0].Code)
		assert.Equal(t, []any{"email required"}, msg.TempData()["validation_errors"])
	})

	t.Run("Should pass when the rule is true", func(t *testing.T) {
		evaluator := logic.NewJSONLogicEvaluator()
		cache := logic.NewCache()
		logicRaw := json.RawMessage(`{"!!": {"var": "data.email"}}`)
		idx := cache.Add(logicRaw)
		in := NewInternal(evaluator, cache)

		cfg := &workflow.ValidationConfig{Rules: []*workflow.Rule{
			{Path: "data", Logic: logicRaw, Message: "email required", LogicIndex: &idx},
		}}
		msg, err := message.New(nil)
		require.NoError(t, err)
		msg.Data()["email"] = "a@b.com"

		status, _, err := in.Validation(msg, "wf1", "t1", cfg)
		require.NoError(t, err)
		assert.Equal(t, 200, status)
		assert.Empty(t, msg.Errors)
	})
}
