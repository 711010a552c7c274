package exec

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/pretty"

	"github.com/flowforge/dataflow/engine/message"
	"github.com/flowforge/dataflow/engine/valuepath"
	"github.com/flowforge/dataflow/engine/workflow"
)

// Builtin implements the parse_json/parse_xml/publish_json/publish_xml
// functions (spec.md §4.4, §6): read an encoded string out of the
// message, decode it, and write the result at target — or the inverse.
type Builtin struct{}

// NewBuiltin constructs a Builtin executor.
func NewBuiltin() *Builtin {
	return &Builtin{}
}

// sourceValue reads cfg.Source, honoring "payload" as a reference to
// the message's immutable input alongside the usual data/metadata/
// temp_data subtrees (spec.md §4.4).
func sourceValue(msg *message.Message, source string) (any, bool) {
	if source == "payload" {
		return msg.Payload, true
	}
	return valuepath.Get(msg.Context, resolvePath(source))
}

// ParseJSON implements the parse_json function.
func (b *Builtin) ParseJSON(msg *message.Message, cfg *workflow.ParseConfig) (int, []message.Change, error) {
	return b.parse(msg, cfg, func(raw string) (any, error) {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
		return decoded, nil
	})
}

// ParseXML implements the parse_xml function.
func (b *Builtin) ParseXML(msg *message.Message, cfg *workflow.ParseConfig) (int, []message.Change, error) {
	return b.parse(msg, cfg, func(raw string) (any, error) {
		decoded, err := decodeXML([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}
		return decoded, nil
	})
}

func (b *Builtin) parse(msg *message.Message, cfg *workflow.ParseConfig, decode func(string) (any, error)) (int, []message.Change, error) {
	raw, ok := sourceValue(msg, cfg.Source)
	if !ok {
		return 0, nil, fmt.Errorf("source %q not found", cfg.Source)
	}
	text, ok := raw.(string)
	if !ok {
		return 0, nil, fmt.Errorf("source %q is not a string", cfg.Source)
	}

	decoded, err := decode(text)
	if err != nil {
		return 0, nil, err
	}

	full := resolvePath(cfg.Target)
	var target any = msg.Context
	old := valuepath.Set(&target, full, decoded)
	msg.InvalidateView()

	return 200, []message.Change{{Path: cfg.Target, OldValue: old, NewValue: decoded}}, nil
}

// PublishJSON implements the publish_json function.
func (b *Builtin) PublishJSON(msg *message.Message, cfg *workflow.PublishConfig) (int, []message.Change, error) {
	return b.publish(msg, cfg, func(value any) (string, error) {
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to publish json: %w", err)
		}
		if cfg.Pretty {
			raw = pretty.Pretty(raw)
		}
		return string(raw), nil
	})
}

// PublishXML implements the publish_xml function.
func (b *Builtin) PublishXML(msg *message.Message, cfg *workflow.PublishConfig) (int, []message.Change, error) {
	return b.publish(msg, cfg, func(value any) (string, error) {
		raw, err := encodeXML(value, cfg.RootElement)
		if err != nil {
			return "", fmt.Errorf("failed to publish xml: %w", err)
		}
		return string(raw), nil
	})
}

func (b *Builtin) publish(msg *message.Message, cfg *workflow.PublishConfig, encode func(any) (string, error)) (int, []message.Change, error) {
	value, ok := sourceValue(msg, cfg.Source)
	if !ok {
		return 0, nil, fmt.Errorf("source %q not found", cfg.Source)
	}

	text, err := encode(value)
	if err != nil {
		return 0, nil, err
	}

	full := resolvePath(cfg.Target)
	var target any = msg.Context
	old := valuepath.Set(&target, full, text)
	msg.InvalidateView()

	return 200, []message.Change{{Path: cfg.Target, OldValue: old, NewValue: text}}, nil
}
