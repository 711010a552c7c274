package workflow

import (
	"encoding/json"
	"fmt"
)

// FunctionName is the tag selecting a task's function variant
// (spec.md §6).
type FunctionName string

const (
	FunctionMap         FunctionName = "map"
	FunctionValidation  FunctionName = "validation"
	FunctionValidate    FunctionName = "validate"
	FunctionParseJSON   FunctionName = "parse_json"
	FunctionParseXML    FunctionName = "parse_xml"
	FunctionPublishJSON FunctionName = "publish_json"
	FunctionPublishXML  FunctionName = "publish_xml"
	FunctionCustom      FunctionName = "custom"
)

// FunctionConfig is the tagged-union task function configuration. Exactly
// one of the typed fields is populated, selected by Name; any name not
// recognized as a builtin is held as Custom, carrying the raw input
// (spec.md §6, "anything else passes through as custom{name, input}").
type FunctionConfig struct {
	Name       FunctionName
	Map        *MapConfig
	Validation *ValidationConfig
	Parse      *ParseConfig
	Publish    *PublishConfig
	Custom     *CustomConfig
}

// MapConfig is the input shape for the "map" builtin function.
type MapConfig struct {
	Mappings []*Mapping `json:"mappings"`
}

// Mapping computes a value and writes it at Path. LogicIndex is filled by
// the logic compiler when Logic is a compilable (object/array) JSONLogic
// expression; it is left nil for literal values.
type Mapping struct {
	Path       string          `json:"path"        validate:"required"`
	Logic      json.RawMessage `json:"logic"`
	LogicIndex *int            `json:"-"`
}

// ValidationConfig is the input shape for the "validation"/"validate"
// builtin function.
type ValidationConfig struct {
	Rules []*Rule `json:"rules"`
}

// Rule checks a JSONLogic predicate and records Message on failure.
type Rule struct {
	Path       string          `json:"path"        validate:"required"`
	Logic      json.RawMessage `json:"logic"`
	Message    string          `json:"message"      validate:"required"`
	LogicIndex *int            `json:"-"`
}

// ParseConfig is the input shape for "parse_json"/"parse_xml".
type ParseConfig struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// PublishConfig is the input shape for "publish_json"/"publish_xml".
type PublishConfig struct {
	Source      string `json:"source"                 validate:"required"`
	Target      string `json:"target"                 validate:"required"`
	Pretty      bool   `json:"pretty,omitempty"`
	RootElement string `json:"root_element,omitempty"`
}

// CustomConfig carries a non-builtin function's name and raw input,
// dispatched to a registered handler by Name.
type CustomConfig struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

type functionEnvelope struct {
	Name FunctionName `json:"name"`
}

// UnmarshalJSON parses the tagged-union shape from spec.md §6: the
// "name" field selects which typed sub-config the remaining fields are
// decoded into. Unrecognized names fall back to Custom, with the whole
// object (minus "name") captured as Input.
func (f *FunctionConfig) UnmarshalJSON(data []byte) error {
	var envelope functionEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode function envelope: %w", err)
	}
	f.Name = envelope.Name
	switch envelope.Name {
	case FunctionMap:
		f.Map = &MapConfig{}
		return json.Unmarshal(data, f.Map)
	case FunctionValidation, FunctionValidate:
		f.Validation = &ValidationConfig{}
		return json.Unmarshal(data, f.Validation)
	case FunctionParseJSON, FunctionParseXML:
		f.Parse = &ParseConfig{}
		return json.Unmarshal(data, f.Parse)
	case FunctionPublishJSON, FunctionPublishXML:
		f.Publish = &PublishConfig{}
		return json.Unmarshal(data, f.Publish)
	default:
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode custom function input: %w", err)
		}
		delete(raw, "name")
		f.Name = FunctionCustom
		f.Custom = &CustomConfig{Name: string(envelope.Name), Input: raw}
		return nil
	}
}

// MarshalJSON re-encodes the tagged union back to the spec.md §6 shape.
func (f *FunctionConfig) MarshalJSON() ([]byte, error) {
	switch {
	case f.Map != nil:
		return marshalWithName(f.Name, f.Map)
	case f.Validation != nil:
		return marshalWithName(f.Name, f.Validation)
	case f.Parse != nil:
		return marshalWithName(f.Name, f.Parse)
	case f.Publish != nil:
		return marshalWithName(f.Name, f.Publish)
	case f.Custom != nil:
		body := map[string]any{"name": f.Custom.Name}
		for k, v := range f.Custom.Input {
			body[k] = v
		}
		return json.Marshal(body)
	default:
		return json.Marshal(map[string]any{"name": f.Name})
	}
}

func marshalWithName(name FunctionName, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	merged["name"] = name
	return json.Marshal(merged)
}
