// Package message implements the engine's message model: the mutable
// context a workflow runs against, its cached evaluation view, and the
// audit/error state accumulated while processing it (spec.md §3, §4.2).
package message

import (
	"encoding/json"
	"time"

	"github.com/flowforge/dataflow/engine/core"
)

const (
	keyData     = "data"
	keyMetadata = "metadata"
	keyTempData = "temp_data"
)

// Message is a mutable context plus an immutable payload, travelling
// through the engine under the exclusive ownership of a single
// execution.
type Message struct {
	ID         core.ID
	Payload    any
	Context    map[string]any
	AuditTrail []AuditRecord
	Errors     []ErrorRecord

	view      map[string]any
	viewValid bool
}

// New constructs a Message from a raw payload with an empty context.
func New(payload any) (*Message, error) {
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:      id,
		Payload: payload,
		Context: map[string]any{
			keyData:     map[string]any{},
			keyMetadata: map[string]any{},
			keyTempData: map[string]any{},
		},
	}, nil
}

// wireMessage is the JSON wire shape from spec.md §6.
type wireMessage struct {
	ID         string         `json:"id"`
	Payload    any            `json:"payload"`
	Context    map[string]any `json:"context"`
	AuditTrail []AuditRecord  `json:"audit_trail"`
	Errors     []ErrorRecord  `json:"errors"`
}

// FromJSON deserializes a full Message, including its audit trail and
// error list, from the wire shape in spec.md §6.
func FromJSON(data []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	ctx := w.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	for _, key := range []string{keyData, keyMetadata, keyTempData} {
		if _, ok := ctx[key]; !ok {
			ctx[key] = map[string]any{}
		}
	}
	return &Message{
		ID:         core.ID(w.ID),
		Payload:    w.Payload,
		Context:    ctx,
		AuditTrail: w.AuditTrail,
		Errors:     w.Errors,
	}, nil
}

// MarshalJSON serializes the Message to the spec.md §6 wire shape.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		ID:         m.ID.String(),
		Payload:    m.Payload,
		Context:    m.Context,
		AuditTrail: m.AuditTrail,
		Errors:     m.Errors,
	})
}

// UnmarshalJSON restores a Message from the spec.md §6 wire shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	restored, err := FromJSON(data)
	if err != nil {
		return err
	}
	*m = *restored
	return nil
}

// ContextView returns the cached, shared evaluation view of the context
// ({data, metadata, temp_data}), rebuilding it if it was invalidated by a
// mutation since the last call. Two calls with no intervening mutation
// return the identical map value.
func (m *Message) ContextView() map[string]any {
	if m.viewValid {
		return m.view
	}
	m.view = map[string]any{
		keyData:     m.subtree(keyData),
		keyMetadata: m.subtree(keyMetadata),
		keyTempData: m.subtree(keyTempData),
	}
	m.viewValid = true
	return m.view
}

// InvalidateView clears the cached evaluation view. Every write path in
// the kernel calls this; custom handlers that mutate Context directly
// must do the same before returning (see the Handler contract in
// spec.md §4.5).
func (m *Message) InvalidateView() {
	m.viewValid = false
	m.view = nil
}

func (m *Message) subtree(key string) map[string]any {
	if m.Context == nil {
		return map[string]any{}
	}
	if sub, ok := m.Context[key].(map[string]any); ok {
		return sub
	}
	return map[string]any{}
}

// Data returns the data subtree, creating it if absent.
func (m *Message) Data() map[string]any { return m.ensureSubtree(keyData) }

// Metadata returns the metadata subtree, creating it if absent.
func (m *Message) Metadata() map[string]any { return m.ensureSubtree(keyMetadata) }

// TempData returns the temp_data subtree, creating it if absent.
func (m *Message) TempData() map[string]any { return m.ensureSubtree(keyTempData) }

func (m *Message) ensureSubtree(key string) map[string]any {
	if m.Context == nil {
		m.Context = map[string]any{}
	}
	sub, ok := m.Context[key].(map[string]any)
	if !ok {
		sub = map[string]any{}
		m.Context[key] = sub
	}
	return sub
}

// AppendError appends a structured error record to the message's error
// list. A nil Timestamp is stamped with the current time.
func (m *Message) AppendError(e ErrorRecord) {
	if e.Timestamp == nil {
		now := time.Now().UTC()
		e.Timestamp = &now
	}
	m.Errors = append(m.Errors, e)
}

// AppendAudit appends an audit record for an executed task. Skipped
// tasks never call this (spec.md §8, "skip purity"). A zero Timestamp
// is stamped with the current time so callers need not set it.
func (m *Message) AppendAudit(a AuditRecord) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	m.AuditTrail = append(m.AuditTrail, a)
}

// AuditRecord is one per-task entry in a message's audit trail.
type AuditRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	TaskID     string    `json:"task_id"`
	Status     int       `json:"status"`
	Changes    []Change  `json:"changes"`
}

// Change records a single field-level mutation made by a task.
type Change struct {
	Path     string `json:"path"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// ErrorCode is the closed taxonomy tag carried by an ErrorRecord
// (spec.md §3, mirrored from engine/kerrors.Code).
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeWorkflow         ErrorCode = "WORKFLOW_ERROR"
	CodeTask             ErrorCode = "TASK_ERROR"
	CodeFunctionNotFound ErrorCode = "FUNCTION_NOT_FOUND"
	CodeFunctionError    ErrorCode = "FUNCTION_ERROR"
	CodeLogic            ErrorCode = "LOGIC_ERROR"
	CodeHTTP             ErrorCode = "HTTP_ERROR"
	CodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	CodeIO               ErrorCode = "IO_ERROR"
	CodeDeserialization  ErrorCode = "DESERIALIZATION_ERROR"
	CodeUnknown          ErrorCode = "UNKNOWN_ERROR"
)

// ErrorRecord is a structured problem accumulated while processing a
// message (spec.md §3).
type ErrorRecord struct {
	Code           ErrorCode  `json:"code"`
	Message        string     `json:"message"`
	Path           string     `json:"path,omitempty"`
	WorkflowID     string     `json:"workflow_id,omitempty"`
	TaskID         string     `json:"task_id,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	RetryAttempted *bool      `json:"retry_attempted,omitempty"`
	RetryCount     *int       `json:"retry_count,omitempty"`
}
