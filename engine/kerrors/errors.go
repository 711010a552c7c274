// Package kerrors defines the kernel's closed error taxonomy and the
// retryability predicate built on top of it (spec.md §7).
package kerrors

import (
	"errors"
	"fmt"
)

// Code is a finite tag drawn from the kernel's closed error taxonomy.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeWorkflow         Code = "WORKFLOW_ERROR"
	CodeTask             Code = "TASK_ERROR"
	CodeFunctionNotFound Code = "FUNCTION_NOT_FOUND"
	CodeFunctionError    Code = "FUNCTION_ERROR"
	CodeLogic            Code = "LOGIC_ERROR"
	CodeHTTP             Code = "HTTP_ERROR"
	CodeTimeout          Code = "TIMEOUT_ERROR"
	CodeIO               Code = "IO_ERROR"
	CodeDeserialization  Code = "DESERIALIZATION_ERROR"
	CodeUnknown          Code = "UNKNOWN_ERROR"
)

// Error is the kernel's structured error type: a closed taxonomy code, a
// human message, an optional HTTP status (meaningful only for CodeHTTP),
// and an optional wrapped cause used to derive FUNCTION_ERROR's
// retryability from whatever failed inside the handler.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	cause      error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error of the given code whose message and Unwrap both
// come from cause.
func Wrap(code Code, cause error) *Error {
	if cause == nil {
		return New(code, "")
	}
	return &Error{Code: code, Message: cause.Error(), cause: cause}
}

// HTTP creates a CodeHTTP error carrying the response status that
// produced it, which drives HTTP_ERROR's retryability.
func HTTP(status int, message string) *Error {
	return &Error{Code: CodeHTTP, Message: message, HTTPStatus: status}
}

// FunctionError wraps a custom handler's own failure as a FUNCTION_ERROR,
// inheriting retryability from cause.
func FunctionError(context string, cause error) *Error {
	e := &Error{Code: CodeFunctionError, cause: cause}
	if cause != nil {
		e.Message = fmt.Sprintf("%s: %s", context, cause.Error())
	} else {
		e.Message = context
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Retryable reports whether this error represents a transient
// infrastructure condition worth retrying (spec.md §7). The kernel never
// retries on its own; this predicate is exposed for a host layer to act
// on.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case CodeTimeout, CodeIO:
		return true
	case CodeHTTP:
		return e.HTTPStatus >= 500 || e.HTTPStatus == 408 || e.HTTPStatus == 429 || e.HTTPStatus == 0
	case CodeFunctionError:
		var inner *Error
		if errors.As(e.cause, &inner) {
			return inner.Retryable()
		}
		return false
	default:
		return false
	}
}

// Retryable reports whether err, if it is (or wraps) a *kerrors.Error, is
// retryable. Any other error type is treated as non-retryable.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// AsCode extracts the taxonomy code carried by err, defaulting to
// CodeUnknown for any error that isn't a *kerrors.Error.
func AsCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
