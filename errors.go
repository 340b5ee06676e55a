package esdmd

import (
	"fmt"
)

// Error is a structured esdmd error with enough context to log and
// classify without string-matching. The shape is carried over from the
// teacher's device-operation error type, adapted from per-device/per-queue
// context to per-connection/per-method context.
type Error struct {
	Op     string // operation that failed, e.g. "accept", "drop-privileges"
	Method uint32 // method_index, if applicable (0 and unset are ambiguous; Method is only meaningful when MethodSet)
	MethodSet bool
	Code   ErrorCode
	Inner  error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.MethodSet {
		msg = fmt.Sprintf("%s (method=%d)", msg, e.Method)
	}
	if e.Inner != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Inner)
	}
	return "esdmd: " + msg
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode categorizes the failure kinds from spec §7.
type ErrorCode string

const (
	ErrCodeTransientIO     ErrorCode = "transient i/o"
	ErrCodeConnectionFatal ErrorCode = "connection fatal"
	ErrCodeProcessFatal    ErrorCode = "process fatal"
	ErrCodeSupervisor      ErrorCode = "supervisor cleanup"
)

// NewError builds an *Error for the given operation/code, wrapping inner.
func NewError(op string, code ErrorCode, inner error) *Error {
	return &Error{Op: op, Code: code, Inner: inner}
}

// NewMethodError builds an *Error carrying a method_index.
func NewMethodError(op string, method uint32, code ErrorCode, inner error) *Error {
	return &Error{Op: op, Method: method, MethodSet: true, Code: code, Inner: inner}
}
