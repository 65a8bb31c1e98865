// Package domainerrors provides coded errors for the service's domain layer.
// Services return these; the transport layer maps codes to HTTP statuses.
// Stores return sentinel errors (pkg/platform/sentinel) and services wrap them
// into coded errors at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for propagation policy and transport mapping.
type Code string

const (
	// CodeBadRequest marks malformed external input (bad IDs, bad enums).
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks structurally valid input that fails domain rules.
	CodeValidation Code = "validation_error"
	// CodeUnauthorized marks absent or expired authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated caller lacking the capability or
	// company scope for the operation.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a lost write race (stale compare-and-swap).
	CodeConflict Code = "conflict"
	// CodeInvalidTransition marks a status change not legal from the current state.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeDependency marks an unreachable collaborator (store, broker).
	CodeDependency Code = "dependency_failure"
	// CodeInternal marks unexpected failures; details are never surfaced.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Compare with HasCode/Is rather than matching
// messages.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// Is is shorthand for HasCode, reading naturally at call sites:
// dErrors.Is(err, dErrors.CodeNotFound).
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Load extracts the coded error from a chain, if present.
func Load(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
