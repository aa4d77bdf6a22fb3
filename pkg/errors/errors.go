// Package errors provides structured error types for the segmented graph
// engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library and the CLI
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
//   - NOT_FOUND: a queried vertex name or id has no entry
//   - INVALID_INPUT: caller-supplied data failed validation
//   - BACKEND: reading or writing the store failed
//   - CORRUPTION: persisted or imported data is malformed
//   - PROGRAMMING: the caller broke an API contract (cycles, strip of a dirty graph)
//   - REMOTE: the remote protocol collaborator failed; callers may retry
//   - CONFLICT: imported data overlaps local data in an unsupported way
//   - LOCKED: another writer holds the store lock
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotFound, "vertex %s not found", name)
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // Handle missing vertex
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeBackend, origErr, "append segments log")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Storage errors
	ErrCodeBackend    Code = "BACKEND"
	ErrCodeCorruption Code = "CORRUPTION"
	ErrCodeLocked     Code = "LOCKED"

	// Contract and collaborator errors
	ErrCodeProgramming Code = "PROGRAMMING"
	ErrCodeRemote      Code = "REMOTE"
	ErrCodeConflict    Code = "CONFLICT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// NotFoundName reports a vertex name with no id.
func NotFoundName(name fmt.Stringer) *Error {
	return New(ErrCodeNotFound, "vertex %s not found", name)
}

// NotFoundID reports an id with no vertex.
func NotFoundID(id fmt.Stringer) *Error {
	return New(ErrCodeNotFound, "id %s not found", id)
}

// IsNotFound is shorthand for Is(err, ErrCodeNotFound).
func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}
