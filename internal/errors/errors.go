// Package errors provides the structured error type shared by the quest engine.
package errors

import stderrors "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"

	// Lifecycle errors
	CodeIllegalTransition  Code = "ILLEGAL_TRANSITION"
	CodeRequirementsNotMet Code = "REQUIREMENTS_NOT_MET"

	// Side-effect errors
	CodeRewardApplication Code = "REWARD_APPLICATION"

	// Input errors
	CodeInvalidEvent Code = "INVALID_EVENT"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeRateLimited  Code = "RATE_LIMITED"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Additional context (quest id, objective id, ...)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound           = New(CodeNotFound, "not found")
	ErrIllegalTransition  = New(CodeIllegalTransition, "illegal transition")
	ErrRequirementsNotMet = New(CodeRequirementsNotMet, "requirements not met")
	ErrRewardApplication  = New(CodeRewardApplication, "reward application failed")
)
