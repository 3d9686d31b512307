package workflow

import (
	"errors"
	"fmt"

	"github.com/roach88/vox/internal/ir"
)

// ErrorCode categorizes workflow errors.
type ErrorCode string

const (
	// ErrCodeUnknownContext indicates a context type outside the enumeration.
	ErrCodeUnknownContext ErrorCode = "UNKNOWN_CONTEXT"

	// ErrCodeInvalidTransition indicates an edge missing from the
	// transition table under strict mode.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeNotRecovering indicates a recovery action outside error recovery.
	ErrCodeNotRecovering ErrorCode = "NOT_RECOVERING"

	// ErrCodeUnknownAction indicates a recovery action other than
	// retry, abort or fallback.
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// ErrCodeInvalidVariable indicates an empty name or nil value.
	ErrCodeInvalidVariable ErrorCode = "INVALID_VARIABLE"

	// ErrCodeVariableNotFound indicates removal of a variable that is not set.
	ErrCodeVariableNotFound ErrorCode = "VARIABLE_NOT_FOUND"

	// ErrCodeInvalidState indicates a snapshot that cannot be imported.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeClosed indicates use of a closed Manager.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error is returned by every rejected Manager call. A rejected call
// leaves the Manager's state unchanged.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// From and To are set for transition errors.
	From ir.ContextType
	To   ir.ContextType
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("%s: %s (%s -> %s)", e.Code, e.Message, e.From, e.To)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidTransition reports whether err is a strict-mode rejection.
// Uses errors.As to handle wrapped errors.
func IsInvalidTransition(err error) bool {
	return hasCode(err, ErrCodeInvalidTransition)
}

// IsUnknownContext reports whether err names an unknown context type.
// Uses errors.As to handle wrapped errors.
func IsUnknownContext(err error) bool {
	return hasCode(err, ErrCodeUnknownContext)
}

// CodeOf returns the code of a workflow error, or "" for any other error.
func CodeOf(err error) ErrorCode {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func newTransitionError(code ErrorCode, from, to ir.ContextType, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), From: from, To: to}
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var errClosed = newError(ErrCodeClosed, "manager is closed")
