// Package errs defines the error taxonomy shared by the session, crawler and store layers.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	CodeConfig        Code = "CONFIG"
	CodeSession       Code = "SESSION"
	CodeUninitialized Code = "UNINITIALIZED"
	CodeNavigation    Code = "NAVIGATION"
	CodeTimeout       Code = "TIMEOUT"
	CodePersistence   Code = "PERSISTENCE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeValidation    Code = "VALIDATION"
)

// Sentinels for errors.Is checks. They match any Error carrying the same code.
var (
	ErrConfig        = &Error{Code: CodeConfig, Message: "configuration error"}
	ErrSession       = &Error{Code: CodeSession, Message: "session error"}
	ErrUninitialized = &Error{Code: CodeUninitialized, Message: "session not initialized"}
	ErrNavigation    = &Error{Code: CodeNavigation, Message: "navigation failed"}
	ErrTimeout       = &Error{Code: CodeTimeout, Message: "timed out"}
	ErrPersistence   = &Error{Code: CodePersistence, Message: "persistence error"}
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "invalid input"}

	ErrLoginRequired = &Error{Code: CodeSession, Message: "login required"}
	ErrClosed        = &Error{Code: CodeSession, Message: "session closed"}
)

// Error wraps an underlying failure with a code and context.
type Error struct {
	Code       Code
	Message    string
	Underlying error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches on code when target is an *Error, otherwise defers to the wrapped error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// New creates an Error.
func New(code Code, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]any),
	}
}

// Newf creates an Error with a formatted message and no underlying cause.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithDetail attaches a key/value for logging.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
