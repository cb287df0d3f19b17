package errors

import (
	"fmt"
)

// Error is the structured error type for logfind.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_402_INVALID_PATTERN").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrConfigNotFound = &Error{Code: ErrCodeConfigNotFound}
	ErrConfigInvalid  = &Error{Code: ErrCodeConfigInvalid}
	ErrNotFound       = &Error{Code: ErrCodeNotFound}
	ErrPermission     = &Error{Code: ErrCodePermission}
	ErrFileUnreadable = &Error{Code: ErrCodeFileUnreadable}
	ErrSymlinkCycle   = &Error{Code: ErrCodeSymlinkCycle}
	ErrInvalidInput   = &Error{Code: ErrCodeInvalidInput}
	ErrInvalidPattern = &Error{Code: ErrCodeInvalidPattern}
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work against the package sentinels.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidPattern reports a regular expression that does not compile.
func InvalidPattern(pattern string, cause error) *Error {
	return New(ErrCodeInvalidPattern, fmt.Sprintf("invalid pattern %q", pattern), cause).
		WithDetail("pattern", pattern)
}

// NotFound reports a missing root directory.
func NotFound(path string, cause error) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("directory not found: %s", path), cause).
		WithDetail("path", path)
}

// PermissionDenied reports a directory the walk could not enter.
func PermissionDenied(path string, cause error) *Error {
	return New(ErrCodePermission, fmt.Sprintf("cannot read directory: %s", path), cause).
		WithDetail("path", path)
}

// FileUnreadable reports a candidate file that could not be opened or decoded.
func FileUnreadable(path string, cause error) *Error {
	return New(ErrCodeFileUnreadable, fmt.Sprintf("cannot read file: %s", path), cause).
		WithDetail("path", path)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current invocation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an Error.
// Returns empty string if not an Error.
func GetCode(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// GetCategory extracts the category from an Error.
// Returns empty string if not an Error.
func GetCategory(err error) Category {
	if e, ok := err.(*Error); ok {
		return e.Category
	}
	return ""
}
