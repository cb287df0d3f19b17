// Package errors provides structured error handling for logfind.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (directories, files)
//   - 4XX: Validation errors (patterns, CLI input)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and directory I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the whole invocation must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a single item was skipped and the search continued.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeNotFound       = "ERR_201_NOT_FOUND"
	ErrCodePermission     = "ERR_202_PERMISSION"
	ErrCodeFileUnreadable = "ERR_203_FILE_UNREADABLE"
	ErrCodeSymlinkCycle   = "ERR_204_SYMLINK_CYCLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPattern = "ERR_402_INVALID_PATTERN"

	// Internal errors (500-599)
	ErrCodeInternal  = "ERR_501_INTERNAL"
	ErrCodeCancelled = "ERR_502_CANCELLED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Per-item IO failures are recoverable: the item is dropped from results.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodePermission, ErrCodeFileUnreadable, ErrCodeSymlinkCycle:
		return SeverityWarning
	case ErrCodeInvalidPattern, ErrCodeNotFound, ErrCodeConfigNotFound, ErrCodeConfigInvalid:
		return SeverityFatal
	default:
		return SeverityError
	}
}
