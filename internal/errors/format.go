package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Joined errors (several invalid patterns at once) are listed one per line.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var sb strings.Builder
		for _, e := range joined.Unwrap() {
			sb.WriteString(FormatForCLI(e))
		}
		return sb.String()
	}

	e, ok := err.(*Error)
	if !ok {
		var inner *Error
		if stderrors.As(err, &inner) {
			e = inner
		} else {
			e = Wrap(ErrCodeInternal, err)
		}
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))
	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", e.Cause.Error()))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", e.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", e.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption and --format json output.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	// A joined error is reported by its first structured member.
	var e *Error
	if !stderrors.As(err, &e) {
		e = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       e.Code,
		Message:    e.Message,
		Category:   string(e.Category),
		Severity:   string(e.Severity),
		Details:    e.Details,
		Suggestion: e.Suggestion,
	}

	if e.Cause != nil {
		je.Cause = e.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": e.Code,
		"message":    e.Message,
		"category":   string(e.Category),
		"severity":   string(e.Severity),
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	if e.Suggestion != "" {
		result["suggestion"] = e.Suggestion
	}

	for k, v := range e.Details {
		result["detail_"+k] = v
	}

	return result
}
