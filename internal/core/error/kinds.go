package errx

import (
	"fmt"
)

const (
	// SchemaViolationMessage is shown when provider output fails validation.
	SchemaViolationMessage = "assistant returned an invalid response"
	// ProviderErrorMessage is shown when the completion call itself fails.
	ProviderErrorMessage = "completion provider failed"
)

// SchemaViolation reports untrusted data that does not match the expected
// shape. Path points at the offending field, e.g. "action.args[0].title".
type SchemaViolation struct {
	Path   string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Path == "" {
		return "schema violation: " + e.Reason
	}
	return fmt.Sprintf("schema violation at %s: %s", e.Path, e.Reason)
}

// Violation builds a SchemaViolation with a formatted reason.
func Violation(path, format string, args ...any) *SchemaViolation {
	return &SchemaViolation{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ProviderError reports a failed completion call (network, auth, quota, timeout).
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// LookupError reports a failed external metadata lookup.
type LookupError struct {
	Op    string
	Query string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Query, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }
