package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. Row-level validation failures are
// recovered locally; the rest propagate to the caller of the pipeline or
// harness, which decides retry policy.
var (
	// ErrUnavailable marks an unreachable embedding, vector-store, or
	// answering service. The enclosing batch call aborts and is safe to
	// retry as a whole.
	ErrUnavailable = errors.New("service unavailable")

	// ErrNotFound marks a query against a collection that does not exist.
	// Distinct from a collection that exists but has no matches.
	ErrNotFound = errors.New("collection not found")

	// ErrConsistency marks a broken programming contract, such as a
	// documents/ids length mismatch or an embedding count that differs
	// from its input count. Never retried.
	ErrConsistency = errors.New("consistency violation")
)

// ValidationError reports a malformed input row or record. It carries the
// identifying context so callers never surface a bare failure.
type ValidationError struct {
	Row     int
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: row %d: %s: %s (value=%q)", e.Row, e.Field, e.Wrapped, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError for one row and field.
func NewValidationError(row int, field, value string, wrapped error) *ValidationError {
	return &ValidationError{Row: row, Field: field, Value: value, Wrapped: wrapped}
}

// Unavailablef wraps ErrUnavailable with context.
func Unavailablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnavailable)...)
}

// Consistencyf wraps ErrConsistency with context.
func Consistencyf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConsistency)...)
}
