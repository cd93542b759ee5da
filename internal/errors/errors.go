// Package errors provides the chatbot's sentinel errors and error types.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Check them with errors.Is.
var (
	// ErrEmptyQuery is returned when a query has no content after trimming.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNotFound indicates a requested FAQ, category, object or session does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates the caller supplied malformed input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrStageUnavailable is returned by a pipeline stage whose backend is not ready.
	ErrStageUnavailable = errors.New("stage unavailable")

	// ErrRateLimitExceeded indicates the client sent too many requests.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err wraps ErrInvalidInput or is a ValidationError.
func IsInvalidInput(err error) bool {
	if errors.Is(err, ErrInvalidInput) {
		return true
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRateLimitExceeded reports whether err wraps ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool { return errors.Is(err, ErrRateLimitExceeded) }

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// LoadError describes a FAQ source that could not be read or parsed.
type LoadError struct {
	Source string
	Entry  int // index of the offending record, -1 if the whole source failed
	Err    error
}

func (e *LoadError) Error() string {
	if e.Entry >= 0 {
		return fmt.Sprintf("faq load error (source=%s, entry=%d): %v", e.Source, e.Entry, e.Err)
	}
	return fmt.Sprintf("faq load error (source=%s): %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new FAQ load error.
func NewLoadError(source string, entry int, err error) *LoadError {
	return &LoadError{
		Source: source,
		Entry:  entry,
		Err:    err,
	}
}
