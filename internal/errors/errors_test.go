package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{
			name:     "ErrNotFound is recognized",
			err:      ErrNotFound,
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrNotFound is recognized",
			err:      fmt.Errorf("category %q: %w", "billing", ErrNotFound),
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "different error is not ErrNotFound",
			err:      ErrRateLimitExceeded,
			checkFn:  IsNotFound,
			expected: false,
		},
		{
			name:     "ErrRateLimitExceeded is recognized",
			err:      ErrRateLimitExceeded,
			checkFn:  IsRateLimitExceeded,
			expected: true,
		},
		{
			name:     "ErrInvalidInput is recognized",
			err:      ErrInvalidInput,
			checkFn:  IsInvalidInput,
			expected: true,
		},
		{
			name:     "ValidationError counts as invalid input",
			err:      fmt.Errorf("search: %w", NewValidationError("query", "too long")),
			checkFn:  IsInvalidInput,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.checkFn(tt.err)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("query", "exceeds 500 characters")

	if err.Field != "query" {
		t.Errorf("expected field 'query', got '%s'", err.Field)
	}

	expected := "validation failed on query: exceeds 500 characters"
	if err.Error() != expected {
		t.Errorf("expected error '%s', got '%s'", expected, err.Error())
	}
}

func TestLoadError(t *testing.T) {
	baseErr := errors.New("missing answer")
	err := NewLoadError("data/faqs.json", 3, baseErr)

	if !errors.Is(err, baseErr) {
		t.Error("expected error to wrap base error")
	}

	expected := "faq load error (source=data/faqs.json, entry=3): missing answer"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}

	whole := NewLoadError("s3://faqs/faqs.json", -1, baseErr)
	if whole.Error() != "faq load error (source=s3://faqs/faqs.json): missing answer" {
		t.Errorf("unexpected message: %s", whole.Error())
	}
}
