package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry indicates the request should be retried after backoff.
	ActionRetry ErrorAction = iota
	// ActionFail indicates the request should fail immediately.
	ActionFail
)

// String returns a human-readable string for the error action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ProviderError wraps a provider failure with the HTTP status, when known.
type ProviderError struct {
	Err        error
	StatusCode int
	Provider   Provider
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := string(e.Provider) + ": " + e.Err.Error()
	if e.StatusCode > 0 {
		msg += " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError attaches provider and status information to err. The status code
// is read from SDK error types when statusCode is 0.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	if statusCode == 0 {
		statusCode = sdkStatusCode(err)
	}
	return &ProviderError{Err: err, StatusCode: statusCode, Provider: provider}
}

func sdkStatusCode(err error) int {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return gErrPtr.Code
	}
	return 0
}

// ClassifyError decides whether a failed provider call is worth retrying.
// Rate limits, timeouts, server errors and network failures retry; client
// errors (bad request, auth, not found) and cancellation fail.
func ClassifyError(err error) ErrorAction {
	if err == nil || errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	var pErr *ProviderError
	if errors.As(err, &pErr) && pErr.StatusCode > 0 {
		return classifyStatusCode(pErr.StatusCode)
	}
	if code := sdkStatusCode(err); code > 0 {
		return classifyStatusCode(code)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429"):
		return ActionRetry
	case containsAny(errStr, "unavailable", "internal server error", "bad gateway",
		"gateway timeout", "overloaded", "500", "502", "503", "504"):
		return ActionRetry
	case containsAny(errStr, "timeout", "deadline", "connection reset", "connection refused", "eof"):
		return ActionRetry
	case containsAny(errStr, "invalid", "bad request", "malformed", "unauthorized",
		"unauthenticated", "forbidden", "permission denied", "not found", "400", "401", "403", "404"):
		return ActionFail
	default:
		return ActionRetry
	}
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500:
		return ActionRetry
	case statusCode >= 400:
		return ActionFail
	default:
		return ActionRetry
	}
}

// IsRetryable returns true if the error is transient and can be retried.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRetry
}

// IsPermanent returns true if the error should not be retried.
func IsPermanent(err error) bool {
	return ClassifyError(err) == ActionFail
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
