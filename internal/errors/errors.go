package errors

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrorCode represents a specific error type for better error handling
type ErrorCode string

const (
	// Infrastructure errors
	ErrCodeConfigLoad          ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderThrottled   ErrorCode = "PROVIDER_THROTTLED"

	// Request processing errors
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTimeout       ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeCircuitBreakerOpen   ErrorCode = "CIRCUIT_BREAKER_OPEN"
	ErrCodeRetryExhausted       ErrorCode = "RETRY_EXHAUSTED"

	// Internal errors
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeNoProviders        ErrorCode = "NO_PROVIDERS_AVAILABLE"
)

// GatewayError represents a structured error with context
type GatewayError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	RequestID  string                 `json:"request_id,omitempty"`
	Component  string                 `json:"component,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"` // Original error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("[%s][%s] %s: %s", e.RequestID, e.Code, e.Component, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error code
func (e *GatewayError) Is(target error) bool {
	if t, ok := target.(*GatewayError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMetadata adds metadata to the error
func (e *GatewayError) WithMetadata(key string, value interface{}) *GatewayError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRequestID adds request ID to the error
func (e *GatewayError) WithRequestID(requestID string) *GatewayError {
	e.RequestID = requestID
	return e
}

// WithStackTrace adds stack trace to the error
func (e *GatewayError) WithStackTrace() *GatewayError {
	e.StackTrace = getStackTrace()
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	switch e.Code {
	case ErrCodeInvalidRequest:
		return 400
	case ErrCodeAuthenticationFailed:
		return 401
	case ErrCodeRateLimitExceeded, ErrCodeProviderThrottled:
		return 429
	case ErrCodeProviderUnavailable, ErrCodeNoProviders, ErrCodeServiceUnavailable, ErrCodeCircuitBreakerOpen:
		return 503
	case ErrCodeRequestTimeout, ErrCodeProviderTimeout:
		return 504
	default:
		return 500
	}
}

// NewError creates a new GatewayError
func NewError(code ErrorCode, component, message string) *GatewayError {
	return &GatewayError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewErrorWithCause creates a new GatewayError with an underlying cause
func NewErrorWithCause(code ErrorCode, component, message string, cause error) *GatewayError {
	return &GatewayError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
		Details:   cause.Error(),
	}
}

// WrapError wraps an existing error with GatewayError structure
func WrapError(err error, code ErrorCode, component, message string) *GatewayError {
	if err == nil {
		return nil
	}

	return &GatewayError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Details:   err.Error(),
	}
}

// Common error constructors for frequently used errors

// NewProviderUnavailableError creates an error for an unavailable provider
func NewProviderUnavailableError(provider string, cause error) *GatewayError {
	return NewErrorWithCause(
		ErrCodeProviderUnavailable,
		"orchestrator",
		fmt.Sprintf("Provider %s is unavailable", provider),
		cause,
	).WithMetadata("provider", provider)
}

// NewNoProvidersError creates an error when no providers are configured
func NewNoProvidersError() *GatewayError {
	return NewError(
		ErrCodeNoProviders,
		"orchestrator",
		"No providers available for request",
	)
}

// NewInvalidRequestError creates an error for a malformed API request
func NewInvalidRequestError(reason string) *GatewayError {
	return NewError(
		ErrCodeInvalidRequest,
		"handler",
		fmt.Sprintf("Invalid request: %s", reason),
	).WithMetadata("reason", reason)
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(reason string) *GatewayError {
	return NewError(
		ErrCodeAuthenticationFailed,
		"auth",
		fmt.Sprintf("Authentication failed: %s", reason),
	).WithMetadata("reason", reason)
}

// Helper functions

// getStackTrace captures the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

// IsGatewayError checks if an error is a GatewayError
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return ErrCodeInternalError
}
