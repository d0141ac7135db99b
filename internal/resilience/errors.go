package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument marks caller bugs surfaced by this package. Errors
// wrapping it are classified as programming errors: never retried, never
// counted against a circuit breaker.
var ErrInvalidArgument = errors.New("invalid argument")

// CircuitOpenError is raised when a breaker fast-fails a call while Open.
// The wrapped operation is never invoked.
type CircuitOpenError struct {
	Resource   string
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open for resource %q (retry after %s)", e.Resource, e.RetryAfter)
}

// IsCircuitOpen reports whether err is a breaker fast-fail.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// RetryExhaustedError wraps the last transient failure after the retry
// policy has used up all attempts for an operation.
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

// Error implements the error interface
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation %q failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

// Unwrap returns the last underlying failure
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// OperationTimeoutError is raised when an operation exceeds the breaker's
// per-call timeout. It unwraps to context.DeadlineExceeded so standard
// timeout checks keep working.
type OperationTimeoutError struct {
	Resource string
	Timeout  time.Duration
}

// Error implements the error interface
func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("operation on resource %q timed out after %s", e.Resource, e.Timeout)
}

// Unwrap returns context.DeadlineExceeded
func (e *OperationTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}
