package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/mir00r/recommendation-gateway/pkg/logger"
	"github.com/stretchr/testify/assert"
)

// newTestLogger creates a quiet logger for tests
func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return log
}

// testStatusError carries an HTTP status code the way the transport
// boundary adapter does.
type testStatusError struct {
	code int
}

func (e *testStatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.code)
}

func (e *testStatusError) StatusCode() int {
	return e.code
}

func TestClassifyStatusCarriers(t *testing.T) {
	t.Parallel()

	c := NewDefaultClassifier()

	tests := []struct {
		name string
		code int
		want FailureKind
	}{
		{"server error", 503, FailureTransient},
		{"bad gateway", 502, FailureTransient},
		{"request timeout", 408, FailureTransient},
		{"rate limited", 429, FailureTransient},
		{"bad request", 400, FailureClient},
		{"unauthorized", 401, FailureClient},
		{"not found", 404, FailureClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(&testStatusError{code: tt.code})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyMessageText(t *testing.T) {
	t.Parallel()

	c := NewDefaultClassifier()

	assert.Equal(t, FailureTransient, c.Classify(errors.New("upstream answered (503)")))
	assert.Equal(t, FailureClient, c.Classify(errors.New("HTTP 401 from provider")))
	assert.Equal(t, FailureTransient, c.Classify(errors.New("got status code 429 from origin")))
	assert.Equal(t, FailureUnknown, c.Classify(errors.New("something odd happened")))
}

func TestClassifyErrorTypes(t *testing.T) {
	t.Parallel()

	c := NewDefaultClassifier()

	assert.Equal(t, FailureCancelled, c.Classify(context.Canceled))
	assert.Equal(t, FailureTransient, c.Classify(context.DeadlineExceeded))
	assert.Equal(t, FailureTransient, c.Classify(&net.DNSError{Err: "no such host", Name: "api.example.com"}))
	assert.Equal(t, FailureTransient, c.Classify(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.Equal(t, FailureTransient, c.Classify(io.ErrUnexpectedEOF))
	assert.Equal(t, FailureProgramming, c.Classify(fmt.Errorf("%w: nil provider", ErrInvalidArgument)))
}

func TestClassifyWrappedErrors(t *testing.T) {
	t.Parallel()

	c := NewDefaultClassifier()

	wrapped := fmt.Errorf("fetch failed: %w", &testStatusError{code: 503})
	assert.Equal(t, FailureTransient, c.Classify(wrapped))

	// Cancellation wins even when wrapped alongside a transient failure.
	joined := errors.Join(context.Canceled, &testStatusError{code: 500})
	assert.Equal(t, FailureCancelled, c.Classify(joined))

	// Trip-worthy if any inner error qualifies.
	joined = errors.Join(errors.New("parse failed"), &testStatusError{code: 502})
	assert.Equal(t, FailureTransient, c.Classify(joined))
}

func TestClassifierConfigurableTables(t *testing.T) {
	t.Parallel()

	c := NewClassifier(ClassifierConfig{
		TransientStatuses:    []int{418},
		RetryAllServerErrors: false,
	})

	assert.Equal(t, FailureTransient, c.Classify(&testStatusError{code: 418}))
	assert.False(t, c.IsRetryableStatus(500))
	assert.Equal(t, FailureClient, c.Classify(&testStatusError{code: 429}))
}

func TestIsRetryableAndTripWorthyAgree(t *testing.T) {
	t.Parallel()

	c := NewDefaultClassifier()

	for _, err := range []error{
		&testStatusError{code: 503},
		&testStatusError{code: 400},
		context.Canceled,
		fmt.Errorf("%w: bad input", ErrInvalidArgument),
	} {
		assert.Equal(t, c.IsRetryable(err), c.IsTripWorthy(err), "retryable and trip-worthy must agree for %v", err)
	}
}

func TestStatusFromError(t *testing.T) {
	t.Parallel()

	c := NewDefaultClassifier()

	assert.Equal(t, 503, c.StatusFromError(&testStatusError{code: 503}))
	assert.Equal(t, 401, c.StatusFromError(errors.New("HTTP 401")))
	assert.Equal(t, 0, c.StatusFromError(errors.New("no status here")))
}
