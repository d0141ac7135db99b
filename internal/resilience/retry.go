package resilience

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// RetryPolicy repeats an operation with exponential backoff. Only
// transient failures are retried; cancellation, client errors and
// programming errors propagate unwrapped on first occurrence.
type RetryPolicy struct {
	classifier *Classifier
	logger     *logger.Logger
	onRetry    func(operation string, attempt int)
}

// NewRetryPolicy creates a retry policy backed by the shared classifier.
func NewRetryPolicy(classifier *Classifier, log *logger.Logger) *RetryPolicy {
	if classifier == nil {
		classifier = NewDefaultClassifier()
	}
	return &RetryPolicy{
		classifier: classifier,
		logger:     log.ResilienceLogger("retry_policy"),
	}
}

// OnRetry registers a callback fired before every re-attempt. Used to
// hook metrics without coupling the policy to a collector.
func (p *RetryPolicy) OnRetry(fn func(operation string, attempt int)) {
	p.onRetry = fn
}

// Execute attempts op up to maxAttempts times, doubling the delay from
// initialDelay between attempts. After exhausting all attempts on
// transient failures it returns a RetryExhaustedError wrapping the last
// failure.
func (p *RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error, operationName string, maxAttempts int, initialDelay time.Duration) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}

	var lastErr error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if p.onRetry != nil {
				p.onRetry(operationName, attempt)
			}
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		if !p.classifier.IsRetryable(err) {
			// Non-retryable failures propagate exactly as raised.
			return err
		}

		lastErr = err
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"operation":    operationName,
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}).Warn("Transient failure, will retry")
	}

	return &RetryExhaustedError{
		Operation: operationName,
		Attempts:  maxAttempts,
		Err:       lastErr,
	}
}

// HTTPRetryPolicy extends the retry policy for raw HTTP calls: 5xx
// responses are treated as transient, and after exhaustion the last
// still-failing response is returned instead of an error so callers can
// branch on its status code.
type HTTPRetryPolicy struct {
	policy *RetryPolicy
	logger *logger.Logger
}

// NewHTTPRetryPolicy creates the HTTP-aware variant.
func NewHTTPRetryPolicy(classifier *Classifier, log *logger.Logger) *HTTPRetryPolicy {
	return &HTTPRetryPolicy{
		policy: NewRetryPolicy(classifier, log),
		logger: log.ResilienceLogger("http_retry_policy"),
	}
}

// Execute attempts op up to maxAttempts times. Transport errors follow
// the plain policy's rules; responses with retryable statuses (5xx under
// the default tables) are drained, closed and retried. The last failing
// response survives exhaustion.
func (p *HTTPRetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) (*http.Response, error), operationName string, maxAttempts int, initialDelay time.Duration) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}

	var lastResp *http.Response
	var lastErr error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		resp, err := op(ctx)
		if err != nil {
			if !p.policy.classifier.IsRetryable(err) {
				return nil, err
			}
			lastErr = err
			lastResp = nil
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"operation": operationName,
				"attempt":   attempt,
			}).Warn("Transient transport failure, will retry")
			continue
		}

		if !p.policy.classifier.IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = nil
		p.logger.WithFields(map[string]interface{}{
			"operation":   operationName,
			"attempt":     attempt,
			"status_code": resp.StatusCode,
		}).Warn("Retryable response status, will retry")

		if attempt < maxAttempts {
			// Free the connection before the next attempt.
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, &RetryExhaustedError{
		Operation: operationName,
		Attempts:  maxAttempts,
		Err:       lastErr,
	}
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
