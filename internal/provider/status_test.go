package provider

import (
	"net/http"
	"testing"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/internal/resilience"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newThrottles(t *testing.T) *resilience.ThrottleRegistry {
	t.Helper()
	return resilience.NewThrottleRegistry(domain.ThrottleConfig{
		AdaptiveThrottling: true,
		DefaultDuration:    time.Minute,
	}, newTestLogger(t))
}

func TestStatusErrorCarriesCode(t *testing.T) {
	t.Parallel()

	err := &StatusError{Provider: "openai", Code: 503, Body: "overloaded"}
	assert.Equal(t, 503, err.StatusCode())
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "overloaded")

	bare := &StatusError{Provider: "openai", Code: 404}
	assert.NotContains(t, bare.Error(), ": ")
}

func TestClassifierReadsStatusError(t *testing.T) {
	t.Parallel()

	classifier := resilience.NewDefaultClassifier()

	assert.Equal(t, resilience.FailureTransient, classifier.Classify(&StatusError{Code: 503}))
	assert.Equal(t, resilience.FailureTransient, classifier.Classify(&StatusError{Code: 429}))
	assert.Equal(t, resilience.FailureClient, classifier.Classify(&StatusError{Code: 404}))
}

func TestRetryAfterHeader(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	assert.Equal(t, time.Duration(0), retryAfter(h))

	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, retryAfter(h))

	h.Set("Retry-After", time.Now().Add(45*time.Second).UTC().Format(http.TimeFormat))
	got := retryAfter(h)
	assert.Greater(t, got, 40*time.Second)
	assert.LessOrEqual(t, got, 45*time.Second)

	h.Set("Retry-After", "garbage")
	assert.Equal(t, time.Duration(0), retryAfter(h))
}

func TestRemainingRequestsHeader(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	assert.Equal(t, -1, remainingRequests(h))

	h.Set("X-RateLimit-Remaining", "0")
	assert.Equal(t, 0, remainingRequests(h))

	h.Set("X-RateLimit-Remaining", "17")
	assert.Equal(t, 17, remainingRequests(h))

	h.Set("X-RateLimit-Remaining", "not-a-number")
	assert.Equal(t, -1, remainingRequests(h))
}

func TestRegisterThrottleFromResponseOn429(t *testing.T) {
	t.Parallel()

	throttles := newThrottles(t)
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"60"}},
	}

	RegisterThrottleFromResponse(throttles, "openai:gpt-4", resp)
	assert.True(t, throttles.HasThrottleFor("openai:gpt-4"))
}

func TestRegisterThrottleFromResponseOnExhaustedQuota(t *testing.T) {
	t.Parallel()

	throttles := newThrottles(t)
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"X-Ratelimit-Remaining": []string{"0"}},
	}

	RegisterThrottleFromResponse(throttles, "openai:gpt-4", resp)
	assert.True(t, throttles.HasThrottleFor("openai:gpt-4"))
}

func TestRegisterThrottleFromResponseIgnoresHealthyResponse(t *testing.T) {
	t.Parallel()

	throttles := newThrottles(t)
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"X-Ratelimit-Remaining": []string{"42"}},
	}

	RegisterThrottleFromResponse(throttles, "openai:gpt-4", resp)
	assert.False(t, throttles.HasThrottleFor("openai:gpt-4"))

	RegisterThrottleFromResponse(nil, "openai:gpt-4", resp)
	RegisterThrottleFromResponse(throttles, "openai:gpt-4", nil)
	require.False(t, throttles.HasThrottleFor("openai:gpt-4"))
}
