package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/resilience"
)

// StatusError is the transport boundary's normalization of a non-2xx
// provider response into a typed status carrier. The resilience
// classifier reads the code through the StatusCoder interface instead of
// scraping it back out of message text.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.Code, e.Body)
	}
	return fmt.Sprintf("provider %s returned status %d", e.Provider, e.Code)
}

// StatusCode implements resilience.StatusCoder
func (e *StatusError) StatusCode() int {
	return e.Code
}

var _ resilience.StatusCoder = (*StatusError)(nil)

// retryAfter parses a Retry-After header as either delta-seconds or an
// HTTP date. Returns 0 when absent or unparseable.
func retryAfter(h http.Header) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// remainingRequests parses the X-RateLimit-Remaining header, returning
// -1 when absent.
func remainingRequests(h http.Header) int {
	value := h.Get("X-RateLimit-Remaining")
	if value == "" {
		return -1
	}
	remaining, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return remaining
}

// RegisterThrottleFromResponse records an upstream-signaled backoff for
// origin when the response carries one (a 429 status or an exhausted
// rate-limit header).
func RegisterThrottleFromResponse(registry *resilience.ThrottleRegistry, origin string, resp *http.Response) {
	if registry == nil || resp == nil {
		return
	}

	remaining := remainingRequests(resp.Header)
	if resp.StatusCode != http.StatusTooManyRequests && remaining != 0 {
		return
	}
	if remaining < 0 {
		remaining = 0
	}

	registry.RegisterThrottle(origin, retryAfter(resp.Header), remaining)
}
