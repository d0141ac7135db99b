package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"strconv"
)

// FailureKind is the closed set of failure classifications. Every error
// seen by the breaker, the retry policy and the health monitor maps to
// exactly one kind through Classifier.Classify.
type FailureKind int

const (
	// FailureUnknown - unclassifiable errors; treated conservatively
	// (not retried, not trip-worthy)
	FailureUnknown FailureKind = iota
	// FailureTransient - network/timeout/IO and retryable HTTP statuses
	FailureTransient
	// FailureClient - HTTP 4xx request errors other than rate-limit or
	// timeout-like statuses
	FailureClient
	// FailureCancelled - caller-initiated cancellation
	FailureCancelled
	// FailureProgramming - caller bugs (invalid arguments, misuse)
	FailureProgramming
)

// String returns the string representation of FailureKind
func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureClient:
		return "client"
	case FailureCancelled:
		return "cancelled"
	case FailureProgramming:
		return "programming"
	default:
		return "unknown"
	}
}

// StatusCoder is implemented by errors that carry an HTTP status code from
// the transport boundary.
type StatusCoder interface {
	StatusCode() int
}

// statusPattern matches status codes embedded in error message text, e.g.
// "(503)", "HTTP 401", "status code 429", "status: 500".
var statusPattern = regexp.MustCompile(`(?i)(?:\((\d{3})\)|HTTP (\d{3})|status(?: code)?[ :]+(\d{3}))`)

// ClassifierConfig holds the policy tables mapping status codes to failure
// kinds. The defaults match the gateway's provider behavior; both sets are
// externally configurable so operators can widen or narrow them without a
// rebuild.
type ClassifierConfig struct {
	// TransientStatuses are statuses below 500 still treated as transient.
	TransientStatuses []int `json:"transient_statuses" yaml:"transient_statuses"`
	// RetryAllServerErrors treats every 5xx as transient when true.
	RetryAllServerErrors bool `json:"retry_all_server_errors" yaml:"retry_all_server_errors"`
}

// DefaultClassifierConfig returns the default status policy: all 5xx plus
// 408 (request timeout) and 429 (rate limited) are transient.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		TransientStatuses:    []int{408, 429},
		RetryAllServerErrors: true,
	}
}

// Classifier maps arbitrary errors to a FailureKind. It is the single
// place status sniffing happens; the breaker, retry policy and health
// monitor all consult it instead of re-deriving their own rules.
type Classifier struct {
	transient map[int]bool
	allServer bool
}

// NewClassifier creates a classifier from the given policy tables.
func NewClassifier(config ClassifierConfig) *Classifier {
	transient := make(map[int]bool, len(config.TransientStatuses))
	for _, code := range config.TransientStatuses {
		transient[code] = true
	}
	return &Classifier{
		transient: transient,
		allServer: config.RetryAllServerErrors,
	}
}

// NewDefaultClassifier creates a classifier with the default policy.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultClassifierConfig())
}

// Classify maps err to its FailureKind. Wrapped and joined errors are
// unwrapped; the result is transient if any error in the chain qualifies.
func (c *Classifier) Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	// Cancellation wins over everything else: a caller abandoning the
	// call is never the provider's fault.
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}

	if c.anyInChain(err, c.isTransient) {
		return FailureTransient
	}
	if c.anyInChain(err, c.isProgramming) {
		return FailureProgramming
	}
	if c.anyInChain(err, c.isClient) {
		return FailureClient
	}
	return FailureUnknown
}

// IsRetryable reports whether err is worth another attempt.
func (c *Classifier) IsRetryable(err error) bool {
	return c.Classify(err) == FailureTransient
}

// IsTripWorthy reports whether err should count against a circuit
// breaker's failure threshold.
func (c *Classifier) IsTripWorthy(err error) bool {
	return c.Classify(err) == FailureTransient
}

// StatusFromError extracts an HTTP status code from err, checking typed
// carriers first and falling back to a message-text scan. Returns 0 when
// no status is found.
func (c *Classifier) StatusFromError(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return statusFromMessage(err.Error())
}

// IsRetryableStatus reports whether an HTTP status code is transient under
// the configured policy tables.
func (c *Classifier) IsRetryableStatus(code int) bool {
	if code >= 500 && c.allServer {
		return true
	}
	return c.transient[code]
}

// anyInChain walks the full unwrap tree of err, including errors.Join
// branches, and reports whether pred holds for any node.
func (c *Classifier) anyInChain(err error, pred func(error) bool) bool {
	if err == nil {
		return false
	}
	if pred(err) {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return c.anyInChain(x.Unwrap(), pred)
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if c.anyInChain(inner, pred) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) isTransient(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	if sc, ok := err.(StatusCoder); ok {
		return c.IsRetryableStatus(sc.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return true
	}

	if code := statusFromMessage(err.Error()); code != 0 {
		return c.IsRetryableStatus(code)
	}
	return false
}

func (c *Classifier) isClient(err error) bool {
	code := 0
	if sc, ok := err.(StatusCoder); ok {
		code = sc.StatusCode()
	} else {
		code = statusFromMessage(err.Error())
	}
	return code >= 400 && code < 500 && !c.IsRetryableStatus(code)
}

func (c *Classifier) isProgramming(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// statusFromMessage scans message text for an embedded status code.
func statusFromMessage(msg string) int {
	match := statusPattern.FindStringSubmatch(msg)
	if match == nil {
		return 0
	}
	for _, group := range match[1:] {
		if group == "" {
			continue
		}
		code, err := strconv.Atoi(group)
		if err != nil {
			continue
		}
		if code >= 100 && code < 600 {
			return code
		}
	}
	return 0
}
