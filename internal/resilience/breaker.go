package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	// StateClosed - Circuit breaker is closed, calls pass through
	StateClosed CircuitBreakerState = iota
	// StateOpen - Circuit breaker is open, calls fail fast
	StateOpen
	// StateHalfOpen - Circuit breaker allows trial calls to test recovery
	StateHalfOpen
)

// String returns the string representation of CircuitBreakerState
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Default breaker tuning, applied when config fields are zero.
const (
	defaultFailureThreshold         = 5
	defaultOpenDuration             = 60 * time.Second
	defaultCallTimeout              = 30 * time.Second
	defaultHalfOpenSuccessThreshold = 2
)

// StateChangeFunc is invoked on every breaker state transition. Used to
// hook logging and metrics without coupling the breaker to either.
type StateChangeFunc func(resource string, from, to CircuitBreakerState)

// CircuitBreaker guards calls against one named resource. Trip-worthiness
// of failures is decided by the shared Classifier, so the breaker never
// re-derives status sniffing on its own.
type CircuitBreaker struct {
	resource   string
	config     domain.CircuitBreakerConfig
	classifier *Classifier
	logger     *logger.Logger
	onChange   StateChangeFunc

	// State management
	state               CircuitBreakerState
	consecutiveFailures int
	halfOpenSuccesses   int
	lastFailureTime     time.Time
	totalCalls          int64
	totalFailures       int64

	mu sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker for the named resource.
func NewCircuitBreaker(resource string, config domain.CircuitBreakerConfig, classifier *Classifier, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaultFailureThreshold
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = defaultOpenDuration
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = defaultCallTimeout
	}
	if config.HalfOpenSuccessThreshold <= 0 {
		config.HalfOpenSuccessThreshold = defaultHalfOpenSuccessThreshold
	}
	if classifier == nil {
		classifier = NewDefaultClassifier()
	}

	return &CircuitBreaker{
		resource:   resource,
		config:     config,
		classifier: classifier,
		logger:     log.ResilienceLogger("circuit_breaker").WithField("resource", resource),
		state:      StateClosed,
	}
}

// OnStateChange registers a callback fired on every state transition.
func (cb *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Execute runs op under the breaker. While Open and cooling down it
// returns a CircuitOpenError without invoking op. The operation runs
// under the configured per-call timeout; exceeding it surfaces an
// OperationTimeoutError and always counts as a trip-worthy failure.
// Caller cancellation is propagated as-is and never counts.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := cb.runWithTimeout(ctx, op)
	cb.afterCall(err)
	return err
}

// ExecuteWithFallback behaves like Execute, but runs fallback instead of
// returning a CircuitOpenError when the breaker is fast-failing.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, op, fallback func(ctx context.Context) error) error {
	err := cb.Execute(ctx, op)
	if IsCircuitOpen(err) {
		cb.logger.Debug("Circuit open, running fallback")
		return fallback(ctx)
	}
	return err
}

// beforeCall admits or fast-fails the call and performs the
// Open -> HalfOpen transition once the cooldown has elapsed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		elapsed := time.Since(cb.lastFailureTime)
		if elapsed < cb.config.OpenDuration {
			// Fast-failed calls are not attempts against the resource.
			return &CircuitOpenError{
				Resource:   cb.resource,
				RetryAfter: cb.config.OpenDuration - elapsed,
			}
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenSuccesses = 0
	}
	cb.totalCalls++
	return nil
}

// runWithTimeout races op against the per-call timeout. A caller
// cancellation is returned as ctx.Err(); a timeout is returned as an
// OperationTimeoutError. The op goroutine is left to drain into the
// buffered channel if it outlives the race.
func (cb *CircuitBreaker) runWithTimeout(ctx context.Context, op func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, cb.config.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Caller cancelled; not the operation's fault.
			return ctx.Err()
		}
		return &OperationTimeoutError{Resource: cb.resource, Timeout: cb.config.CallTimeout}
	}
}

// afterCall records the outcome and drives state transitions.
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.recordSuccess()
		return
	}

	kind := cb.classifier.Classify(err)
	if kind == FailureCancelled {
		// Caller abandoned the call; no state change either way.
		return
	}
	if !cb.classifier.IsTripWorthy(err) {
		cb.logger.WithError(err).WithField("failure_kind", kind.String()).
			Debug("Ignoring non-trip-worthy failure")
		return
	}
	cb.recordFailure()
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateClosed:
		// Forgiving hysteresis: isolated failures heal gradually rather
		// than being wiped by a single success.
		if cb.consecutiveFailures > 0 {
			cb.consecutiveFailures--
		}

	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.HalfOpenSuccessThreshold {
			cb.transition(StateClosed)
			cb.consecutiveFailures = 0
			cb.halfOpenSuccesses = 0
			cb.logger.Info("Circuit breaker closing after successful recovery")
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.totalFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.logger.WithFields(map[string]interface{}{
				"consecutive_failures": cb.consecutiveFailures,
				"failure_threshold":    cb.config.FailureThreshold,
				"open_duration":        cb.config.OpenDuration.String(),
			}).Warn("Circuit breaker opening due to failures")
		}

	case StateHalfOpen:
		// A single failure during the trial window re-opens.
		cb.transition(StateOpen)
		cb.halfOpenSuccesses = 0
		cb.logger.Info("Circuit breaker opening again after failure in half-open state")
	}
}

// transition moves to the new state and fires the state-change callback.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(cb.resource, from, to)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker Closed with all counters cleared.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transition(StateClosed)
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
	cb.lastFailureTime = time.Time{}

	cb.logger.Info("Circuit breaker reset to closed state")
}

// Statistics is an observability snapshot of one breaker.
type Statistics struct {
	Resource            string              `json:"resource"`
	State               CircuitBreakerState `json:"-"`
	StateName           string              `json:"state"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	TotalCalls          int64               `json:"total_calls"`
	TotalFailures       int64               `json:"total_failures"`
	FailureRate         float64             `json:"failure_rate"`
	LastFailureTime     time.Time           `json:"last_failure_time,omitempty"`
}

// Statistics returns a snapshot of the breaker's counters and state.
func (cb *CircuitBreaker) Statistics() Statistics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	rate := 0.0
	if cb.totalCalls > 0 {
		rate = float64(cb.totalFailures) / float64(cb.totalCalls)
	}

	return Statistics{
		Resource:            cb.resource,
		State:               cb.state,
		StateName:           cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalCalls:          cb.totalCalls,
		TotalFailures:       cb.totalFailures,
		FailureRate:         rate,
		LastFailureTime:     cb.lastFailureTime,
	}
}
