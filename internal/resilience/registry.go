package resilience

import (
	"sync"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// BreakerRegistry hands out one shared CircuitBreaker per resource name.
// It is an explicit injectable object rather than package state, so tests
// can build isolated registries without cross-test pollution.
type BreakerRegistry struct {
	config     domain.CircuitBreakerConfig
	classifier *Classifier
	logger     *logger.Logger
	onChange   StateChangeFunc

	breakers map[string]*CircuitBreaker
	mu       sync.Mutex
}

// NewBreakerRegistry creates a registry. Every breaker it creates shares
// config, classifier and the state-change callback.
func NewBreakerRegistry(config domain.CircuitBreakerConfig, classifier *Classifier, log *logger.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		config:     config,
		classifier: classifier,
		logger:     log,
		breakers:   make(map[string]*CircuitBreaker),
	}
}

// OnStateChange sets the callback wired into every breaker the registry
// creates. Must be called before the first GetOrCreate.
func (r *BreakerRegistry) OnStateChange(fn StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// GetOrCreate returns the breaker for the named resource, creating it on
// first use. Safe for concurrent callers; all callers for a name share
// the same breaker instance.
func (r *BreakerRegistry) GetOrCreate(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, r.config, r.classifier, r.logger)
	if r.onChange != nil {
		cb.OnStateChange(r.onChange)
	}
	r.breakers[name] = cb
	return cb
}

// ResetAll resets every tracked breaker to Closed.
func (r *BreakerRegistry) ResetAll() {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}

// AllStatistics returns a snapshot for every tracked breaker.
func (r *BreakerRegistry) AllStatistics() []Statistics {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	stats := make([]Statistics, 0, len(breakers))
	for _, cb := range breakers {
		stats = append(stats, cb.Statistics())
	}
	return stats
}
