package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// ThrottleEntry records one upstream-signaled backoff for an origin
// (typically "provider:model"). Entries are immutable once created;
// they are removed either lazily on an expired lookup or by the
// maintenance sweep.
type ThrottleEntry struct {
	Expiry      time.Time
	MaxRequests int
}

// ThrottleRegistry tracks transient, upstream-signaled backoffs, separate
// from the steady-state rate limiter. Providers announce these through
// rate-limit headers; the orchestrator checks HasThrottleFor before
// spending a call on a throttled origin.
type ThrottleRegistry struct {
	config  domain.ThrottleConfig
	entries map[string]ThrottleEntry
	mu      sync.Mutex
	logger  *logger.Logger
}

// NewThrottleRegistry creates a new registry.
func NewThrottleRegistry(config domain.ThrottleConfig, log *logger.Logger) *ThrottleRegistry {
	if config.DefaultDuration <= 0 {
		config.DefaultDuration = time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}
	return &ThrottleRegistry{
		config:  config,
		entries: make(map[string]ThrottleEntry),
		logger:  log.ResilienceLogger("throttle_registry"),
	}
}

// RegisterThrottle records a timed backoff for origin. A non-positive
// duration falls back to the configured default.
func (tr *ThrottleRegistry) RegisterThrottle(origin string, duration time.Duration, maxRequests int) {
	if origin == "" {
		return
	}
	if duration <= 0 {
		duration = tr.config.DefaultDuration
	}

	tr.mu.Lock()
	tr.entries[origin] = ThrottleEntry{
		Expiry:      time.Now().Add(duration),
		MaxRequests: maxRequests,
	}
	tr.mu.Unlock()

	tr.logger.WithFields(map[string]interface{}{
		"origin":       origin,
		"duration":     duration.String(),
		"max_requests": maxRequests,
	}).Info("Registered upstream throttle")
}

// HasThrottleFor reports whether origin is currently throttled. Always
// false when adaptive throttling is disabled in configuration. Expired
// entries found here are removed.
func (tr *ThrottleRegistry) HasThrottleFor(origin string) bool {
	if !tr.config.AdaptiveThrottling {
		return false
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	entry, ok := tr.entries[origin]
	if !ok {
		return false
	}
	if time.Now().After(entry.Expiry) {
		delete(tr.entries, origin)
		return false
	}
	return true
}

// RunMaintenanceOnce removes expired entries so the registry stays
// bounded across many distinct origins. Returns how many were removed.
func (tr *ThrottleRegistry) RunMaintenanceOnce() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := time.Now()
	removed := 0
	for origin, entry := range tr.entries {
		if now.After(entry.Expiry) {
			delete(tr.entries, origin)
			removed++
		}
	}

	if removed > 0 {
		tr.logger.WithField("removed", removed).Debug("Swept expired throttle entries")
	}
	return removed
}

// Start runs the periodic maintenance sweep until ctx is cancelled.
func (tr *ThrottleRegistry) Start(ctx context.Context) {
	ticker := time.NewTicker(tr.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tr.RunMaintenanceOnce()
		}
	}
}

// Size returns the current number of tracked entries.
func (tr *ThrottleRegistry) Size() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.entries)
}
