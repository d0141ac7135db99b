package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/mir00r/recommendation-gateway/pkg/logger"
	"golang.org/x/time/rate"
)

// defaultSpacing is applied when a key is used without configuration or
// configured with nonsense values.
const defaultSpacing = time.Second

// rateBucket tracks spacing state for one key.
type rateBucket struct {
	limiter   *rate.Limiter
	lastStart time.Time
}

// RateLimiter enforces a minimum spacing between call starts per key.
// Keys are fully independent: waiting on one key never delays another.
type RateLimiter struct {
	buckets map[string]*rateBucket
	mu      sync.Mutex
	logger  *logger.Logger
}

// NewRateLimiter creates a new keyed rate limiter.
func NewRateLimiter(log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		logger:  log.ResilienceLogger("rate_limiter"),
	}
}

// Configure sets a minimum inter-call spacing of period/permits for key.
// Invalid input (empty key, non-positive permits or period) is normalized
// to the default spacing rather than rejected.
func (rl *RateLimiter) Configure(key string, permits int, period time.Duration) {
	spacing := defaultSpacing
	if permits > 0 && period > 0 {
		spacing = period / time.Duration(permits)
	}
	if key == "" || spacing <= 0 {
		if key == "" {
			rl.logger.Warn("Ignoring rate limit configuration for empty key")
			return
		}
		spacing = defaultSpacing
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.buckets[key] = &rateBucket{
		limiter: rate.NewLimiter(rate.Every(spacing), 1),
	}

	rl.logger.WithFields(map[string]interface{}{
		"key":     key,
		"spacing": spacing.String(),
	}).Debug("Configured rate limit")
}

// getBucket gets or creates the bucket for a key.
func (rl *RateLimiter) getBucket(key string) *rateBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = &rateBucket{
			limiter: rate.NewLimiter(rate.Every(defaultSpacing), 1),
		}
		rl.buckets[key] = bucket
	}
	return bucket
}

// Execute waits until the key's spacing allows another call, then invokes
// op. The wait is cancellable: if ctx is done before the slot arrives, op
// never runs and the context error is returned.
func (rl *RateLimiter) Execute(ctx context.Context, key string, op func(ctx context.Context) error) error {
	bucket := rl.getBucket(key)

	if err := bucket.limiter.Wait(ctx); err != nil {
		return err
	}

	rl.mu.Lock()
	bucket.lastStart = time.Now()
	rl.mu.Unlock()

	return op(ctx)
}

// LastStart returns the most recent recorded call start for key, or the
// zero time when the key has never run.
func (rl *RateLimiter) LastStart(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, ok := rl.buckets[key]; ok {
		return bucket.lastStart
	}
	return time.Time{}
}

// Stats returns per-key observability counters.
func (rl *RateLimiter) Stats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_keys": len(rl.buckets),
	}
}
