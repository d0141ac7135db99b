package domain

import (
	"context"
	"time"
)

// Recommendation represents a single artist/album suggestion returned by a
// text-generation provider.
type Recommendation struct {
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Genre      string  `json:"genre,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Provider   string  `json:"provider,omitempty"`
}

// RecommendationRequest describes one batch request for recommendations.
type RecommendationRequest struct {
	Prompt           string   `json:"prompt"`
	Model            string   `json:"model,omitempty"`
	MaxResults       int      `json:"max_results,omitempty"`
	SessionAllowList []string `json:"session_allow_list,omitempty"`
	LibrarySample    []string `json:"library_sample,omitempty"`
}

// Provider is the narrow boundary to one remote text-generation backend.
// Implementations live outside the resilience core; the core only needs
// something it can call repeatedly.
type Provider interface {
	// Name returns the stable provider identifier used for breaker,
	// rate-limit and health bookkeeping.
	Name() string
	// FetchRecommendations performs one remote call. It must honor ctx.
	FetchRecommendations(ctx context.Context, req RecommendationRequest) ([]Recommendation, error)
}

// HealthStatus is the coarse classification produced by the provider
// health monitor.
type HealthStatus int

const (
	// HealthStatusHealthy - the provider is answering well enough to use
	HealthStatusHealthy HealthStatus = iota
	// HealthStatusDegraded - the provider fails about as often as it succeeds
	HealthStatusDegraded
	// HealthStatusUnhealthy - the provider fails more often than it succeeds
	HealthStatusUnhealthy
)

// String returns the string representation of HealthStatus
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig defines configuration for circuit breakers
type CircuitBreakerConfig struct {
	Enabled                  bool          `json:"enabled" yaml:"enabled"`
	FailureThreshold         int           `json:"failure_threshold" yaml:"failure_threshold"`
	OpenDuration             time.Duration `json:"open_duration" yaml:"open_duration"`
	CallTimeout              time.Duration `json:"call_timeout" yaml:"call_timeout"`
	HalfOpenSuccessThreshold int           `json:"half_open_success_threshold" yaml:"half_open_success_threshold"`
}

// RateLimitConfig defines configuration for per-provider call spacing
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	RequestsPerPeriod int           `json:"requests_per_period" yaml:"requests_per_period"`
	Period            time.Duration `json:"period" yaml:"period"`
}

// RetryConfig defines configuration for the retry policy
type RetryConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
}

// ThrottleConfig defines configuration for the adaptive throttle registry
type ThrottleConfig struct {
	AdaptiveThrottling bool          `json:"adaptive_throttling" yaml:"adaptive_throttling"`
	DefaultDuration    time.Duration `json:"default_duration" yaml:"default_duration"`
	SweepInterval      time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

// HealthThresholds defines the success-rate boundaries used when
// classifying provider health. The monitor reports Healthy above
// HealthyAbove, Unhealthy below UnhealthyBelow, Degraded in between
// (inclusive on both ends).
type HealthThresholds struct {
	HealthyAbove   float64 `json:"healthy_above" yaml:"healthy_above"`
	UnhealthyBelow float64 `json:"unhealthy_below" yaml:"unhealthy_below"`
	WindowSize     int     `json:"window_size" yaml:"window_size"`
}

// ProviderHealth is a point-in-time health snapshot for one provider.
type ProviderHealth struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	SuccessRate   float64      `json:"success_rate"`
	Successes     int          `json:"successes"`
	Failures      int          `json:"failures"`
	AvgResponseMs float64      `json:"avg_response_ms"`
	CheckedAt     time.Time    `json:"checked_at"`
}
