package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

const (
	defaultHealthWindowSize = 100
	maxReasonableLatencyMs  = float64(10 * time.Minute / time.Millisecond)
)

// healthRecord holds the rolling outcome window for one provider.
type healthRecord struct {
	outcomes  []bool    // true = success, bounded to windowSize
	latencies []float64 // response times in ms for successful calls
	lastError string
	lastSeen  time.Time
}

// ProviderHealthMonitor keeps rolling success/failure and latency windows
// per provider and produces a coarse health classification. Providers are
// tracked fully independently.
type ProviderHealthMonitor struct {
	thresholds domain.HealthThresholds
	records    map[string]*healthRecord
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewProviderHealthMonitor creates a monitor. Zero thresholds get the
// defaults: healthy above 0.5, unhealthy below 0.5, window of 100 calls.
func NewProviderHealthMonitor(thresholds domain.HealthThresholds, log *logger.Logger) *ProviderHealthMonitor {
	if thresholds.WindowSize <= 0 {
		thresholds.WindowSize = defaultHealthWindowSize
	}
	if thresholds.HealthyAbove <= 0 {
		thresholds.HealthyAbove = 0.5
	}
	if thresholds.UnhealthyBelow <= 0 {
		thresholds.UnhealthyBelow = 0.5
	}
	return &ProviderHealthMonitor{
		thresholds: thresholds,
		records:    make(map[string]*healthRecord),
		logger:     log.HealthMonitorLogger(),
	}
}

// RecordSuccess appends a successful call. Degenerate response times
// (NaN, negative, absurdly large) are dropped from the latency window but
// the success itself is still counted.
func (m *ProviderHealthMonitor) RecordSuccess(provider string, responseTimeMs float64) {
	if provider == "" {
		m.logger.Debug("Ignoring success record with empty provider name")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(provider)
	m.appendOutcome(rec, true)
	if !math.IsNaN(responseTimeMs) && responseTimeMs >= 0 && responseTimeMs <= maxReasonableLatencyMs {
		rec.latencies = append(rec.latencies, responseTimeMs)
		if len(rec.latencies) > m.thresholds.WindowSize {
			rec.latencies = rec.latencies[1:]
		}
	}
}

// RecordFailure appends a failed call.
func (m *ProviderHealthMonitor) RecordFailure(provider, errorMessage string) {
	if provider == "" {
		m.logger.Debug("Ignoring failure record with empty provider name")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(provider)
	m.appendOutcome(rec, false)
	rec.lastError = errorMessage
}

// CheckHealth classifies the provider from its retained window. A
// provider with no recorded data defaults to healthy. baseURL is carried
// for observability only.
func (m *ProviderHealthMonitor) CheckHealth(ctx context.Context, provider, baseURL string) (domain.ProviderHealth, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProviderHealth{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	health := domain.ProviderHealth{
		Provider:  provider,
		Status:    domain.HealthStatusHealthy,
		CheckedAt: time.Now(),
	}

	rec, ok := m.records[provider]
	if !ok || len(rec.outcomes) == 0 {
		health.SuccessRate = 1.0
		return health, nil
	}

	successes := 0
	for _, outcome := range rec.outcomes {
		if outcome {
			successes++
		}
	}
	failures := len(rec.outcomes) - successes
	rate := float64(successes) / float64(len(rec.outcomes))

	health.Successes = successes
	health.Failures = failures
	health.SuccessRate = rate
	health.AvgResponseMs = average(rec.latencies)

	switch {
	case rate > m.thresholds.HealthyAbove:
		health.Status = domain.HealthStatusHealthy
	case rate < m.thresholds.UnhealthyBelow:
		health.Status = domain.HealthStatusUnhealthy
	default:
		health.Status = domain.HealthStatusDegraded
	}

	m.logger.WithFields(map[string]interface{}{
		"provider":     provider,
		"base_url":     baseURL,
		"success_rate": rate,
		"status":       health.Status.String(),
	}).Debug("Provider health computed")

	return health, nil
}

// Providers returns the names of every tracked provider.
func (m *ProviderHealthMonitor) Providers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	return names
}

// record returns the (possibly new) record for provider. Caller holds m.mu.
func (m *ProviderHealthMonitor) record(provider string) *healthRecord {
	rec, ok := m.records[provider]
	if !ok {
		rec = &healthRecord{}
		m.records[provider] = rec
	}
	rec.lastSeen = time.Now()
	return rec
}

// appendOutcome appends to the bounded rolling window. Caller holds m.mu.
func (m *ProviderHealthMonitor) appendOutcome(rec *healthRecord, success bool) {
	rec.outcomes = append(rec.outcomes, success)
	if len(rec.outcomes) > m.thresholds.WindowSize {
		rec.outcomes = rec.outcomes[1:]
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
