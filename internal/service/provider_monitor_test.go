package service

import (
	"context"
	"math"
	"testing"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) *ProviderHealthMonitor {
	t.Helper()
	return NewProviderHealthMonitor(domain.HealthThresholds{}, newTestLogger(t))
}

func feed(m *ProviderHealthMonitor, provider string, successes, failures int) {
	for i := 0; i < successes; i++ {
		m.RecordSuccess(provider, 120)
	}
	for i := 0; i < failures; i++ {
		m.RecordFailure(provider, "upstream error")
	}
}

func TestCheckHealthClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		successes int
		failures  int
		want      domain.HealthStatus
		wantRate  float64
	}{
		{"above half is healthy", 7, 3, domain.HealthStatusHealthy, 0.7},
		{"exactly half is degraded", 5, 5, domain.HealthStatusDegraded, 0.5},
		{"below half is unhealthy", 2, 8, domain.HealthStatusUnhealthy, 0.2},
		{"all successes", 10, 0, domain.HealthStatusHealthy, 1.0},
		{"all failures", 0, 10, domain.HealthStatusUnhealthy, 0.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			monitor := newTestMonitor(t)
			feed(monitor, "openai", tt.successes, tt.failures)

			health, err := monitor.CheckHealth(context.Background(), "openai", "https://api.example.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, health.Status)
			assert.InDelta(t, tt.wantRate, health.SuccessRate, 1e-9)
			assert.Equal(t, tt.successes, health.Successes)
			assert.Equal(t, tt.failures, health.Failures)
		})
	}
}

func TestCheckHealthNoDataDefaultsHealthy(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t)

	health, err := monitor.CheckHealth(context.Background(), "never-seen", "")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)
	assert.Equal(t, 1.0, health.SuccessRate)
}

func TestProvidersTrackedIndependently(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t)
	feed(monitor, "stable", 10, 0)
	feed(monitor, "flaky", 0, 10)

	stable, err := monitor.CheckHealth(context.Background(), "stable", "")
	require.NoError(t, err)
	flaky, err := monitor.CheckHealth(context.Background(), "flaky", "")
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusHealthy, stable.Status)
	assert.Equal(t, domain.HealthStatusUnhealthy, flaky.Status)
	assert.ElementsMatch(t, []string{"stable", "flaky"}, monitor.Providers())
}

func TestRollingWindowEvictsOldOutcomes(t *testing.T) {
	t.Parallel()

	monitor := NewProviderHealthMonitor(domain.HealthThresholds{WindowSize: 10}, newTestLogger(t))

	// Ten failures, then ten successes: the window only retains the
	// successes, so the provider recovers.
	feed(monitor, "recovering", 0, 10)
	feed(monitor, "recovering", 10, 0)

	health, err := monitor.CheckHealth(context.Background(), "recovering", "")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)
	assert.Equal(t, 1.0, health.SuccessRate)
}

func TestDegenerateLatenciesDropped(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t)
	monitor.RecordSuccess("openai", math.NaN())
	monitor.RecordSuccess("openai", -5)
	monitor.RecordSuccess("openai", math.Inf(1))
	monitor.RecordSuccess("openai", 100)

	health, err := monitor.CheckHealth(context.Background(), "openai", "")
	require.NoError(t, err)

	// All four calls count as successes, but only the sane latency
	// contributes to the average.
	assert.Equal(t, 4, health.Successes)
	assert.Equal(t, 100.0, health.AvgResponseMs)
}

func TestEmptyProviderNameIgnored(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t)
	monitor.RecordSuccess("", 100)
	monitor.RecordFailure("", "oops")

	assert.Empty(t, monitor.Providers())
}

func TestCheckHealthHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	monitor := newTestMonitor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := monitor.CheckHealth(ctx, "openai", "")
	assert.ErrorIs(t, err, context.Canceled)
}
