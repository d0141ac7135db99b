package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providerConfig(name, baseURL string) provider.HTTPConfig {
	return provider.HTTPConfig{Name: name, BaseURL: baseURL}
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Resilience.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Resilience.CircuitBreaker.OpenDuration)
	assert.Equal(t, 60, cfg.Resilience.RateLimit.RequestsPerPeriod)
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxAttempts)
	assert.True(t, cfg.Resilience.Throttle.AdaptiveThrottling)
	assert.Equal(t, 0.5, cfg.Resilience.Health.HealthyAbove)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
providers:
  - name: openai
    base_url: https://api.openai.com
    model: gpt-4
resilience:
  circuit_breaker:
    failure_threshold: 10
  retry:
    max_attempts: 5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "openai", cfg.Providers[0].Name)
	assert.Equal(t, 10, cfg.Resilience.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 5, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, time.Minute, cfg.Resilience.RateLimit.Period)
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GW_PORT", "7070")
	t.Setenv("GW_LOG_LEVEL", "warn")
	t.Setenv("GW_CIRCUIT_BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("GW_RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("GW_ADAPTIVE_THROTTLING", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Resilience.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Resilience.Retry.InitialDelay)
	assert.False(t, cfg.Resilience.Throttle.AdaptiveThrottling)
}

func TestEnvironmentIgnoresMalformedValues(t *testing.T) {
	t.Setenv("GW_PORT", "not-a-port")
	t.Setenv("GW_RETRY_INITIAL_DELAY", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Resilience.Retry.InitialDelay)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Providers = append(cfg.Providers, providerConfig("", "https://api.example.com"))
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Providers = append(cfg.Providers, providerConfig("openai", ""))
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Resilience.Health.HealthyAbove = 0.3
	cfg.Resilience.Health.UnhealthyBelow = 0.7
	assert.Error(t, cfg.Validate())
}
