package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvironment overrides configuration from environment variables.
// Only operationally interesting knobs are exposed; everything else
// belongs in the YAML file.
func applyEnvironment(cfg *Config) {
	cfg.Server.Port = getEnvInt("GW_PORT", cfg.Server.Port)
	cfg.Logging.Level = getEnv("GW_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("GW_LOG_FORMAT", cfg.Logging.Format)

	cfg.Resilience.CircuitBreaker.Enabled = getEnvBool("GW_CIRCUIT_BREAKER_ENABLED", cfg.Resilience.CircuitBreaker.Enabled)
	cfg.Resilience.CircuitBreaker.FailureThreshold = getEnvInt("GW_CIRCUIT_BREAKER_FAILURE_THRESHOLD", cfg.Resilience.CircuitBreaker.FailureThreshold)
	cfg.Resilience.CircuitBreaker.OpenDuration = getEnvDuration("GW_CIRCUIT_BREAKER_OPEN_DURATION", cfg.Resilience.CircuitBreaker.OpenDuration)
	cfg.Resilience.CircuitBreaker.CallTimeout = getEnvDuration("GW_CIRCUIT_BREAKER_CALL_TIMEOUT", cfg.Resilience.CircuitBreaker.CallTimeout)

	cfg.Resilience.RateLimit.Enabled = getEnvBool("GW_RATE_LIMIT_ENABLED", cfg.Resilience.RateLimit.Enabled)
	cfg.Resilience.RateLimit.RequestsPerPeriod = getEnvInt("GW_RATE_LIMIT_REQUESTS", cfg.Resilience.RateLimit.RequestsPerPeriod)
	cfg.Resilience.RateLimit.Period = getEnvDuration("GW_RATE_LIMIT_PERIOD", cfg.Resilience.RateLimit.Period)

	cfg.Resilience.Retry.MaxAttempts = getEnvInt("GW_RETRY_MAX_ATTEMPTS", cfg.Resilience.Retry.MaxAttempts)
	cfg.Resilience.Retry.InitialDelay = getEnvDuration("GW_RETRY_INITIAL_DELAY", cfg.Resilience.Retry.InitialDelay)

	cfg.Resilience.Throttle.AdaptiveThrottling = getEnvBool("GW_ADAPTIVE_THROTTLING", cfg.Resilience.Throttle.AdaptiveThrottling)
	cfg.Resilience.Throttle.DefaultDuration = getEnvDuration("GW_THROTTLE_DURATION", cfg.Resilience.Throttle.DefaultDuration)

	cfg.Admin.Enabled = getEnvBool("GW_ADMIN_ENABLED", cfg.Admin.Enabled)
	cfg.Admin.JWTSecret = getEnv("GW_ADMIN_JWT_SECRET", cfg.Admin.JWTSecret)

	cfg.Metrics.Enabled = getEnvBool("GW_METRICS_ENABLED", cfg.Metrics.Enabled)
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as int or a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvBool returns an environment variable as bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration returns an environment variable as duration or a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
