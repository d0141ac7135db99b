package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/internal/provider"
	"gopkg.in/yaml.v2"
)

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Providers  []provider.HTTPConfig `yaml:"providers"`
	Resilience ResilienceConfig      `yaml:"resilience"`
	Logging    LoggingConfig         `yaml:"logging"`
	Metrics    MetricsConfig         `yaml:"metrics"`
	Admin      AdminConfig           `yaml:"admin"`
}

// ServerConfig contains HTTP server specific configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// ResilienceConfig groups the tuning for the resilience components
type ResilienceConfig struct {
	CircuitBreaker domain.CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      domain.RateLimitConfig      `yaml:"rate_limit"`
	Retry          domain.RetryConfig          `yaml:"retry"`
	Throttle       domain.ThrottleConfig       `yaml:"throttle"`
	Health         domain.HealthThresholds     `yaml:"health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AdminConfig contains admin API configuration
type AdminConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: domain.CircuitBreakerConfig{
				Enabled:                  true,
				FailureThreshold:         5,
				OpenDuration:             60 * time.Second,
				CallTimeout:              30 * time.Second,
				HalfOpenSuccessThreshold: 2,
			},
			RateLimit: domain.RateLimitConfig{
				Enabled:           true,
				RequestsPerPeriod: 60,
				Period:            time.Minute,
			},
			Retry: domain.RetryConfig{
				Enabled:      true,
				MaxAttempts:  3,
				InitialDelay: 500 * time.Millisecond,
			},
			Throttle: domain.ThrottleConfig{
				AdaptiveThrottling: true,
				DefaultDuration:    time.Minute,
				SweepInterval:      5 * time.Minute,
			},
			Health: domain.HealthThresholds{
				HealthyAbove:   0.5,
				UnhealthyBelow: 0.5,
				WindowSize:     100,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Admin: AdminConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration: defaults, then an optional YAML file
// named by CONFIG_FILE, then environment variable overrides.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromFile loads configuration from an explicit YAML file path.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	applyEnvironment(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d has no name", i)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q has no base_url", p.Name)
		}
	}
	if c.Resilience.Health.HealthyAbove < c.Resilience.Health.UnhealthyBelow {
		return fmt.Errorf("health thresholds inverted: healthy_above %.2f < unhealthy_below %.2f",
			c.Resilience.Health.HealthyAbove, c.Resilience.Health.UnhealthyBelow)
	}
	return nil
}
