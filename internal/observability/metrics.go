package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. A Metrics value owns
// its own registry so tests can build isolated instances without
// collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	ProviderCalls   *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec
	Retries         *prometheus.CounterVec
	ThrottleEntries prometheus.Gauge
	DedupedItems    prometheus.Counter
}

// NewMetrics creates the collector set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_provider_calls_total",
				Help: "Total number of provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_provider_errors_total",
				Help: "Total number of provider errors by failure kind",
			},
			[]string{"provider", "kind"},
		),
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_provider_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_circuit_breaker_state",
				Help: "Circuit breaker state per resource (0=closed, 1=open, 2=half-open)",
			},
			[]string{"resource"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_retries_total",
				Help: "Total number of retry attempts by operation",
			},
			[]string{"operation"},
		),
		ThrottleEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_throttle_entries",
				Help: "Number of active upstream throttle entries",
			},
		),
		DedupedItems: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_recommendations_deduped_total",
				Help: "Total number of duplicate recommendations dropped",
			},
		),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
