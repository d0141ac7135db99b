package service

import (
	"context"
	"strings"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/internal/observability"
	"github.com/mir00r/recommendation-gateway/internal/provider"
	"github.com/mir00r/recommendation-gateway/internal/resilience"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// OrchestratorConfig tunes how the orchestrator drives providers.
type OrchestratorConfig struct {
	Retry     domain.RetryConfig
	RateLimit domain.RateLimitConfig
}

// Orchestrator fans a recommendation request out to every registered
// provider, wrapping each call RateLimiter -> CircuitBreaker ->
// RetryPolicy, recording outcomes into the health monitor, and routing
// batch fetches through the duplication prevention service. Failure
// policy lives here: a fully failed fan-out degrades to an empty result
// instead of an error.
type Orchestrator struct {
	providers  *provider.Registry
	limiter    *resilience.RateLimiter
	breakers   *resilience.BreakerRegistry
	retry      *resilience.RetryPolicy
	throttles  *resilience.ThrottleRegistry
	classifier *resilience.Classifier
	monitor    *ProviderHealthMonitor
	dedup      *DedupService
	metrics    *observability.Metrics
	config     OrchestratorConfig
	logger     *logger.Logger
}

// NewOrchestrator wires the resilience chain around the provider registry.
func NewOrchestrator(
	providers *provider.Registry,
	limiter *resilience.RateLimiter,
	breakers *resilience.BreakerRegistry,
	retry *resilience.RetryPolicy,
	throttles *resilience.ThrottleRegistry,
	classifier *resilience.Classifier,
	monitor *ProviderHealthMonitor,
	dedup *DedupService,
	metrics *observability.Metrics,
	config OrchestratorConfig,
	log *logger.Logger,
) *Orchestrator {
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = 3
	}
	if config.Retry.InitialDelay <= 0 {
		config.Retry.InitialDelay = 500 * time.Millisecond
	}
	if classifier == nil {
		classifier = resilience.NewDefaultClassifier()
	}
	return &Orchestrator{
		providers:  providers,
		limiter:    limiter,
		breakers:   breakers,
		retry:      retry,
		throttles:  throttles,
		classifier: classifier,
		monitor:    monitor,
		dedup:      dedup,
		metrics:    metrics,
		config:     config,
		logger:     log.OrchestratorLogger(),
	}
}

// FetchRecommendations runs the request against every provider and
// returns the merged, deduplicated, history-filtered results. Provider
// failures are bounded and classified by the resilience chain; a total
// failure yields an empty slice, never an error, unless the caller's
// context is cancelled.
func (o *Orchestrator) FetchRecommendations(ctx context.Context, req domain.RecommendationRequest) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make([]domain.Recommendation, 0)
	for _, prov := range o.providers.All() {
		recs, err := o.fetchFromProvider(ctx, prov, req)
		if err != nil {
			if o.classifier.Classify(err) == resilience.FailureCancelled {
				return nil, err
			}
			o.logger.WithError(err).WithField("provider", prov.Name()).
				Warn("Provider fetch failed, continuing with remaining providers")
			continue
		}
		merged = append(merged, recs...)
	}

	// Filter against earlier batches first; dedup records this batch
	// into the history as its side effect.
	filtered, err := o.dedup.FilterPreviouslyRecommended(merged, req.SessionAllowList...)
	if err != nil {
		return nil, err
	}

	before := len(filtered)
	deduped, err := o.dedup.DeduplicateRecommendations(filtered)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil && before > len(deduped) {
		o.metrics.DedupedItems.Add(float64(before - len(deduped)))
	}

	if req.MaxResults > 0 && len(deduped) > req.MaxResults {
		deduped = deduped[:req.MaxResults]
	}
	return deduped, nil
}

// fetchFromProvider runs one provider call through the full chain. The
// single-flight key spans provider, model and prompt so identical
// concurrent requests share one upstream call.
func (o *Orchestrator) fetchFromProvider(ctx context.Context, prov domain.Provider, req domain.RecommendationRequest) ([]domain.Recommendation, error) {
	origin := originKey(prov.Name(), req.Model)

	if o.throttles != nil && o.throttles.HasThrottleFor(origin) {
		o.logger.WithField("origin", origin).Debug("Skipping throttled provider")
		if o.metrics != nil {
			o.metrics.ProviderCalls.WithLabelValues(prov.Name(), "throttled").Inc()
		}
		return nil, nil
	}

	fetchKey := origin + "|" + req.Prompt
	result, err := o.dedup.PreventConcurrentFetch(fetchKey, func() (interface{}, error) {
		return o.callProvider(ctx, prov, req)
	})
	if err != nil {
		return nil, err
	}
	recs, _ := result.([]domain.Recommendation)
	return recs, nil
}

// callProvider is the guarded call: rate limit spacing, then the
// breaker's fast-fail and timeout bound, then retries with backoff.
func (o *Orchestrator) callProvider(ctx context.Context, prov domain.Provider, req domain.RecommendationRequest) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	breaker := o.breakers.GetOrCreate(prov.Name())
	start := time.Now()

	err := o.limiter.Execute(ctx, prov.Name(), func(ctx context.Context) error {
		return breaker.Execute(ctx, func(ctx context.Context) error {
			return o.retry.Execute(ctx, func(ctx context.Context) error {
				fetched, err := prov.FetchRecommendations(ctx, req)
				if err != nil {
					return err
				}
				recs = fetched
				return nil
			}, "fetch_recommendations:"+prov.Name(), o.config.Retry.MaxAttempts, o.config.Retry.InitialDelay)
		})
	})

	elapsed := time.Since(start)
	o.recordOutcome(prov.Name(), elapsed, err)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// recordOutcome feeds health monitoring and metrics for one call.
func (o *Orchestrator) recordOutcome(providerName string, elapsed time.Duration, err error) {
	if err == nil {
		o.monitor.RecordSuccess(providerName, float64(elapsed.Milliseconds()))
		if o.metrics != nil {
			o.metrics.ProviderCalls.WithLabelValues(providerName, "success").Inc()
			o.metrics.ProviderLatency.WithLabelValues(providerName).Observe(elapsed.Seconds())
		}
		return
	}

	kind := o.classifier.Classify(err)
	if kind != resilience.FailureCancelled {
		o.monitor.RecordFailure(providerName, err.Error())
	}
	if o.metrics != nil {
		o.metrics.ProviderCalls.WithLabelValues(providerName, "failure").Inc()
		o.metrics.ProviderErrors.WithLabelValues(providerName, kind.String()).Inc()
	}
}

// originKey builds the throttle origin for a provider and model.
func originKey(providerName, model string) string {
	if model == "" {
		return providerName
	}
	return providerName + ":" + strings.ToLower(model)
}
