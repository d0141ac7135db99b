package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/internal/provider"
	"github.com/mir00r/recommendation-gateway/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable domain.Provider for orchestrator tests.
type fakeProvider struct {
	name  string
	recs  []domain.Recommendation
	err   error
	calls int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchRecommendations(ctx context.Context, req domain.RecommendationRequest) ([]domain.Recommendation, error) {
	atomic.AddInt32(&p.calls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.recs, nil
}

func newTestOrchestrator(t *testing.T, providers ...domain.Provider) (*Orchestrator, *DedupService) {
	t.Helper()

	log := newTestLogger(t)
	registry := provider.NewRegistry()
	for _, prov := range providers {
		require.NoError(t, registry.Register(prov))
	}

	classifier := resilience.NewDefaultClassifier()
	limiter := resilience.NewRateLimiter(log)
	breakers := resilience.NewBreakerRegistry(domain.CircuitBreakerConfig{Enabled: true}, classifier, log)
	retry := resilience.NewRetryPolicy(classifier, log)
	throttles := resilience.NewThrottleRegistry(domain.ThrottleConfig{AdaptiveThrottling: true}, log)
	monitor := NewProviderHealthMonitor(domain.HealthThresholds{}, log)
	dedup := NewDedupService(log)
	t.Cleanup(func() { _ = dedup.Close() })

	orch := NewOrchestrator(registry, limiter, breakers, retry, throttles, classifier, monitor, dedup, nil, OrchestratorConfig{
		Retry: domain.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond},
	}, log)
	return orch, dedup
}

func TestFetchRecommendationsMergesProviders(t *testing.T) {
	t.Parallel()

	orch, _ := newTestOrchestrator(t,
		&fakeProvider{name: "alpha", recs: []domain.Recommendation{rec("Pink Floyd", "The Wall")}},
		&fakeProvider{name: "beta", recs: []domain.Recommendation{rec("Led Zeppelin", "IV")}},
	)

	result, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err)
	require.Len(t, result, 2)

	// Registry iteration is name-sorted, so alpha's results come first.
	assert.Equal(t, "Pink Floyd", result[0].Artist)
	assert.Equal(t, "Led Zeppelin", result[1].Artist)
}

func TestFetchRecommendationsDeduplicatesAcrossProviders(t *testing.T) {
	t.Parallel()

	orch, _ := newTestOrchestrator(t,
		&fakeProvider{name: "alpha", recs: []domain.Recommendation{rec("Pink Floyd", "The Wall")}},
		&fakeProvider{name: "beta", recs: []domain.Recommendation{rec("Pink Floyd", "The Wall"), rec("Led Zeppelin", "IV")}},
	)

	result, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestFetchRecommendationsFiltersEarlierBatches(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "alpha", recs: []domain.Recommendation{
		rec("Pink Floyd", "The Wall"),
		rec("Led Zeppelin", "IV"),
	}}
	orch, _ := newTestOrchestrator(t, prov)

	first, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// The second batch repeats both items plus a new one. Only the new
	// one survives the history filter.
	prov.recs = append(prov.recs, rec("The Beatles", "Abbey Road"))
	second, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "more rock"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "The Beatles", second[0].Artist)
}

func TestFetchRecommendationsTotalFailureDegrades(t *testing.T) {
	t.Parallel()

	orch, _ := newTestOrchestrator(t,
		&fakeProvider{name: "alpha", err: errors.New("model overloaded (503)")},
		&fakeProvider{name: "beta", err: errors.New("model overloaded (503)")},
	)

	result, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err, "total provider failure degrades to empty, never an error")
	assert.Empty(t, result)
}

func TestFetchRecommendationsPartialFailureKeepsGoodResults(t *testing.T) {
	t.Parallel()

	orch, _ := newTestOrchestrator(t,
		&fakeProvider{name: "alpha", err: errors.New("connection refused")},
		&fakeProvider{name: "beta", recs: []domain.Recommendation{rec("Led Zeppelin", "IV")}},
	)

	result, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Led Zeppelin", result[0].Artist)
}

func TestFetchRecommendationsCancellationPropagates(t *testing.T) {
	t.Parallel()

	orch, _ := newTestOrchestrator(t,
		&fakeProvider{name: "alpha", recs: []domain.Recommendation{rec("Pink Floyd", "The Wall")}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.FetchRecommendations(ctx, domain.RecommendationRequest{Prompt: "rock"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRecommendationsHonorsMaxResults(t *testing.T) {
	t.Parallel()

	orch, _ := newTestOrchestrator(t,
		&fakeProvider{name: "alpha", recs: []domain.Recommendation{
			rec("Pink Floyd", "The Wall"),
			rec("Led Zeppelin", "IV"),
			rec("The Beatles", "Abbey Road"),
		}},
	)

	result, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestFetchRecommendationsSkipsThrottledProvider(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "alpha", recs: []domain.Recommendation{rec("Pink Floyd", "The Wall")}}
	orch, _ := newTestOrchestrator(t, prov)

	orch.throttles.RegisterThrottle("alpha", time.Minute, 0)

	result, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, int32(0), atomic.LoadInt32(&prov.calls), "throttled provider is never invoked")
}

func TestFetchRecommendationsAllowListReincludes(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "alpha", recs: []domain.Recommendation{rec("Pink Floyd", "The Wall")}}
	orch, _ := newTestOrchestrator(t, prov)

	first, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{Prompt: "rock"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := orch.FetchRecommendations(context.Background(), domain.RecommendationRequest{
		Prompt:           "rock again",
		SessionAllowList: []string{"pink floyd|the wall"},
	})
	require.NoError(t, err)
	assert.Len(t, second, 1, "allow-listed key bypasses the session history")
}
