/*
Package domain contains the core business entities and interfaces for the
Recommendation Gateway.

This package implements the Domain layer of Clean Architecture, providing:
- Core business entities (Recommendation, RecommendationRequest)
- Business interfaces (Provider)
- Configuration value objects shared by the resilience components

The domain package is independent of external frameworks and infrastructure,
ensuring the business logic remains testable and maintainable.

Key Components:

Provider Interface:
Provider is the narrow boundary to one remote text-generation backend. The
resilience core never sees transport details; it only needs a callable that
returns recommendations or an error.

	recs, err := prov.FetchRecommendations(ctx, domain.RecommendationRequest{
		Prompt: "recommend albums similar to my library",
	})

HealthStatus:
The coarse health classification produced by the provider health monitor
(healthy, degraded, unhealthy), derived from rolling success rates.
*/
package domain
