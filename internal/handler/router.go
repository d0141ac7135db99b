package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mir00r/recommendation-gateway/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Recommendations *RecommendationHandler
	Admin           *AdminHandler
	Health          *HealthHandler
	JWTAuth         *middleware.JWTAuthMiddleware
	MetricsRegistry *prometheus.Registry
	MetricsPath     string
	MetricsEnabled  bool
	AdminEnabled    bool
}

// NewRouter assembles the gateway's HTTP routes.
func NewRouter(deps RouterDeps) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", deps.Health.Liveness).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/recommendations", deps.Recommendations.Recommend).Methods(http.MethodPost)
	api.HandleFunc("/recommendations/history/clear", deps.Recommendations.ClearHistory).Methods(http.MethodPost)
	api.HandleFunc("/providers/health", deps.Health.ProviderHealth).Methods(http.MethodGet)

	if deps.AdminEnabled {
		admin := router.PathPrefix("/admin").Subrouter()
		if deps.JWTAuth != nil {
			admin.Use(deps.JWTAuth.JWTAuth())
		}
		admin.HandleFunc("/circuit-breakers", deps.Admin.CircuitBreakers).Methods(http.MethodGet)
		admin.HandleFunc("/circuit-breakers/reset", deps.Admin.ResetCircuitBreakers).Methods(http.MethodPost)
		admin.HandleFunc("/throttles", deps.Admin.Throttles).Methods(http.MethodGet)
		admin.HandleFunc("/throttles/sweep", deps.Admin.SweepThrottles).Methods(http.MethodPost)
	}

	if deps.MetricsEnabled && deps.MetricsRegistry != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}
