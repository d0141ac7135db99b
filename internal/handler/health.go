package handler

import (
	"net/http"
	"sort"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/internal/service"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// HealthHandler reports gateway liveness and provider health.
type HealthHandler struct {
	monitor *service.ProviderHealthMonitor
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(monitor *service.ProviderHealthMonitor, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		monitor: monitor,
		logger:  log.WithField("component", "health_handler"),
	}
}

// Liveness handles GET /health
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProviderHealth handles GET /api/v1/providers/health
func (h *HealthHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	names := h.monitor.Providers()
	sort.Strings(names)

	statuses := make([]domain.ProviderHealth, 0, len(names))
	for _, name := range names {
		health, err := h.monitor.CheckHealth(r.Context(), name, "")
		if err != nil {
			h.logger.WithError(err).WithField("provider", name).Warn("Health check failed")
			continue
		}
		statuses = append(statuses, health)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": statuses,
	})
}
