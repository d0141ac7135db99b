package handler

import (
	"net/http"

	"github.com/mir00r/recommendation-gateway/internal/resilience"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// AdminHandler exposes operational controls over the resilience layer.
type AdminHandler struct {
	breakers  *resilience.BreakerRegistry
	limiter   *resilience.RateLimiter
	throttles *resilience.ThrottleRegistry
	logger    *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(breakers *resilience.BreakerRegistry, limiter *resilience.RateLimiter, throttles *resilience.ThrottleRegistry, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		breakers:  breakers,
		limiter:   limiter,
		throttles: throttles,
		logger:    log.WithField("component", "admin_handler"),
	}
}

// CircuitBreakers handles GET /admin/circuit-breakers
func (h *AdminHandler) CircuitBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"circuit_breakers": h.breakers.AllStatistics(),
	})
}

// ResetCircuitBreakers handles POST /admin/circuit-breakers/reset
func (h *AdminHandler) ResetCircuitBreakers(w http.ResponseWriter, r *http.Request) {
	h.breakers.ResetAll()
	h.logger.Info("All circuit breakers reset via admin API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Throttles handles GET /admin/throttles
func (h *AdminHandler) Throttles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_throttles": h.throttles.Size(),
		"rate_limiter":     h.limiter.Stats(),
	})
}

// SweepThrottles handles POST /admin/throttles/sweep
func (h *AdminHandler) SweepThrottles(w http.ResponseWriter, r *http.Request) {
	removed := h.throttles.RunMaintenanceOnce()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "swept",
		"removed": removed,
	})
}
