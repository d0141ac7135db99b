package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mir00r/recommendation-gateway/internal/config"
	"github.com/mir00r/recommendation-gateway/internal/handler"
	"github.com/mir00r/recommendation-gateway/internal/middleware"
	"github.com/mir00r/recommendation-gateway/internal/observability"
	"github.com/mir00r/recommendation-gateway/internal/provider"
	"github.com/mir00r/recommendation-gateway/internal/resilience"
	"github.com/mir00r/recommendation-gateway/internal/service"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":      cfg.Server.Port,
		"providers": len(cfg.Providers),
	}).Info("Starting recommendation gateway")

	metrics := observability.NewMetrics()
	classifier := resilience.NewDefaultClassifier()

	throttles := resilience.NewThrottleRegistry(cfg.Resilience.Throttle, log)
	limiter := resilience.NewRateLimiter(log)
	breakers := resilience.NewBreakerRegistry(cfg.Resilience.CircuitBreaker, classifier, log)
	breakers.OnStateChange(func(resource string, from, to resilience.CircuitBreakerState) {
		metrics.BreakerState.WithLabelValues(resource).Set(float64(to))
	})
	retry := resilience.NewRetryPolicy(classifier, log)
	retry.OnRetry(func(operation string, attempt int) {
		metrics.Retries.WithLabelValues(operation).Inc()
	})

	monitor := service.NewProviderHealthMonitor(cfg.Resilience.Health, log)
	dedup := service.NewDedupService(log)
	defer dedup.Close() //nolint:errcheck

	providers := provider.NewRegistry()
	for _, pc := range cfg.Providers {
		p := provider.NewHTTPProvider(pc, throttles, log)
		if err := providers.Register(p); err != nil {
			log.WithError(err).Fatal("Failed to register provider")
		}
		if cfg.Resilience.RateLimit.Enabled {
			limiter.Configure(p.Name(), cfg.Resilience.RateLimit.RequestsPerPeriod, cfg.Resilience.RateLimit.Period)
		}
	}

	orchestrator := service.NewOrchestrator(
		providers, limiter, breakers, retry, throttles, classifier,
		monitor, dedup, metrics,
		service.OrchestratorConfig{
			Retry:     cfg.Resilience.Retry,
			RateLimit: cfg.Resilience.RateLimit,
		},
		log,
	)

	var jwtAuth *middleware.JWTAuthMiddleware
	if cfg.Admin.Enabled && cfg.Admin.JWTSecret != "" {
		jwtAuth, err = middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{
			Enabled: true,
			Secret:  cfg.Admin.JWTSecret,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize admin auth")
		}
	}

	router := handler.NewRouter(handler.RouterDeps{
		Recommendations: handler.NewRecommendationHandler(orchestrator, dedup, log),
		Admin:           handler.NewAdminHandler(breakers, limiter, throttles, log),
		Health:          handler.NewHealthHandler(monitor, log),
		JWTAuth:         jwtAuth,
		MetricsRegistry: metrics.Registry(),
		MetricsPath:     cfg.Metrics.Path,
		MetricsEnabled:  cfg.Metrics.Enabled,
		AdminEnabled:    cfg.Admin.Enabled,
	})

	// Background maintenance: throttle sweeps and the throttle gauge.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go throttles.Start(ctx)
	gaugeInterval := cfg.Resilience.Throttle.SweepInterval
	if gaugeInterval <= 0 {
		gaugeInterval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(gaugeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.ThrottleEntries.Set(float64(throttles.Size()))
			}
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	log.Info("Shutdown complete")
}
