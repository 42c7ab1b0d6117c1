// Command server is the standalone orchestrator binary: it wires the
// control-plane HTTP surface, the run coordinator, the catalog store
// and the schedule dispatcher together, following cmd/gateway/main.go's
// router/middleware/http.Server/graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stepflow/orchestrator/internal/catalog"
	"github.com/stepflow/orchestrator/internal/config"
	"github.com/stepflow/orchestrator/internal/coordinator"
	"github.com/stepflow/orchestrator/internal/httpapi"
	"github.com/stepflow/orchestrator/internal/logging"
	"github.com/stepflow/orchestrator/internal/metrics"
	"github.com/stepflow/orchestrator/internal/middleware"
	"github.com/stepflow/orchestrator/internal/schedule"
	"github.com/stepflow/orchestrator/internal/verification"
)

const serviceName = "orchestrator"

func main() {
	cfg := config.Load()
	logger := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	logging.InitDefault(serviceName, cfg.LogLevel, cfg.LogFormat)
	m := metrics.Init(serviceName)

	store, err := newCatalogStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize catalog store: %v", err)
	}

	factory := verification.NewFactory(
		verification.NewPostgresConnector(),
		verification.NewRedisConnector(),
		verification.NewElasticsearchConnector(),
	)

	registry := coordinator.NewRunRegistry()
	driver := coordinator.NewDriver(registry, factory, http.DefaultClient, cfg.DefaultStepTimeout, logger, m)

	dispatcher := schedule.NewDispatcher(store, driver, logger, m)
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	dispatcher.Start(dispatcherCtx)

	router := mux.NewRouter()
	router.Use(middleware.RequestLogging(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Metrics(serviceName, m))
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins}))
	// Timeout is deliberately not applied globally: the run/stream
	// endpoints can legitimately run for many steps, each already
	// bounded by cfg.DefaultStepTimeout inside the coordinator.

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	stopRateLimiterCleanup := rateLimiter.StartCleanup(5 * time.Minute)
	defer stopRateLimiterCleanup()
	router.Use(rateLimiter.AsMiddleware())

	health := middleware.NewHealthChecker(serviceName)
	router.HandleFunc("/healthz", health.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/livez", middleware.LivenessHandler()).Methods(http.MethodGet)

	api := httpapi.NewServer(store, driver, logger, cfg.MaxUploadBytes)
	api.Register(router)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout is deliberately unset: the SSE stream endpoints
		// hold the response open for the life of a run, which can
		// legitimately exceed any fixed per-request write deadline.
		// Each step inside that run is still bounded by
		// cfg.DefaultStepTimeout.
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.ListenAddr}).Info("orchestrator listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	dispatcher.Stop()
	cancelDispatcher()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}

func newCatalogStore(cfg config.Config) (catalog.Store, error) {
	if cfg.CatalogDSN == "" {
		return catalog.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return catalog.NewPostgresStore(ctx, cfg.CatalogDSN)
}
