package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/gmx-sms-connector/internal/api/router"
	"github.com/wolfman30/gmx-sms-connector/internal/app/bootstrap"
	appconfig "github.com/wolfman30/gmx-sms-connector/internal/config"
	"github.com/wolfman30/gmx-sms-connector/internal/connector"
	"github.com/wolfman30/gmx-sms-connector/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gmx-sms-connector/internal/http/middleware"
	"github.com/wolfman30/gmx-sms-connector/internal/observability/metrics"
	"github.com/wolfman30/gmx-sms-connector/internal/queue"
	messagingworker "github.com/wolfman30/gmx-sms-connector/internal/worker/messaging"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting gmx-sms-connector API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"protocol", cfg.Protocol,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, gm := setupMetrics(cfg.MetricsEnabled)

	store, closeStore, err := bootstrap.BuildPreferenceStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build preference store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	conn, err := bootstrap.BuildConnector(cfg, store, gm, logger)
	if err != nil {
		logger.Error("failed to build connector", "error", err)
		os.Exit(1)
	}

	queues, err := bootstrap.BuildQueues(ctx, cfg, logger, false)
	if err != nil {
		logger.Error("failed to build job queue", "error", err)
		os.Exit(1)
	}
	defer queues.Close()
	inline := setupInlineWorker(ctx, cfg, queues, conn, gm, logger)

	var limiter *httpmiddleware.SendLimiter
	if cfg.SendRateLimit > 0 {
		limiter = httpmiddleware.NewSendLimiter(cfg.SendRateLimit, cfg.SendRateBurst)
	}
	r := router.New(&router.Config{
		Logger: logger,
		Connector: handlers.NewConnectorHandler(handlers.ConnectorHandlerConfig{
			Connector: conn,
			Outbox:    queues.Jobs,
			Logger:    logger.Component("http"),
		}),
		MetricsHandler: metricsHandler,
		APISecret:      cfg.APIJWTSecret,
		SendLimiter:    limiter,
	})
	if cfg.APIJWTSecret == "" {
		logger.Warn("API_JWT_SECRET not set; /v1 endpoints are unauthenticated")
	}

	// Gateway calls can take connect+read timeout per host.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	waitForInlineWorker(inline, cfg.ShutdownTimeout, logger)
	logger.Info("server stopped")
}

// setupMetrics registers the gateway metrics on a private registry. With
// metrics disabled it returns no handler and nil metrics.
func setupMetrics(enabled bool) (http.Handler, *metrics.GatewayMetrics) {
	if !enabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gm := metrics.NewGatewayMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), gm
}

// setupInlineWorker consumes the in-memory outbox inside the API process,
// since no other process can reach it.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, queues *bootstrap.Queues, conn *connector.Connector, gm *metrics.GatewayMetrics, logger *logging.Logger) <-chan struct{} {
	if _, ok := queues.Jobs.(*queue.MemoryQueue); !ok {
		return nil
	}
	worker := messagingworker.NewSendWorker(queues.Jobs, conn, logger.Component("inline-worker")).
		WithBatchSize(cfg.WorkerBatchSize).
		WithWaitSeconds(0)
	if gm != nil {
		worker = worker.WithMetrics(gm)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	logger.Info("inline sms worker started")
	return done
}

func waitForInlineWorker(done <-chan struct{}, timeout time.Duration, logger *logging.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("inline sms worker did not stop in time")
	}
}
