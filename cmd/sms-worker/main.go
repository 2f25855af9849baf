package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/gmx-sms-connector/internal/app/bootstrap"
	"github.com/wolfman30/gmx-sms-connector/internal/config"
	"github.com/wolfman30/gmx-sms-connector/internal/observability/metrics"
	messagingworker "github.com/wolfman30/gmx-sms-connector/internal/worker/messaging"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.QueueBackend == "" || cfg.QueueBackend == "memory" {
		logger.Error("sms worker requires QUEUE_BACKEND=sqs or kafka; the memory queue is drained by the API")
		os.Exit(1)
	}

	var gm *metrics.GatewayMetrics
	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		gm = metrics.NewGatewayMetrics(reg)
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

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

	queues, err := bootstrap.BuildQueues(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("failed to build job queue", "error", err)
		os.Exit(1)
	}
	defer queues.Close()

	worker := messagingworker.NewSendWorker(queues.Jobs, conn, logger.Component("sms-worker")).
		WithBatchSize(cfg.WorkerBatchSize).
		WithWaitSeconds(cfg.WorkerWaitSeconds)
	if queues.DeadLetter != nil {
		worker = worker.WithDeadLetterQueue(queues.DeadLetter)
	}
	if gm != nil {
		worker = worker.WithMetrics(gm)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	if cfg.BalanceRefresh > 0 {
		poller := messagingworker.NewBalancePoller(conn, logger.Component("balance")).
			WithInterval(cfg.BalanceRefresh)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}
	logger.Info("sms worker started", "queue", cfg.QueueBackend, "protocol", cfg.Protocol)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("sms worker shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("sms worker did not stop in time")
	}
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
