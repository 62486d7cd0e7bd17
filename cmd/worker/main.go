package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/adapters/scheduler"
	"github.com/kirillkom/lovdata-assistant/internal/bootstrap"
	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/observability/logging"
	"github.com/kirillkom/lovdata-assistant/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, WithQueue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()

	reindex := scheduler.New(app.ProcessUC, scheduler.Options{
		Schedule: cfg.ReindexSchedule,
		Timeout:  cfg.ReindexTimeout,
		OnRun: func(_ int, _ time.Duration, err error) {
			workerMetrics.RecordReindex(serviceName, err)
		},
	})
	if _, err := reindex.Start(); err != nil {
		logger.Error("reindex_schedule_invalid", "schedule", cfg.ReindexSchedule, "error", err)
		os.Exit(1)
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeArchiveUploaded(ctx, func(handlerCtx context.Context, filename string) error {
		workerMetrics.StartArchive()
		startedAt := time.Now()
		archive, err := app.ProcessUC.ProcessArchive(handlerCtx, filename)
		documents := 0
		if archive != nil {
			documents = archive.DocumentCount
		}
		workerMetrics.FinishArchive(serviceName, time.Since(startedAt), documents, err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	reindex.Stop(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("worker_stopped")
}
