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

	httpadapter "github.com/kirillkom/lovdata-assistant/internal/adapters/http"
	"github.com/kirillkom/lovdata-assistant/internal/bootstrap"
	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/observability/logging"
	"github.com/kirillkom/lovdata-assistant/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:           serviceName,
		WithQueue:         true,
		MetricsRegisterer: httpMetrics.Registerer(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	services := httpadapter.Services{
		Documents: app.Repo,
		Search:    app.SearchUC,
		Query:     app.QueryUC,
		Assistant: app.AssistantUC,
	}
	if app.IngestUC != nil {
		services.Archives = app.IngestUC
	}

	opts := []httpadapter.Option{
		httpadapter.WithMetrics(httpMetrics),
		httpadapter.WithHealthDetail("breakers", func() any { return app.Executor.Breakers() }),
	}
	for name, check := range app.HealthChecks {
		opts = append(opts, httpadapter.WithHealthCheck(name, check))
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpadapter.NewRouter(cfg, services, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      cfg.AgentMaxTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	logger.Info("api_stopped")
}
