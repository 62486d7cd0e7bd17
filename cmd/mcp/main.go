package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/lovdata-assistant/internal/adapters/mcp"
	"github.com/kirillkom/lovdata-assistant/internal/bootstrap"
	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/observability/logging"
)

var version = "dev"

// stdout carries the MCP protocol, so logs go to stderr.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "mcp"})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(version, mcpadapter.Services{
		Search:    app.SearchUC,
		Documents: app.Repo,
		Assistant: app.AssistantUC,
	})
	logger.Info("mcp_serving", "tools", srv.Tools())
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp_serve_failed", "error", err)
	}
}
