package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/lovdata-assistant/internal/adapters/cli"
	"github.com/kirillkom/lovdata-assistant/internal/bootstrap"
	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "lovctl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *bootstrap.App
	open := func(ctx context.Context) (cli.Services, error) {
		var err error
		app, err = bootstrap.New(ctx, cfg, bootstrap.Options{Service: "lovctl"})
		if err != nil {
			return cli.Services{}, err
		}
		return cli.Services{
			Storage:   app.Storage,
			Processor: app.ProcessUC,
			Reindexer: app.ProcessUC,
			Search:    app.SearchUC,
			Documents: app.Repo,
			Assistant: app.AssistantUC,
		}, nil
	}

	err := cli.NewRootCommand(open, version).ExecuteContext(ctx)
	if app != nil {
		app.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
