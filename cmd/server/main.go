// Command server runs the app shell HTTP front end on its own, for
// deployments that serve a browser UI and never need the terminal commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"testai/internal/app"
	"testai/internal/config"
	"testai/internal/logger"
)

func main() {
	_ = godotenv.Overload("../.env")
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Overload(".env")
	}

	cfg := config.Load()
	l := logger.New(logger.Options{Level: cfg.LogLevel, Prefix: "testai-server", ReportTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to construct application", "err", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- application.Start()
	}()

	select {
	case err = <-errc:
		if err != nil {
			l.Error("server exited with error", "err", err)
		}
	case <-ctx.Done():
		l.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Shutdown(shutdownCtx)
	if err != nil {
		os.Exit(1)
	}
}
