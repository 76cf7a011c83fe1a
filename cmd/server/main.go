package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/partscout/partscout/internal/app"
	"github.com/partscout/partscout/internal/config"
	"github.com/partscout/partscout/internal/logging"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger := logging.New(logging.ParseLevel(cfg.Logging.Level))
		logger.Error("Failed to initialize application", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.Logger.Info("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		a.Shutdown(shutdownCtx)
	}()

	if err := a.Run(ctx); err != nil && err != http.ErrServerClosed {
		a.Logger.Error("Server error", logging.WithField("error", err.Error()))
		os.Exit(1)
	}
}
