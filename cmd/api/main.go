package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"todoTracker/internal/app"
	"todoTracker/internal/config"
	"todoTracker/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		logger.Error("App: Init failed", err)
		a.Close()
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("App: Server stopped with error", err)
		a.Close()
		os.Exit(1)
	}

	logger.Info("App: Server stopped")
	a.Close()
}
