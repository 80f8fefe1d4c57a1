// watchd is the watchwise daemon: it receives page-state observations from
// the browser-side collaborator, tracks watch sessions, classifies finished
// items, and serves the statistics API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/watchwise/watchwise/internal/bootstrap"
	"github.com/watchwise/watchwise/internal/config"
	"github.com/watchwise/watchwise/internal/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "watchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("WATCHWISE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting watchwise daemon",
		logging.String("version", cfg.Service.Version),
		logging.Int("port", cfg.Service.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	serverErrors, err := components.Start(ctx)
	if err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		if err != nil {
			logger.Error("Server error", logging.Error(err))
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", logging.String("signal", sig.String()))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err = components.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown incomplete", logging.Error(err))
		return err
	}

	logger.Info("Daemon stopped gracefully")
	return nil
}
