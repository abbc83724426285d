// Package main provides the entry point for the datachat MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/datachat/internal/client"
	"github.com/raphaelgruber/datachat/internal/config"
	"github.com/raphaelgruber/datachat/internal/metrics"
	"github.com/raphaelgruber/datachat/internal/server"
	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/raphaelgruber/datachat/internal/tools"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	// Log startup info
	logger.Info("datachat-mcp starting",
		"version", version,
		"middleware_url", cfg.MiddlewareURL,
		"recycle_url", cfg.RecycleURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()
	chatClient := client.New(client.Config{
		BaseURL:       cfg.MiddlewareURL,
		Timeout:       cfg.RequestTimeout,
		SystemMessage: cfg.SystemMessage,
		Logger:        logger,
		Metrics:       collector,
	})

	deps := &tools.Dependencies{
		Sessions: session.NewRegistry(chatClient, session.Config{
			Locale: cfg.Locale,
			Logger: logger,
		}),
		Recycle: client.NewRecycle(client.RecycleConfig{
			BaseURL: cfg.RecycleURL,
			Timeout: cfg.RecycleTimeout,
			Logger:  logger,
			Metrics: collector,
		}),
		Logger: logger,
	}

	// Create and setup server (registers tools)
	srv := server.New(version, deps)
	srv.Setup()

	// Log ready state
	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete", "stats", collector.Snapshot())
}
