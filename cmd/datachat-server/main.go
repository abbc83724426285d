// Package main provides the web relay server for datachat.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/datachat/internal/client"
	"github.com/raphaelgruber/datachat/internal/config"
	"github.com/raphaelgruber/datachat/internal/metrics"
	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/raphaelgruber/datachat/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("starting datachat-server",
		"port", cfg.ServerPort,
		"middleware_url", cfg.MiddlewareURL,
	)

	collector := metrics.NewCollector()
	chatClient := client.New(client.Config{
		BaseURL:       cfg.MiddlewareURL,
		Timeout:       cfg.RequestTimeout,
		SystemMessage: cfg.SystemMessage,
		Logger:        logger,
		Metrics:       collector,
	})
	recycleClient := client.NewRecycle(client.RecycleConfig{
		BaseURL: cfg.RecycleURL,
		Timeout: cfg.RecycleTimeout,
		Logger:  logger,
		Metrics: collector,
	})
	sessions := session.NewRegistry(chatClient, session.Config{
		Locale: cfg.Locale,
		Logger: logger,
	})

	handler := web.NewHandler(sessions, recycleClient, collector, logger)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     handler,
		ReadTimeout: 5 * time.Second,
		// Covers one middleware round trip; websocket streams manage their own deadlines.
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("session API available", "url", fmt.Sprintf("http://localhost:%s/api/sessions", cfg.ServerPort))
		logger.Info("stats available", "url", fmt.Sprintf("http://localhost:%s/stats", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped", "stats", collector.Snapshot())
}
