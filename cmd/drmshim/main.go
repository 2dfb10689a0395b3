// drmshim runs the DRM negotiation and license interception shims off-device.
// It emulates the TV platform, installs both shims once, and serves the
// installed entry points over HTTP and MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"drm-shim/internal/config"
	"drm-shim/internal/devicestub"
	"drm-shim/internal/handler"
	"drm-shim/internal/host"
	"drm-shim/internal/interception"
	"drm-shim/internal/middleware"
	"drm-shim/internal/negotiation"
	"drm-shim/internal/registry"
	"drm-shim/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg)

	logger.Info("configuration loaded",
		slog.String("shim_id", cfg.ShimID),
		slog.String("environment", cfg.Environment),
		slog.String("upstream", cfg.Shim.UpstreamLicenseURL),
	)

	// Emulated platform: Chrome-fingerprinted client for the request
	// surfaces, stub CDM for the capability check.
	identity := cfg.Identity()
	cdm := devicestub.NewCDM(cfg.AcceptedRobustness(), logger)
	platform := host.NewHTTPPlatform(transport.NewClient(cfg.UpstreamTimeout()), cdm)

	policy := cfg.Policy()
	if _, err := negotiation.Install(registry.Default, platform, policy, logger); err != nil {
		return fmt.Errorf("installing negotiation shim: %w", err)
	}
	if _, err := interception.Install(registry.Default, platform, cfg.Rules(), logger); err != nil {
		return fmt.Errorf("installing request interception: %w", err)
	}

	h := handler.New(platform, handler.Options{
		Policy:          policy,
		UpstreamURL:     cfg.UpstreamURL,
		UpstreamTimeout: cfg.UpstreamTimeout(),
		Identity:        identity,
		Service:         devicestub.NewService(logger),
	}, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: request ID → recovery → logging → handler
	// Request ID is outermost so panics and access logs carry it.
	httpHandler := middleware.Chain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
			slog.String("device", identity.ModelName),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding license requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability. When a log file is
// configured, records also go to a size-rotated file.
func initLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	// JSON for production (Cloud Logging compatible), text for development
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
