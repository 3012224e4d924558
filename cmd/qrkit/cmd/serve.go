package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrkit/internal/server"
	"github.com/MeKo-Tech/qrkit/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start an HTTP server for decoding and generating codes.

Endpoints:
  GET  /health      - Health check
  GET  /formats     - Supported symbologies and output formats
  POST /decode      - Decode an uploaded image (multipart field "image")
  POST /decode/pdf  - Decode the images of an uploaded PDF (field "pdf")
  POST /encode      - Render a QR code
  POST /barcode     - Render a 1D barcode
  GET  /ws/scan     - WebSocket live scan, one binary message per frame
  GET  /metrics     - Prometheus metrics

Examples:
  qrkit serve
  qrkit serve --port 8080
  qrkit serve --host 0.0.0.0 --rate-limit-enabled --requests-per-minute 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int("max-upload-size", 20, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int("cache-ttl", 600, "lifetime of cached encode results in seconds")
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 5000, "maximum requests per day per client")
	f.Int64("max-data-per-day", 100*1024*1024, "maximum bytes uploaded per day per client")
	return cmd
}

// applyServeFlags overrides the server section with changed flags.
func applyServeFlags(cmd *cobra.Command, a *app) {
	sc := &a.config().Server
	f := cmd.Flags()
	if f.Changed("host") {
		sc.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		sc.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		sc.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		sc.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		sc.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("cache-ttl") {
		sc.CacheTTLSec, _ = f.GetInt("cache-ttl")
	}
	if f.Changed("rate-limit-enabled") {
		sc.RateLimit.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		sc.RateLimit.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		sc.RateLimit.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		sc.RateLimit.RequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		sc.RateLimit.MaxDataPerDay, _ = f.GetInt64("max-data-per-day")
	}
}

func (a *app) runServe(cmd *cobra.Command) error {
	applyServeFlags(cmd, a)
	cfg := a.config()
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
	}

	serverConfig, err := server.ConfigFromApp(cfg)
	if err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	serverConfig.Version = version.Version
	srv := server.NewServer(serverConfig)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// No WriteTimeout: scan sockets are long-lived.
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting qrkit server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	<-ctx.Done()
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	default:
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
