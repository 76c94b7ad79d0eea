package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"mcpdock/internal/server"

	"github.com/spf13/cobra"
)

var (
	logFile string
	host    string
	port    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP server exposing server records, deploy/undeploy, health,
and the push-redeploy webhook.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("MCPDOCK_LOG_FILE", ""), "Path to log file (defaults to config value)")
	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to (defaults to config value)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (defaults to config value)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logFile == "" {
		logFile = cfg.LogFile
	}
	if host == "" {
		host = cfg.Host
	}
	if port == 0 {
		port = cfg.Port
	}

	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting mcpdock")

	app, err := newApp(logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return err
	}
	defer app.Close()

	logger.Info("Loaded server records", "count", app.records.Count())
	if app.records.Count() == 0 {
		logger.Warn("No servers registered yet; add some with 'mcpdock add' or the API")
	}

	srv := server.NewServer(app.records, app.manager, app.monitor, app.db, logger)
	srv.WebhookSecret = cfg.WebhookSecret
	if cfg.WebhookSecret == "" {
		logger.Warn("No webhook secret configured; /hooks endpoints are disabled")
	}

	logger.Info("Starting HTTP server", "host", host, "port", port)
	if err := srv.Start(host, port); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Log to both the file and the console
	multiWriter := io.MultiWriter(os.Stdout, file)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler), file, nil
}
