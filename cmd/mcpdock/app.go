package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mcpdock/internal/config"
	"mcpdock/internal/deploy"
	"mcpdock/internal/health"
	"mcpdock/internal/platform"
	"mcpdock/internal/registry"
	"mcpdock/internal/resolver"
	"mcpdock/internal/storage"
	"mcpdock/pkg/fileutil"
)

var configFile string

// loadConfig resolves the config file (flag, default search paths, or pure
// defaults) and applies environment overrides.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = fileutil.FindConfigOptional(config.FileName)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cfg.GitHubToken = getEnvOrDefault("MCPDOCK_GITHUB_TOKEN", cfg.GitHubToken)
	cfg.WebhookSecret = getEnvOrDefault("MCPDOCK_WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.DBPath = getEnvOrDefault("MCPDOCK_DB_PATH", cfg.DBPath)
	cfg.CacheDir = getEnvOrDefault("MCPDOCK_CACHE_DIR", cfg.CacheDir)
	cfg.Host = getEnvOrDefault("MCPDOCK_HOST", cfg.Host)
	cfg.Port = getEnvOrDefaultInt("MCPDOCK_PORT", cfg.Port)
	return cfg, nil
}

// app bundles the wired subsystem for one command invocation.
type app struct {
	cfg      *config.Config
	db       *storage.Store
	records  *registry.Store
	platform platform.Resolver
	manager  *deploy.Manager
	monitor  *health.Monitor
	logger   *slog.Logger
}

func newApp(logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	records, err := registry.NewStore(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load server records: %w", err)
	}

	plat, err := hostPlatform(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	source := resolver.NewGitHubResolver(cfg.GitHubToken, cfg.CacheDir)

	manager := deploy.NewManager(records, source, plat, logger)
	manager.Events = db
	manager.KeepBackups = cfg.KeepBackups

	monitor := health.NewMonitor(records, plat, logger)
	monitor.Window = time.Duration(cfg.HealthWindowMinutes) * time.Minute
	manager.Invalidator = monitor

	return &app{
		cfg:      cfg,
		db:       db,
		records:  records,
		platform: plat,
		manager:  manager,
		monitor:  monitor,
		logger:   logger,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// hostPlatform selects the platform paths, honoring config overrides.
func hostPlatform(cfg *config.Config) (platform.Resolver, error) {
	if cfg.HostConfigPath != "" || cfg.HostLogDir != "" {
		static := platform.Static{Config: cfg.HostConfigPath, Logs: cfg.HostLogDir}
		if static.Config == "" || static.Logs == "" {
			detected, err := platform.NewResolver()
			if err != nil {
				return nil, err
			}
			if static.Config == "" {
				if static.Config, err = detected.ConfigPath(); err != nil {
					return nil, err
				}
			}
			if static.Logs == "" {
				if static.Logs, err = detected.LogDir(); err != nil {
					return nil, err
				}
			}
		}
		return static, nil
	}
	return platform.NewResolver()
}

// cliLogger keeps one-shot command output clean: warnings and errors only,
// plain text on stderr.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
