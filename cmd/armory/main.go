package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/voxhall/armory/internal/api"
	"github.com/voxhall/armory/internal/backup"
	"github.com/voxhall/armory/internal/cache"
	"github.com/voxhall/armory/internal/config"
	"github.com/voxhall/armory/internal/database"
	"github.com/voxhall/armory/internal/event"
	"github.com/voxhall/armory/internal/gamedata"
	"github.com/voxhall/armory/internal/logging"
	"github.com/voxhall/armory/internal/maintenance"
	"github.com/voxhall/armory/internal/registry"
	"github.com/voxhall/armory/internal/scan"
	"github.com/voxhall/armory/internal/settings"
	"github.com/voxhall/armory/internal/validate"
	"github.com/voxhall/armory/internal/version"
	"github.com/voxhall/armory/internal/watcher"
	"github.com/voxhall/armory/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("ARMORY_CONFIG_PATH")
	if configPath == "" {
		configPath = "data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// Core services
	settingsStore := settings.NewStore(db)
	cacheStore := cache.NewStore()
	validator := validate.NewValidator(logger)
	reg := registry.NewService(validator, settingsStore, cacheStore, logger)
	if err := reg.Load(context.Background()); err != nil {
		return fmt.Errorf("loading directory registry: %w", err)
	}

	scanner := gamedata.NewScanner(logger)
	coordinator := scan.NewCoordinator(reg, scanner, cacheStore, logger)
	history := scan.NewHistory(db)
	coordinator.SetHistory(history)

	// Event bus
	eventBus := event.NewBus(logger, 256)
	go eventBus.Start()
	defer eventBus.Stop()
	reg.SetEventBus(eventBus)
	coordinator.SetEventBus(eventBus)

	// Webhooks
	webhookService := webhook.NewService(db)
	webhookDispatcher := webhook.NewDispatcher(webhookService, logger)
	for _, eventType := range []event.Type{
		event.DirectoryAdded, event.DirectoryRemoved, event.DirectoryValidated,
		event.ScanCompleted, event.FSChanged,
	} {
		eventBus.Subscribe(eventType, webhookDispatcher.HandleEvent)
	}

	// Database admin services
	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	backupService := backup.NewService(db, backupDir, cfg.Backup.Retention, cfg.Backup.MaxAgeDays, logger)
	maintenanceService := maintenance.NewService(db, cfg.Database.Path, settingsStore, logger)

	logger.Info("starting armory",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	// Probe filesystem notification support for the registered paths.
	probeCache := watcher.NewProbeCache()
	probeCache.ProbeAll(context.Background(), reg.List(), logger)

	router := api.NewRouter(api.RouterDeps{
		Registry:          reg,
		Coordinator:       coordinator,
		Cache:             cacheStore,
		History:           history,
		Settings:          settingsStore,
		WebhookService:    webhookService,
		WebhookDispatcher: webhookDispatcher,
		EventBus:          eventBus,
		Backup:            backupService,
		Maintenance:       maintenanceService,
		Logger:            logger,
		BasePath:          cfg.Server.BasePath,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(ctx),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Backup.Enabled {
		go backupService.StartScheduler(ctx, time.Duration(cfg.Backup.IntervalHours)*time.Hour)
	}
	go maintenanceService.StartScheduler(ctx, 24*time.Hour)

	if cfg.Watcher.Enabled {
		watcherService := watcher.NewService(reg, eventBus, logger, probeCache)
		if cfg.Watcher.DebounceSeconds > 0 {
			watcherService.SetDebounce(time.Duration(cfg.Watcher.DebounceSeconds) * time.Second)
		}
		go watcherService.Start(ctx)
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
