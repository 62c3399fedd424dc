package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/Freeeeeet/rasp_bot/internal/app"
	"github.com/Freeeeeet/rasp_bot/internal/calendar"
	"github.com/Freeeeeet/rasp_bot/internal/config"
	"github.com/Freeeeeet/rasp_bot/internal/controller"
	"github.com/Freeeeeet/rasp_bot/internal/migrations"
	"github.com/Freeeeeet/rasp_bot/internal/rasp"
	"github.com/Freeeeeet/rasp_bot/internal/repository"
	"github.com/Freeeeeet/rasp_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	settings, err := config.LoadSyncSettings(cfg.SyncConfigPath)
	if err != nil {
		log.Fatalf("Failed to load sync settings: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting rasp bot",
		zap.String("environment", cfg.Environment),
		zap.String("timezone", settings.Location.String()),
		zap.String("sync_cron", settings.SyncCron),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, settings, logger); err != nil {
		logger.Fatal("Bot stopped with error", zap.Error(err))
	}

	logger.Info("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config, settings *config.SyncSettings, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("create db pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	migrator, err := app.NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	users := repository.NewUserRepository(pool)
	providers := repository.NewProviderRepository(pool)
	directory := repository.NewDirectoryRepository(pool)

	raspClient := rasp.NewClient(rasp.Options{
		Origin:        cfg.RaspOrigin,
		ReserveOrigin: cfg.ReserveOrigin,
		Location:      settings.Location,
		HTTPClient:    &http.Client{Timeout: settings.HTTPTimeout},
		CatalogTTL:    settings.CatalogTTL,
	}, providers, logger.Named("rasp"))

	calendarClient, err := calendar.New(ctx, cfg.CredentialsFile, settings.Location, logger.Named("calendar"))
	if err != nil {
		return err
	}

	students := service.NewDirectoryCache()
	directoryService := service.NewDirectoryService(providers, raspClient, directory, students, service.DirectoryOptions{
		Spaces:  settings.DirectorySpaces,
		Refresh: settings.DirectoryRefresh,
		Retry:   settings.DirectoryRetry,
	}, logger.Named("directory"))

	if err := directoryService.Load(ctx); err != nil {
		logger.Warn("Student directory is not loaded", zap.Error(err))
	}
	go func() {
		if err := directoryService.Watch(ctx); err != nil {
			logger.Error("Student directory watch stopped", zap.Error(err))
		}
	}()

	syncService := service.NewSyncService(users, providers, raspClient, calendarClient, service.SyncOptions{
		Location:        settings.Location,
		ActiveFromHour:  settings.ActiveFromHour,
		ActiveToHour:    settings.ActiveToHour,
		ActiveThreshold: settings.ActiveThreshold,
		IdleThreshold:   settings.IdleThreshold,
	}, logger.Named("sync"))

	userService := service.NewUserService(raspClient, providers, calendarClient, users, directoryService, students, logger)

	scheduler, err := app.NewScheduler(settings.SyncCron, settings.Location, syncService, directoryService, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		scheduler.Stop(shutdownCtx)
	}()

	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_TOKEN is not set, running background sync only")
		<-ctx.Done()
		return nil
	}

	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	botController := controller.NewBotController(b, userService, students, logger.Named("bot"))
	if err := botController.RegisterHandlers(ctx); err != nil {
		logger.Warn("Bot commands menu is not set", zap.Error(err))
	}

	botController.Start(ctx)
	return nil
}
