package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"supplies-radar/internal/bot"
	"supplies-radar/internal/config"
	"supplies-radar/internal/repository"
	"supplies-radar/internal/service"
	"supplies-radar/internal/session"
	"supplies-radar/internal/wbapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// Pool sized for the poller's fan-out plus interactive traffic.
	db, err := repository.NewDB(cfg.DatabaseURL, cfg.PollConcurrency+5)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Warn().Msg("REDIS_URL not set, dialog state will not survive restarts")
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	userRepo := repository.NewUserRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	apiClient := wbapi.New(cfg.SuppliesAPIURL, cfg.APIRatePerSec)
	catalogSvc := service.NewCatalogService(apiClient, warehouseRepo, log)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, warehouseRepo, subscriptionRepo, sessions, apiClient, catalogSvc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}

	poller := service.NewPoller(userRepo, subscriptionRepo, apiClient, telegramBot, cfg.PollConcurrency, cfg.CheckTimeout, log)

	scheduler := service.NewScheduler(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.PollInterval, func() {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.PollInterval)
		defer cancel()
		poller.Tick(tickCtx)
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule poll ticks")
	}
	if _, err := scheduler.ScheduleInterval(cfg.CatalogRefreshInterval, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		catalogSvc.RefreshWithAnyCredential(refreshCtx, userRepo)
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule catalog refresh")
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Msg("supplies radar started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
