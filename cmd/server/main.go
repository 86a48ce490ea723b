package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tokopos/backend/internal/cache"
	"tokopos/backend/internal/catalog"
	"tokopos/backend/internal/checkout"
	"tokopos/backend/internal/config"
	"tokopos/backend/internal/httpapi"
	"tokopos/backend/internal/logger"
	"tokopos/backend/internal/printer"
	"tokopos/backend/internal/receipt"
	"tokopos/backend/internal/settings"
	"tokopos/backend/internal/store"
	"tokopos/backend/internal/store/memory"
	pgstore "tokopos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Stage, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("postgres schema setup failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded(log)
		log.Info("repository: in-memory")
	}

	settingsCache := cache.SettingsCache(cache.NoopSettingsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSettingsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			settingsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	surface, err := printer.NewSurface(printer.Config{
		Type:     cfg.PrinterType,
		Address:  cfg.PrinterAddress,
		Device:   cfg.PrinterDevice,
		SpoolDir: cfg.PrinterSpoolDir,
	})
	if err != nil {
		log.Fatal("invalid printer configuration", zap.Error(err))
	}
	log.Info("printer configured", zap.String("surface", surface.Name()))

	provider := settings.NewProvider(repo, settingsCache, cfg.SettingsCacheTTL(), log)
	svc := checkout.NewService(checkout.Deps{
		Catalog:        repo,
		Sales:          repo,
		Settings:       provider,
		Renderer:       receipt.NewRenderer(),
		Printer:        printer.NewDispatcher(surface, log),
		Logger:         log,
		DefaultStoreID: cfg.StoreID,
		Lookup: catalog.Options{
			Debounce: cfg.LookupDebounce(),
			Limit:    cfg.LookupLimit,
		},
		SessionIdle: cfg.SessionIdle(),
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo, log)
	api := httpapi.New(httpapi.Options{
		Checkout:           svc,
		Catalog:            repo,
		Settings:           provider,
		Auth:               auth,
		Logger:             log,
		AllowedOrigin:      cfg.AllowedOrigin,
		DefaultStoreID:     cfg.StoreID,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.Stage == "prod" && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when STAGE=prod")
	}
	return nil
}
