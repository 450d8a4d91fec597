package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fleetquote/internal/config"
	"fleetquote/internal/pricing"
	"fleetquote/internal/rates"
	"fleetquote/internal/storage"
	"fleetquote/internal/worker"
	"fleetquote/pkg/api"
	"fleetquote/pkg/logger"
	"fleetquote/pkg/redis"
)

// ENTRY POINT

func main() {
	zapLogger, err := logger.New()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	redisClient := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
	defer redisClient.Close()

	pgStorage, err := storage.NewPostgresStorage(ctx, storage.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
		ConnMaxIdleTime: cfg.DBConnMaxIdle,
	}, redisClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init PostgreSQL storage", zap.Error(err))
	}
	defer pgStorage.Close()

	if err := storage.RunMigrations(ctx, pgStorage.DB(), zapLogger); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	rateClient := api.NewClient(cfg.RateServiceURL, cfg.RateServiceKey, cfg.HTTPTimeout, zapLogger)

	rateProvider, err := rates.NewProvider(rates.ProviderDeps{
		Source: rateClient,
		TTL:    cfg.RateSnapshotTTL,
		Logger: zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create rate provider", zap.Error(err))
	}

	engine, err := pricing.NewEngine(pricing.EngineDeps{
		Rates:      rateProvider,
		Protection: pricing.NewProtectionResolver(rateClient, zapLogger),
		Logger:     zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create pricing engine", zap.Error(err))
	}

	requoter := worker.New(worker.Deps{
		Storage:   pgStorage,
		Engine:    engine,
		Logger:    zapLogger,
		Interval:  cfg.RequoteInterval,
		ExportDir: cfg.ExportDir,
	})

	if err := requoter.Run(ctx); err != nil {
		zapLogger.Fatal("Requote worker stopped with error", zap.Error(err))
	}

	zapLogger.Info("Requote worker shutdown gracefully")
}
