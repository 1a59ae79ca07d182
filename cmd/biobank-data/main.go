package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"biobank-data/internal/config"
	"biobank-data/internal/database"
	httpapi "biobank-data/internal/http"
	"biobank-data/internal/logger"
	"biobank-data/internal/repository"
	"biobank-data/internal/scanner"
	"biobank-data/internal/service"
	"biobank-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "biobank-data")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)

	// DB 未就绪时退回内存 repo 支持联测
	var db *sql.DB
	var locationsRepo repository.LocationsRepository
	var storageRepo repository.StorageRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for biobank-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		locationsRepo = repository.NewPostgresLocationsRepository(db)
		storageRepo = repository.NewPostgresStorageRepository(db)
	} else {
		memLocations := repository.NewMemoryLocationsRepo()
		memStorage := repository.NewMemoryStorageRepo()
		memLocations.BindStorage(memStorage)
		locationsRepo = memLocations
		storageRepo = memStorage
	}

	var notifier service.LimsNotifier = service.NoopLimsNotifier{}
	if cfg.Lims.Enabled {
		notifier = service.NewLimsClient(&cfg.Lims, log)
		log.Info("LIMS movement notifications enabled", zap.String("base_url", cfg.Lims.BaseURL))
	}

	shortCodes := service.NewShortCodeValidator(locationsRepo)
	locationSvc := service.NewLocationService(locationsRepo, shortCodes, log)
	storageSvc := service.NewStorageService(storageRepo, locationsRepo, locationSvc, notifier, log)
	parser := service.NewDelimiterBarcodeParser()
	validator := service.NewBarcodeValidator(parser, locationsRepo, log)
	gateway := scanner.NewScannerGateway(validator, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterLocationRoutes(httpapi.NewLocationHandler(locationSvc, kv, log))
	router.RegisterStorageRoutes(httpapi.NewStorageHandler(storageSvc, validator, gateway, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
