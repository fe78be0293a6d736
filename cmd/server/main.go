package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/api"
	"github.com/andresuchdata/storeresults/backend-go/internal/cache"
	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/andresuchdata/storeresults/backend-go/internal/storage"
	"github.com/andresuchdata/storeresults/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Log.Level)
	logger.EnableFile(logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to apply schema")
	}

	analyticsCache, err := cache.NewAnalyticsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("redis unavailable, analytics cache disabled")
		analyticsCache = cache.NewNoopAnalyticsCache()
	}

	archive, err := storage.NewArchive(ctx, cfg.Storage, cfg.App.UploadDir)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("upload archive unavailable, uploads will not be archived")
	}

	services := service.NewContainer(db, service.Options{
		Cache:            analyticsCache,
		Archive:          archive,
		Workers:          cfg.Ingest.Workers,
		DefaultThreshold: cfg.Alerts.DefaultThresholdPercent,
	})

	router := api.NewRouter(&api.Services{
		Analytics: services.Analytics,
		Imports:   services.Imports,
		Alerts:    services.Alerts,
		Stores:    services.Stores,
	}, cfg.Server.AllowedOrigins)
	router.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	logger.Log.Info().Msg("server exiting")
}
