package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/cache"
	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/andresuchdata/storeresults/backend-go/internal/drive"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/andresuchdata/storeresults/backend-go/internal/storage"
	"github.com/andresuchdata/storeresults/backend-go/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Drive.CredentialsJSON == "" {
		logger.Log.Fatal().Msg("GOOGLE_DRIVE_CREDENTIALS_JSON is required")
	}
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to initialize Google Drive service")
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to initialize database")
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
		logger.Log.Warn().Err(err).Msg("upload archive unavailable")
	}
	services := service.NewContainer(db, service.Options{
		Cache:            analyticsCache,
		Archive:          archive,
		Workers:          cfg.Ingest.Workers,
		DefaultThreshold: cfg.Alerts.DefaultThresholdPercent,
	})

	r := mux.NewRouter()
	ingestService := drive.NewIngestService(driveService, services.Imports)
	drive.NewHandler(driveService, driveService, ingestService, cfg.Drive.FolderID).RegisterRoutes(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("drive api starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("drive api stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("drive api forced to shutdown")
	}
}
