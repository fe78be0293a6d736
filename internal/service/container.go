package service

import (
	"github.com/andresuchdata/storeresults/backend-go/internal/alerting"
	"github.com/andresuchdata/storeresults/backend-go/internal/analytics"
	"github.com/andresuchdata/storeresults/backend-go/internal/cache"
	"github.com/andresuchdata/storeresults/backend-go/internal/ingest"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/storeresults/backend-go/internal/storage"
)

// Options carries the knobs the entrypoints read from configuration.
type Options struct {
	Cache            cache.AnalyticsCache
	Archive          storage.ObjectStorage
	Workers          int
	DefaultThreshold float64
}

// Container holds every service wired over one database.
type Container struct {
	Analytics *AnalyticsService
	Imports   *ImportService
	Alerts    *AlertService
	Stores    *StoreService
}

func NewContainer(db *postgres.DB, opts Options) *Container {
	stores := postgres.NewStoreRepository(db)
	snapshots := postgres.NewSnapshotRepository(db)
	alerts := postgres.NewAlertRepository(db)

	analyticsService := NewAnalyticsService(analytics.NewEngine(stores, snapshots), opts.Cache)
	return &Container{
		Analytics: analyticsService,
		Imports:   NewImportService(ingest.NewImporter(stores, snapshots, opts.Workers), stores, opts.Archive, analyticsService),
		Alerts:    NewAlertService(alerting.NewScanner(stores, snapshots, alerts), analyticsService, opts.DefaultThreshold),
		Stores:    NewStoreService(stores, analyticsService),
	}
}
