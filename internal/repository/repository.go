package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
)

// StoreRepository is the canonical store registry.
type StoreRepository interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	GetStore(ctx context.Context, id int64) (*domain.Store, error)
	UpsertStore(ctx context.Context, s *domain.Store) (created bool, err error)
	DeleteStore(ctx context.Context, id int64) error
	AssignManager(ctx context.Context, managerID string, storeIDs []int64) error
	ManagerStoreIDs(ctx context.Context, managerID string) ([]int64, error)
}

// SnapshotRepository is the monthly snapshot store. Every Upsert is idempotent by
// (store, month, year) within its dataset: the last write wins and no duplicate
// rows exist. Get returns nil, nil when the snapshot is absent.
type SnapshotRepository interface {
	UpsertResults(ctx context.Context, s *domain.ResultsSnapshot) error
	UpsertComplementary(ctx context.Context, s *domain.ComplementarySnapshot) error
	UpsertSatisfaction(ctx context.Context, s *domain.SatisfactionSnapshot) error
	UpsertNetworkTotals(ctx context.Context, t *domain.NetworkTotals) error

	GetResults(ctx context.Context, storeID int64, p domain.Period) (*domain.ResultsSnapshot, error)
	GetComplementary(ctx context.Context, storeID int64, p domain.Period) (*domain.ComplementarySnapshot, error)
	GetSatisfaction(ctx context.Context, storeID int64, p domain.Period) (*domain.SatisfactionSnapshot, error)
	GetNetworkTotals(ctx context.Context, p domain.Period) (*domain.NetworkTotals, error)

	ListResultsByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ResultsSnapshot, error)
	ListComplementaryByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ComplementarySnapshot, error)
	ListSatisfactionByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.SatisfactionSnapshot, error)

	// ListResultsInWindow returns snapshots of the scoped stores inside w, oldest first.
	ListResultsInWindow(ctx context.Context, w domain.Window, scope domain.Scope) ([]domain.ResultsSnapshot, error)
	ListComplementaryInWindow(ctx context.Context, w domain.Window, scope domain.Scope) ([]domain.ComplementarySnapshot, error)
	ListSatisfactionInWindow(ctx context.Context, w domain.Window, scope domain.Scope) ([]domain.SatisfactionSnapshot, error)
	ListNetworkTotals(ctx context.Context, w domain.Window) ([]domain.NetworkTotals, error)

	AvailablePeriods(ctx context.Context, dataset domain.DatasetType) ([]domain.AvailablePeriod, error)
}

// AlertRepository stores alerts. At most one pending alert exists per
// (store, type, month, year).
type AlertRepository interface {
	FindPending(ctx context.Context, storeID int64, alertType domain.AlertType) (*domain.Alert, error)
	// CreatePending inserts a pending alert; created is false when one already exists.
	CreatePending(ctx context.Context, a *domain.Alert) (created bool, err error)
	GetAlert(ctx context.Context, id int64) (*domain.Alert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
	Resolve(ctx context.Context, id int64, notes string, at time.Time) (*domain.Alert, error)
}
