// Package analytics is the read side: statistics, rankings, zone rollups and
// series computed over stored snapshots. Nothing here writes.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// StoreDirectory is the registry view the engine needs.
type StoreDirectory interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
	ManagerStoreIDs(ctx context.Context, managerID string) ([]int64, error)
}

type Engine struct {
	stores    StoreDirectory
	snapshots repository.SnapshotRepository
	now       func() time.Time
}

func NewEngine(stores StoreDirectory, snapshots repository.SnapshotRepository) *Engine {
	return &Engine{stores: stores, snapshots: snapshots, now: time.Now}
}

func (e *Engine) directory(ctx context.Context) (Directory, error) {
	stores, err := e.stores.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	return NewDirectory(stores), nil
}

// CurrentPeriod is the month the evolution windows end at.
func (e *Engine) CurrentPeriod() domain.Period {
	return domain.PeriodOf(e.now())
}

func (e *Engine) window(monthsBack int) domain.Window {
	return domain.WindowEndingAt(e.CurrentPeriod(), monthsBack)
}

// ScopeForManager restricts queries to the stores assigned to a manager. An
// empty manager id means every store.
func (e *Engine) ScopeForManager(ctx context.Context, managerID string) (domain.Scope, error) {
	if managerID == "" {
		return domain.Scope{}, nil
	}
	ids, err := e.stores.ManagerStoreIDs(ctx, managerID)
	if err != nil {
		return domain.Scope{}, err
	}
	return domain.Scope{StoreIDs: ids}, nil
}

func (e *Engine) PeriodStats(ctx context.Context, p domain.Period, scope domain.Scope) (*domain.PeriodStats, error) {
	snaps, err := e.snapshots.ListResultsByPeriod(ctx, p, scope)
	if err != nil {
		return nil, err
	}
	stats := ComputePeriodStats(p, snaps)
	return &stats, nil
}

// Ranking sorts the period's snapshots of the dataset the metric belongs to.
func (e *Engine) Ranking(ctx context.Context, metric domain.RankingMetric, p domain.Period, limit int, scope domain.Scope) ([]domain.RankingEntry, error) {
	dataset, err := MetricDataset(metric)
	if err != nil {
		return nil, err
	}
	dir, err := e.directory(ctx)
	if err != nil {
		return nil, err
	}

	switch dataset {
	case domain.DatasetComplementary:
		snaps, err := e.snapshots.ListComplementaryByPeriod(ctx, p, scope)
		if err != nil {
			return nil, err
		}
		return RankComplementary(snaps, dir, metric, limit)
	case domain.DatasetSatisfaction:
		snaps, err := e.snapshots.ListSatisfactionByPeriod(ctx, p, scope)
		if err != nil {
			return nil, err
		}
		return RankSatisfaction(snaps, dir, metric, limit)
	default:
		snaps, err := e.snapshots.ListResultsByPeriod(ctx, p, scope)
		if err != nil {
			return nil, err
		}
		return RankResults(snaps, dir, metric, limit)
	}
}

func (e *Engine) ZoneRollup(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ZoneRollup, error) {
	snaps, err := e.snapshots.ListResultsByPeriod(ctx, p, scope)
	if err != nil {
		return nil, err
	}
	dir, err := e.directory(ctx)
	if err != nil {
		return nil, err
	}
	return RollupZones(p, snaps, dir), nil
}

// StoreEvolution returns one store's results for the last monthsBack months, oldest first.
func (e *Engine) StoreEvolution(ctx context.Context, storeID int64, monthsBack int) ([]domain.ResultsSnapshot, error) {
	return e.snapshots.ListResultsInWindow(ctx, e.window(monthsBack), domain.Scope{StoreIDs: []int64{storeID}})
}

// GroupEvolution aggregates the scoped stores per month.
func (e *Engine) GroupEvolution(ctx context.Context, scope domain.Scope, monthsBack int) ([]domain.EvolutionPoint, error) {
	snaps, err := e.snapshots.ListResultsInWindow(ctx, e.window(monthsBack), scope)
	if err != nil {
		return nil, err
	}
	return GroupEvolution(snaps), nil
}

// StoreHistory lists one store's snapshots of any dataset.
func (e *Engine) StoreHistory(ctx context.Context, dataset domain.DatasetType, storeID int64, monthsBack int) (*domain.StoreHistory, error) {
	w := e.window(monthsBack)
	scope := domain.Scope{StoreIDs: []int64{storeID}}
	h := &domain.StoreHistory{Dataset: dataset, StoreID: storeID, Window: w}

	var err error
	switch dataset {
	case domain.DatasetResults:
		h.Results, err = e.snapshots.ListResultsInWindow(ctx, w, scope)
	case domain.DatasetComplementary:
		h.Complementary, err = e.snapshots.ListComplementaryInWindow(ctx, w, scope)
	case domain.DatasetSatisfaction:
		h.Satisfaction, err = e.snapshots.ListSatisfactionInWindow(ctx, w, scope)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDataset, dataset)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Compare returns both stores' results for a period, or no stores at all when
// either side is unknown or has no snapshot.
func (e *Engine) Compare(ctx context.Context, storeA, storeB int64, p domain.Period) (*domain.StoreComparison, error) {
	out := &domain.StoreComparison{Period: p, Stores: []domain.ComparedStore{}}
	dir, err := e.directory(ctx)
	if err != nil {
		return nil, err
	}

	var pair []domain.ComparedStore
	for _, id := range []int64{storeA, storeB} {
		store, ok := dir[id]
		if !ok {
			log.Debug().Int64("store_id", id).Msg("comparison store is not registered")
			return out, nil
		}
		snap, err := e.snapshots.GetResults(ctx, id, p)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			log.Debug().Int64("store_id", id).Str("period", p.String()).Msg("comparison has no data")
			return out, nil
		}
		pair = append(pair, domain.ComparedStore{Store: store, Snapshot: *snap})
	}
	out.HasData = true
	out.Stores = pair
	return out, nil
}

func (e *Engine) ComparePeriods(ctx context.Context, current, previous domain.Period, scope domain.Scope) (*domain.PeriodComparison, error) {
	cur, err := e.PeriodStats(ctx, current, scope)
	if err != nil {
		return nil, err
	}
	prev, err := e.PeriodStats(ctx, previous, scope)
	if err != nil {
		return nil, err
	}
	cmp := ComparePeriodStats(*cur, *prev)
	return &cmp, nil
}

// NetworkTotals returns the totals row of a period, nil when none was imported.
func (e *Engine) NetworkTotals(ctx context.Context, p domain.Period) (*domain.NetworkTotals, error) {
	return e.snapshots.GetNetworkTotals(ctx, p)
}

func (e *Engine) NetworkTotalsSeries(ctx context.Context, monthsBack int) ([]domain.NetworkTotals, error) {
	return e.snapshots.ListNetworkTotals(ctx, e.window(monthsBack))
}

func (e *Engine) AvailablePeriods(ctx context.Context, dataset domain.DatasetType) ([]domain.AvailablePeriod, error) {
	return e.snapshots.AvailablePeriods(ctx, dataset)
}

func (e *Engine) ComplementaryStats(ctx context.Context, p domain.Period, scope domain.Scope) (*domain.ComplementaryStats, error) {
	snaps, err := e.snapshots.ListComplementaryByPeriod(ctx, p, scope)
	if err != nil {
		return nil, err
	}
	stats := ComputeComplementaryStats(p, snaps)
	return &stats, nil
}
