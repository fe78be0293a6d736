package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine    *Engine
	stores    repository.StoreRepository
	snapshots repository.SnapshotRepository
	ids       map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := postgres.Open("sqlite3", filepath.Join(t.TempDir(), "analytics.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	fx := &fixture{
		stores:    postgres.NewStoreRepository(db),
		snapshots: postgres.NewSnapshotRepository(db),
		ids:       map[string]int64{},
	}
	for _, s := range []domain.Store{{Name: "Porto", Zone: "Norte"}, {Name: "Braga", Zone: "Norte"}, {Name: "Faro", Zone: "Sul"}} {
		s := s
		_, err := fx.stores.UpsertStore(ctx, &s)
		require.NoError(t, err)
		fx.ids[s.Name] = s.ID
	}
	fx.engine = NewEngine(fx.stores, fx.snapshots)
	fx.engine.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return fx
}

func (fx *fixture) results(t *testing.T, store string, p domain.Period, total, target float64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, fx.snapshots.UpsertResults(context.Background(), &domain.ResultsSnapshot{
		StoreID:        fx.ids[store],
		Period:         p,
		ResultsMetrics: domain.ResultsMetrics{TotalServices: &total, MonthlyTarget: &target},
		Provenance:     domain.Provenance{CreatedAt: now, UpdatedAt: now},
	}))
}

func TestEngine_StatsRankingAndScope(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.results(t, "Porto", march, 110, 100)
	fx.results(t, "Braga", march, 90, 120)
	fx.results(t, "Faro", march, 50, 100)

	stats, err := fx.engine.PeriodStats(ctx, march, domain.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.StoreCount)
	assert.Equal(t, 250.0, stats.SumTotalServices)
	assert.Equal(t, 1, stats.StoresAboveTarget)

	require.NoError(t, fx.stores.AssignManager(ctx, "rui", []int64{fx.ids["Braga"], fx.ids["Faro"]}))
	scope, err := fx.engine.ScopeForManager(ctx, "rui")
	require.NoError(t, err)

	ranking, err := fx.engine.Ranking(ctx, domain.MetricTotalServices, march, 0, scope)
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, "Braga", ranking[0].Name)
	assert.Equal(t, "Norte", ranking[0].Zone)

	rollup, err := fx.engine.ZoneRollup(ctx, march, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, rollup, 2)
	assert.Equal(t, "Norte", rollup[0].Zone)
	assert.Equal(t, 2, rollup[0].Stats.StoreCount)
}

func TestEngine_CompareReturnsNothingWhenOneSideIsMissing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.results(t, "Porto", march, 110, 100)

	cmp, err := fx.engine.Compare(ctx, fx.ids["Porto"], fx.ids["Braga"], march)
	require.NoError(t, err)
	assert.False(t, cmp.HasData)
	assert.Empty(t, cmp.Stores)

	fx.results(t, "Braga", march, 110, 100)
	cmp, err = fx.engine.Compare(ctx, fx.ids["Porto"], fx.ids["Braga"], march)
	require.NoError(t, err)
	assert.True(t, cmp.HasData)
	require.Len(t, cmp.Stores, 2)
	assert.Equal(t, "Porto", cmp.Stores[0].Store.Name)

	cmp, err = fx.engine.Compare(ctx, fx.ids["Porto"], 999, march)
	require.NoError(t, err)
	assert.False(t, cmp.HasData, "an unknown store compares as no data")
	assert.Empty(t, cmp.Stores)
}

func TestEngine_EvolutionOmitsMissingMonths(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	jan := domain.Period{Month: 1, Year: 2025}
	fx.results(t, "Porto", domain.Period{Month: 12, Year: 2023}, 10, 10)
	fx.results(t, "Porto", jan, 100, 100)
	fx.results(t, "Porto", march, 120, 100)
	fx.results(t, "Braga", march, 80, 100)

	series, err := fx.engine.StoreEvolution(ctx, fx.ids["Porto"], 12)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, jan, series[0].Period)
	assert.Equal(t, march, series[1].Period)

	points, err := fx.engine.GroupEvolution(ctx, domain.Scope{}, 3)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 200.0, *points[1].TotalServices)
	assert.InDelta(t, 0.0, *points[1].DeviationPct, 1e-9)

	h, err := fx.engine.StoreHistory(ctx, domain.DatasetSatisfaction, fx.ids["Porto"], 12)
	require.NoError(t, err)
	assert.Empty(t, h.Satisfaction)

	_, err = fx.engine.StoreHistory(ctx, "bogus", fx.ids["Porto"], 12)
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
}

func TestEngine_AbsentDataIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	stats, err := fx.engine.PeriodStats(ctx, march, domain.Scope{})
	require.NoError(t, err)
	assert.Zero(t, stats.StoreCount)

	totals, err := fx.engine.NetworkTotals(ctx, march)
	require.NoError(t, err)
	assert.Nil(t, totals)

	ranking, err := fx.engine.Ranking(ctx, domain.MetricNPS, march, 5, domain.Scope{})
	require.NoError(t, err)
	assert.Empty(t, ranking)

	cs, err := fx.engine.ComplementaryStats(ctx, march, domain.Scope{})
	require.NoError(t, err)
	assert.Nil(t, cs.MeanBrushShare)
}
