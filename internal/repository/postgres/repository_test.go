package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open("sqlite3", path+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func f(v float64) *float64 { return &v }

func seedStore(t *testing.T, repo *storeRepository, name, zone string) domain.Store {
	t.Helper()
	s := &domain.Store{Name: name, Zone: zone}
	_, err := repo.UpsertStore(context.Background(), s)
	require.NoError(t, err)
	return *s
}

func TestStoreRepository_UpsertByNormalizedName(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepository(newTestDB(t)).(*storeRepository)

	s := &domain.Store{Name: "Lisboa Centro", Zone: "Sul"}
	created, err := repo.UpsertStore(ctx, s)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := s.ID

	again := &domain.Store{Name: "  LISBOA   centro ", Zone: "Centro", Email: "lc@example.com"}
	created, err = repo.UpsertStore(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, again.ID)

	stores, err := repo.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Centro", stores[0].Zone)
	assert.Equal(t, "lc@example.com", stores[0].Email)

	_, err = repo.GetStore(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)

	require.NoError(t, repo.DeleteStore(ctx, firstID))
	assert.ErrorIs(t, repo.DeleteStore(ctx, firstID), domain.ErrStoreNotFound)
}

func TestStoreRepository_DeleteKeepsHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewStoreRepository(db)
	snaps := NewSnapshotRepository(db)

	s := &domain.Store{Name: "Viseu", Zone: "Centro"}
	_, err := repo.UpsertStore(ctx, s)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, snaps.UpsertSatisfaction(ctx, &domain.SatisfactionSnapshot{
		StoreID:    s.ID,
		Period:     domain.Period{Month: 3, Year: 2025},
		NPS:        f(0.7),
		Provenance: domain.Provenance{CreatedAt: now, UpdatedAt: now},
	}))

	err = repo.DeleteStore(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrStoreInUse)
	kept, err := repo.GetStore(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Viseu", kept.Name)
}

func TestStoreRepository_ManagerAssignments(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepository(newTestDB(t)).(*storeRepository)
	a := seedStore(t, repo, "Porto", "Norte")
	b := seedStore(t, repo, "Braga", "Norte")
	c := seedStore(t, repo, "Faro", "Sul")

	require.NoError(t, repo.AssignManager(ctx, "ana", []int64{c.ID, a.ID, a.ID}))
	ids, err := repo.ManagerStoreIDs(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, c.ID}, ids)

	require.NoError(t, repo.AssignManager(ctx, "ana", []int64{b.ID}))
	ids, err = repo.ManagerStoreIDs(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids)

	ids, err = repo.ManagerStoreIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSnapshotRepository_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	stores := NewStoreRepository(db).(*storeRepository)
	snaps := NewSnapshotRepository(db)
	store := seedStore(t, stores, "Porto", "Norte")
	p := domain.Period{Month: 3, Year: 2025}
	t0 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	first := &domain.ResultsSnapshot{
		StoreID:        store.ID,
		Zone:           "Norte",
		Period:         p,
		ResultsMetrics: domain.ResultsMetrics{TotalServices: f(100), MonthlyTarget: f(120)},
		Provenance:     domain.Provenance{SourceFile: "march.xlsx", CreatedAt: t0, UpdatedAt: t0},
	}
	require.NoError(t, snaps.UpsertResults(ctx, first))

	t1 := t0.Add(time.Hour)
	second := &domain.ResultsSnapshot{
		StoreID:        store.ID,
		Zone:           "Norte",
		Period:         p,
		ResultsMetrics: domain.ResultsMetrics{TotalServices: f(130), MonthlyTarget: f(120)},
		Provenance:     domain.Provenance{SourceFile: "march-v2.xlsx", CreatedAt: t1, UpdatedAt: t1},
	}
	require.NoError(t, snaps.UpsertResults(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	all, err := snaps.ListResultsByPeriod(ctx, p, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 130.0, *all[0].TotalServices)
	assert.Equal(t, "march-v2.xlsx", all[0].SourceFile)
	assert.True(t, all[0].CreatedAt.Equal(t0), "created_at is preserved on update")
	assert.True(t, all[0].UpdatedAt.Equal(t1))

	got, err := snaps.GetResults(ctx, store.ID, domain.Period{Month: 4, Year: 2025})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotRepository_ScopeAndWindow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	stores := NewStoreRepository(db).(*storeRepository)
	snaps := NewSnapshotRepository(db)
	a := seedStore(t, stores, "Porto", "Norte")
	b := seedStore(t, stores, "Faro", "Sul")
	now := time.Now().UTC()

	for _, p := range []domain.Period{{Month: 11, Year: 2024}, {Month: 12, Year: 2024}, {Month: 1, Year: 2025}} {
		for _, s := range []domain.Store{a, b} {
			require.NoError(t, snaps.UpsertSatisfaction(ctx, &domain.SatisfactionSnapshot{
				StoreID:    s.ID,
				NPS:        f(0.5),
				Period:     p,
				Provenance: domain.Provenance{CreatedAt: now, UpdatedAt: now},
			}))
		}
	}

	w := domain.Window{From: domain.Period{Month: 12, Year: 2024}, To: domain.Period{Month: 1, Year: 2025}}
	got, err := snaps.ListSatisfactionInWindow(ctx, w, domain.Scope{StoreIDs: []int64{b.ID}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Period{Month: 12, Year: 2024}, got[0].Period)
	assert.Equal(t, domain.Period{Month: 1, Year: 2025}, got[1].Period)
	for _, s := range got {
		assert.Equal(t, b.ID, s.StoreID)
	}

	none, err := snaps.ListSatisfactionByPeriod(ctx, w.To, domain.Scope{StoreIDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	periods, err := snaps.AvailablePeriods(ctx, domain.DatasetSatisfaction)
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, domain.Period{Month: 1, Year: 2025}, periods[0].Period)
	assert.Equal(t, 2, periods[0].Snapshots)
	assert.Equal(t, "January 2025", periods[0].Label)

	_, err = snaps.AvailablePeriods(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
}

func TestSnapshotRepository_ComplementaryAmounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	stores := NewStoreRepository(db).(*storeRepository)
	snaps := NewSnapshotRepository(db)
	s := seedStore(t, stores, "Porto", "Norte")
	p := domain.Period{Month: 2, Year: 2025}
	now := time.Now().UTC()

	require.NoError(t, snaps.UpsertComplementary(ctx, &domain.ComplementarySnapshot{
		StoreID: s.ID,
		Period:  p,
		ComplementaryMetrics: domain.ComplementaryMetrics{
			TotalSales: decimal.NewNullDecimal(decimal.RequireFromString("1234.50")),
			BrushQty:   f(12),
		},
		Provenance: domain.Provenance{CreatedAt: now, UpdatedAt: now},
	}))

	got, err := snaps.GetComplementary(ctx, s.ID, p)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.TotalSales.Valid)
	assert.True(t, got.TotalSales.Decimal.Equal(decimal.RequireFromString("1234.5")))
	assert.False(t, got.BrushSales.Valid)
	assert.Equal(t, 12.0, *got.BrushQty)
}

func TestSnapshotRepository_NetworkTotals(t *testing.T) {
	ctx := context.Background()
	snaps := NewSnapshotRepository(newTestDB(t))
	now := time.Now().UTC()
	p := domain.Period{Month: 5, Year: 2025}

	for _, v := range []float64{900, 950} {
		require.NoError(t, snaps.UpsertNetworkTotals(ctx, &domain.NetworkTotals{
			Period:         p,
			ResultsMetrics: domain.ResultsMetrics{TotalServices: f(v)},
			Provenance:     domain.Provenance{CreatedAt: now, UpdatedAt: now},
		}))
	}
	got, err := snaps.GetNetworkTotals(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 950.0, *got.TotalServices)

	series, err := snaps.ListNetworkTotals(ctx, domain.WindowEndingAt(p, 12))
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestAlertRepository_PendingIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepository(newTestDB(t))
	p := domain.Period{Month: 3, Year: 2025}

	newAlert := func() *domain.Alert {
		return &domain.Alert{
			StoreID:          7,
			Type:             domain.AlertLowPerformance,
			ThresholdPercent: -10,
			ObservedPct:      f(-0.25),
			Description:      "below target",
			Period:           p,
		}
	}

	a := newAlert()
	created, err := repo.CreatePending(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, a.ID)

	created, err = repo.CreatePending(ctx, newAlert())
	require.NoError(t, err)
	assert.False(t, created)

	april := newAlert()
	april.Period = p.AddMonths(1)
	created, err = repo.CreatePending(ctx, april)
	require.NoError(t, err)
	assert.False(t, created, "an open alert from an earlier month blocks a new one")

	found, err := repo.FindPending(ctx, 7, domain.AlertLowPerformance)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)

	at := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	resolved, err := repo.Resolve(ctx, a.ID, "called the manager", at)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, resolved.Status)
	assert.Equal(t, "called the manager", resolved.ResolutionNotes)

	_, err = repo.Resolve(ctx, a.ID, "again", at)
	assert.ErrorIs(t, err, domain.ErrAlertAlreadyClosed)
	_, err = repo.Resolve(ctx, 404, "", at)
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)

	// once resolved, a new pending alert may be raised for the same key
	created, err = repo.CreatePending(ctx, newAlert())
	require.NoError(t, err)
	assert.True(t, created)

	pending, err := repo.ListAlerts(ctx, domain.AlertFilter{Status: domain.AlertPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	all, err := repo.ListAlerts(ctx, domain.AlertFilter{StoreID: 7})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
