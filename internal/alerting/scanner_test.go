package alerting

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = domain.Period{Month: 3, Year: 2025}

func newScanner(t *testing.T, stores map[string][2]float64) (*Scanner, map[string]int64) {
	t.Helper()
	ctx := context.Background()
	db, err := postgres.Open("sqlite3", filepath.Join(t.TempDir(), "alerts.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	storeRepo := postgres.NewStoreRepository(db)
	snaps := postgres.NewSnapshotRepository(db)
	ids := map[string]int64{}
	now := time.Now().UTC()
	for name, figures := range stores {
		s := &domain.Store{Name: name, Zone: "Centro"}
		_, err := storeRepo.UpsertStore(ctx, s)
		require.NoError(t, err)
		ids[name] = s.ID

		total, target := figures[0], figures[1]
		require.NoError(t, snaps.UpsertResults(ctx, &domain.ResultsSnapshot{
			StoreID:        s.ID,
			Period:         march,
			ResultsMetrics: domain.ResultsMetrics{TotalServices: &total, MonthlyTarget: &target},
			Provenance:     domain.Provenance{CreatedAt: now, UpdatedAt: now},
		}))
	}
	sc := NewScanner(storeRepo, snaps, postgres.NewAlertRepository(db))
	sc.now = func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) }
	return sc, ids
}

func TestScanAndCreate_DeduplicatesPendingAlerts(t *testing.T) {
	ctx := context.Background()
	sc, ids := newScanner(t, map[string][2]float64{
		"Coimbra": {85, 100},
		"Leiria":  {95, 100},
	})

	res, err := sc.ScanAndCreate(ctx, -10, march)
	require.NoError(t, err)
	assert.Equal(t, 2, res.StoresScanned)
	assert.Equal(t, 1, res.StoresBelowThreshold)
	assert.Equal(t, 1, res.AlertsCreated)

	again, err := sc.ScanAndCreate(ctx, -10, march)
	require.NoError(t, err)
	assert.Equal(t, 1, again.StoresBelowThreshold)
	assert.Zero(t, again.AlertsCreated)

	alerts, err := sc.List(ctx, domain.AlertFilter{Status: domain.AlertPending})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, ids["Coimbra"], a.StoreID)
	assert.Equal(t, domain.AlertLowPerformance, a.Type)
	assert.Equal(t, -10.0, a.ThresholdPercent)
	assert.Equal(t, march, a.Period)
	assert.Equal(t, "Store Coimbra is 15.0% below monthly target. Services: 85 / Target: 100", a.Description)
}

func TestScanAndCreate_OpenAlertCoversLaterMonths(t *testing.T) {
	ctx := context.Background()
	sc, ids := newScanner(t, map[string][2]float64{"Coimbra": {85, 100}})

	april := march.AddMonths(1)
	total, target := 80.0, 100.0
	now := time.Now().UTC()
	require.NoError(t, sc.results.(repository.SnapshotRepository).UpsertResults(ctx, &domain.ResultsSnapshot{
		StoreID:        ids["Coimbra"],
		Period:         april,
		ResultsMetrics: domain.ResultsMetrics{TotalServices: &total, MonthlyTarget: &target},
		Provenance:     domain.Provenance{CreatedAt: now, UpdatedAt: now},
	}))

	res, err := sc.ScanAndCreate(ctx, -10, march)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsCreated)

	res, err = sc.ScanAndCreate(ctx, -10, april)
	require.NoError(t, err)
	assert.Equal(t, 1, res.StoresBelowThreshold)
	assert.Zero(t, res.AlertsCreated)

	pending, err := sc.List(ctx, domain.AlertFilter{Status: domain.AlertPending, StoreID: ids["Coimbra"]})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, march, pending[0].Period)

	_, err = sc.Resolve(ctx, pending[0].ID, "back on track")
	require.NoError(t, err)
	res, err = sc.ScanAndCreate(ctx, -10, april)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsCreated)
}

func TestResolve_ClosesOnce(t *testing.T) {
	ctx := context.Background()
	sc, _ := newScanner(t, map[string][2]float64{"Coimbra": {50, 100}})

	_, err := sc.ScanAndCreate(ctx, -10, march)
	require.NoError(t, err)
	alerts, err := sc.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	resolved, err := sc.Resolve(ctx, alerts[0].ID, "new manager")
	require.NoError(t, err)
	assert.False(t, resolved.Pending())
	require.NotNil(t, resolved.ResolvedAt)

	_, err = sc.Resolve(ctx, alerts[0].ID, "twice")
	assert.ErrorIs(t, err, domain.ErrAlertAlreadyClosed)

	// a later scan may flag the store again once the old alert is closed
	res, err := sc.ScanAndCreate(ctx, -10, march)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsCreated)
}

func TestLowPerformers_WorstFirst(t *testing.T) {
	ctx := context.Background()
	sc, _ := newScanner(t, map[string][2]float64{
		"Coimbra": {85, 100},
		"Leiria":  {60, 100},
		"Viseu":   {100, 100},
	})

	low, err := sc.LowPerformers(ctx, -10, march, domain.Scope{})
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "Leiria", low[0].Name)
	assert.InDelta(t, -0.40, low[0].DeviationPct, 1e-9)
	assert.Equal(t, "Centro", low[0].Zone)

	alerts, err := sc.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts, "listing never raises alerts")
}

func TestThresholdMustBeFinite(t *testing.T) {
	ctx := context.Background()
	sc, _ := newScanner(t, map[string][2]float64{"Coimbra": {85, 100}})

	_, err := sc.ScanAndCreate(ctx, math.NaN(), march)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
	_, err = sc.LowPerformers(ctx, math.Inf(-1), march, domain.Scope{})
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Store Unknown store is 12.5% below monthly target. Services: n/a / Target: 80",
		Describe("", -0.125, nil, func() *float64 { v := 80.0; return &v }()))
}
