package analytics

import (
	"math/rand"
	"testing"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = domain.Period{Month: 3, Year: 2025}

func f(v float64) *float64 { return &v }

func results(storeID int64, zone string, total, target *float64) domain.ResultsSnapshot {
	return domain.ResultsSnapshot{
		StoreID:        storeID,
		Zone:           zone,
		Period:         march,
		ResultsMetrics: domain.ResultsMetrics{TotalServices: total, MonthlyTarget: target},
	}
}

func testDirectory() Directory {
	return NewDirectory([]domain.Store{
		{ID: 1, Name: "Porto", Zone: "Norte"},
		{ID: 2, Name: "Braga", Zone: "Norte"},
		{ID: 3, Name: "Faro", Zone: ""},
		{ID: 4, Name: "Lisboa", Zone: "Sul"},
	})
}

func TestZoneRollupAndRankingByDeviation(t *testing.T) {
	snaps := []domain.ResultsSnapshot{
		results(2, "Norte", f(90), f(120)),
		results(1, "Norte", f(110), f(100)),
	}
	dir := testDirectory()

	rollup := RollupZones(march, snaps, dir)
	require.Len(t, rollup, 1)
	assert.Equal(t, "Norte", rollup[0].Zone)
	assert.Equal(t, 1, rollup[0].Stats.StoresAboveTarget)
	assert.Equal(t, 2, rollup[0].Stats.StoresWithTarget)
	require.NotNil(t, rollup[0].Best)
	assert.Equal(t, int64(1), rollup[0].Best.StoreID)
	assert.Equal(t, int64(2), rollup[0].Worst.StoreID)

	ranking, err := RankResults(snaps, dir, domain.MetricDeviation, 10)
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, int64(1), ranking[0].StoreID)
	assert.Equal(t, 1, ranking[0].Position)
	assert.Equal(t, "Porto", ranking[0].Name)
	assert.InDelta(t, 0.10, *ranking[0].Value, 1e-9)
	assert.InDelta(t, -0.25, *ranking[1].Value, 1e-9)
}

func TestRollupZones_NoZoneBucketComesLast(t *testing.T) {
	snaps := []domain.ResultsSnapshot{
		results(3, "", f(10), nil),
		results(4, "", f(20), f(10)),
		results(1, "Norte", f(5), f(10)),
	}
	rollup := RollupZones(march, snaps, testDirectory())
	require.Len(t, rollup, 3)
	assert.Equal(t, "Norte", rollup[0].Zone)
	// store 4 has no printed zone and takes the registry zone
	assert.Equal(t, "Sul", rollup[1].Zone)
	assert.True(t, rollup[2].NoZone)
	assert.Equal(t, domain.NoZoneLabel, rollup[2].Zone)
	assert.Nil(t, rollup[2].Best, "no deviation is known without a target")
}

func TestRepairRateUsesWindscreenDenominator(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		glass := float64(rng.Intn(500) + 1)
		total := glass + float64(rng.Intn(500))
		repairs := float64(rng.Intn(int(glass) + 1))
		m := domain.ResultsMetrics{TotalServices: &total, WindscreenCount: &glass, RepairCount: &repairs}

		rate := m.RepairRate()
		require.NotNil(t, rate)
		assert.InDelta(t, repairs/glass, *rate, 1e-12)
		assert.GreaterOrEqual(t, *rate, repairs/total)
	}

	zero := domain.ResultsMetrics{RepairCount: f(3), WindscreenCount: f(0)}
	assert.Nil(t, zero.RepairRate())
	assert.Nil(t, domain.ResultsMetrics{RepairCount: f(3)}.RepairRate())
}

func TestPeriodStatsSumsEverySnapshot(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var snaps []domain.ResultsSnapshot
	want := 0.0
	for i := 0; i < 50; i++ {
		s := results(int64(i+1), "", nil, nil)
		if i%7 != 0 {
			v := float64(rng.Intn(1000))
			s.TotalServices = &v
			want += v
		}
		snaps = append(snaps, s)
	}
	stats := ComputePeriodStats(march, snaps)
	assert.Equal(t, 50, stats.StoreCount)
	assert.InDelta(t, want, stats.SumTotalServices, 1e-9)
	assert.Nil(t, stats.MeanDeviationPct)
	assert.Zero(t, stats.StoresWithTarget)
}

func TestPeriodStats_ZeroTargetIsNotAboveTarget(t *testing.T) {
	snaps := []domain.ResultsSnapshot{
		results(1, "", f(50), f(0)),
		results(2, "", f(50), nil),
		results(3, "", f(100), f(100)),
	}
	stats := ComputePeriodStats(march, snaps)
	assert.Equal(t, 1, stats.StoresWithTarget)
	assert.Equal(t, 1, stats.StoresAboveTarget)
	assert.Equal(t, 200.0, stats.SumTotalServices)
	assert.Equal(t, 100.0, stats.SumMonthlyTarget)
}

func TestSortRanking_DeterministicWithNullsLast(t *testing.T) {
	build := func() []domain.RankingEntry {
		return []domain.RankingEntry{
			{StoreID: 5, Value: f(10)},
			{StoreID: 2, Value: nil},
			{StoreID: 4, Value: f(10)},
			{StoreID: 1, Value: nil},
			{StoreID: 3, Value: f(20)},
		}
	}
	first := SortRanking(build(), 0)
	second := SortRanking(build(), 0)
	assert.Equal(t, first, second)

	var order []int64
	for _, e := range first {
		order = append(order, e.StoreID)
	}
	assert.Equal(t, []int64{3, 4, 5, 1, 2}, order)
	assert.Equal(t, 5, first[4].Position)

	assert.Len(t, SortRanking(build(), 2), 2)
}

func TestRankResults_UnknownMetric(t *testing.T) {
	_, err := RankResults(nil, testDirectory(), "nps", 5)
	assert.ErrorIs(t, err, domain.ErrUnknownMetric)

	_, err = MetricDataset("bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownMetric)

	ds, err := MetricDataset(domain.MetricBrushShare)
	require.NoError(t, err)
	assert.Equal(t, domain.DatasetComplementary, ds)
}

func TestGroupEvolution_SumsPerMonthAndSkipsGaps(t *testing.T) {
	jan := domain.Period{Month: 1, Year: 2025}
	snaps := []domain.ResultsSnapshot{
		{StoreID: 1, Period: jan, ResultsMetrics: domain.ResultsMetrics{TotalServices: f(100), MonthlyTarget: f(100), RepairCount: f(10), WindscreenCount: f(40)}},
		{StoreID: 2, Period: jan, ResultsMetrics: domain.ResultsMetrics{TotalServices: f(50), MonthlyTarget: f(100), RepairCount: f(10), WindscreenCount: f(10)}},
		{StoreID: 1, Period: march, ResultsMetrics: domain.ResultsMetrics{TotalServices: f(120)}},
	}
	points := GroupEvolution(snaps)
	require.Len(t, points, 2)
	assert.Equal(t, jan, points[0].Period)
	assert.Equal(t, march, points[1].Period)

	assert.Equal(t, 2, points[0].StoreCount)
	assert.Equal(t, 150.0, *points[0].TotalServices)
	assert.InDelta(t, -0.25, *points[0].DeviationPct, 1e-9)
	assert.InDelta(t, 20.0/50.0, *points[0].RepairRate, 1e-9)

	assert.Nil(t, points[1].MonthlyTarget)
	assert.Nil(t, points[1].DeviationPct)
}

func TestComparePeriodStats(t *testing.T) {
	cur := domain.PeriodStats{SumTotalServices: 300, MeanDeviationPct: f(0.1)}
	prev := domain.PeriodStats{SumTotalServices: 250}
	cmp := ComparePeriodStats(cur, prev)
	assert.Equal(t, 50.0, cmp.DeltaTotalServices)
	assert.Nil(t, cmp.DeltaDeviationPct)
}

func TestComputeComplementaryStats(t *testing.T) {
	money := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }
	snaps := []domain.ComplementarySnapshot{
		{StoreID: 1, ComplementaryMetrics: domain.ComplementaryMetrics{TotalSales: money("100.10"), BrushSales: money("20.05"), BrushShare: f(0.08), BrushQty: f(3)}},
		{StoreID: 2, ComplementaryMetrics: domain.ComplementaryMetrics{TotalSales: money("0"), BrushShare: f(0.02)}},
		{StoreID: 3},
	}
	stats := ComputeComplementaryStats(march, snaps)
	assert.Equal(t, 3, stats.StoreCount)
	assert.Equal(t, 1, stats.StoresWithSales)
	assert.Equal(t, 2, stats.StoresWithoutSales)
	assert.True(t, stats.SumSales.Equal(decimal.RequireFromString("100.10")))
	assert.True(t, stats.SumBrushSales.Equal(decimal.RequireFromString("20.05")))
	assert.Equal(t, 1, stats.StoresMeetingBrushGoal)
	assert.InDelta(t, 0.05, *stats.MeanBrushShare, 1e-9)
	assert.Equal(t, 3.0, stats.TotalBrushQty)
}
