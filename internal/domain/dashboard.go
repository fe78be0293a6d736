package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RankingMetric names a sortable results metric.
type RankingMetric string

const (
	MetricTotalServices       RankingMetric = "total_services"
	MetricDeviation           RankingMetric = "deviation"
	MetricRepairRate          RankingMetric = "repair_rate"
	MetricServicesPerEmployee RankingMetric = "services_per_employee"
	MetricMonthlyTarget       RankingMetric = "monthly_target"

	MetricTotalSales  RankingMetric = "total_sales"
	MetricBrushSales  RankingMetric = "brush_sales"
	MetricBrushShare  RankingMetric = "brush_share"
	MetricPolishSales RankingMetric = "polish_sales"

	MetricNPS          RankingMetric = "nps"
	MetricResponseRate RankingMetric = "response_rate"
)

// BrushShareGoal is the brush share a store must reach to count as selling brushes.
const BrushShareGoal = 0.075

// PeriodStats summarises every results snapshot of one period.
type PeriodStats struct {
	Period
	StoreCount        int      `json:"store_count"`
	SumTotalServices  float64  `json:"sum_total_services"`
	SumMonthlyTarget  float64  `json:"sum_monthly_target"`
	SumRepairs        float64  `json:"sum_repairs"`
	MeanDeviationPct  *float64 `json:"mean_deviation_pct"`
	MeanRepairRate    *float64 `json:"mean_repair_rate"`
	StoresWithTarget  int      `json:"stores_with_target"`
	StoresAboveTarget int      `json:"stores_above_target"`
}

// StoreRef points at a store with the value that selected it.
type StoreRef struct {
	StoreID int64    `json:"store_id"`
	Name    string   `json:"name"`
	Value   *float64 `json:"value"`
}

// RankingEntry is one position of a ranking.
type RankingEntry struct {
	Position int      `json:"position"`
	StoreID  int64    `json:"store_id"`
	Name     string   `json:"name"`
	Zone     string   `json:"zone"`
	Value    *float64 `json:"value"`
}

// NoZoneLabel names the bucket for stores without a zone.
const NoZoneLabel = "No zone"

// ZoneRollup groups a period's results by zone.
type ZoneRollup struct {
	Zone   string      `json:"zone"`
	NoZone bool        `json:"no_zone"`
	Stats  PeriodStats `json:"stats"`
	Best   *StoreRef   `json:"best,omitempty"`
	Worst  *StoreRef   `json:"worst,omitempty"`
}

// EvolutionPoint is one month of an aggregated series.
type EvolutionPoint struct {
	Period
	StoreCount      int      `json:"store_count"`
	TotalServices   *float64 `json:"total_services"`
	MonthlyTarget   *float64 `json:"monthly_target"`
	RepairCount     *float64 `json:"repair_count"`
	WindscreenCount *float64 `json:"windscreen_count"`
	DeviationPct    *float64 `json:"deviation_pct"`
	RepairRate      *float64 `json:"repair_rate"`
}

// StoreComparison carries both stores' snapshots, or none when either is missing.
type StoreComparison struct {
	Period
	HasData bool            `json:"has_data"`
	Stores  []ComparedStore `json:"stores"`
}

type ComparedStore struct {
	Store    Store           `json:"store"`
	Snapshot ResultsSnapshot `json:"snapshot"`
}

// PeriodComparison puts two periods side by side.
type PeriodComparison struct {
	Current  PeriodStats `json:"current"`
	Previous PeriodStats `json:"previous"`
	// Deltas are current minus previous; nil when either side is unknown.
	DeltaTotalServices float64  `json:"delta_total_services"`
	DeltaDeviationPct  *float64 `json:"delta_deviation_pct"`
	DeltaRepairRate    *float64 `json:"delta_repair_rate"`
}

// AvailablePeriod is a month that has data for a dataset.
type AvailablePeriod struct {
	Period
	Dataset     DatasetType `json:"dataset"`
	Label       string      `json:"label"`
	Snapshots   int         `json:"snapshots"`
	LastUpdated time.Time   `json:"last_updated"`
}

// ComplementaryStats summarises complementary sales for a period.
type ComplementaryStats struct {
	Period
	StoreCount             int             `json:"store_count"`
	StoresWithSales        int             `json:"stores_with_sales"`
	StoresWithoutSales     int             `json:"stores_without_sales"`
	SumSales               decimal.Decimal `json:"sum_sales"`
	SumBrushSales          decimal.Decimal `json:"sum_brush_sales"`
	SumPolishSales         decimal.Decimal `json:"sum_polish_sales"`
	SumTreatmentSales      decimal.Decimal `json:"sum_treatment_sales"`
	SumOtherSales          decimal.Decimal `json:"sum_other_sales"`
	SumFilmSales           decimal.Decimal `json:"sum_film_sales"`
	SumWashesSales         decimal.Decimal `json:"sum_washes_sales"`
	TotalBrushQty          float64         `json:"total_brush_qty"`
	TotalPolishQty         float64         `json:"total_polish_qty"`
	TotalTreatmentQty      float64         `json:"total_treatment_qty"`
	TotalWashes            float64         `json:"total_washes"`
	MeanBrushShare         *float64        `json:"mean_brush_share"`
	StoresMeetingBrushGoal int             `json:"stores_meeting_brush_goal"`
}

// ScanResult reports one alert scan.
type ScanResult struct {
	Period
	ThresholdPercent     float64 `json:"threshold_percent"`
	StoresScanned        int     `json:"stores_scanned"`
	StoresBelowThreshold int     `json:"stores_below_threshold"`
	AlertsCreated        int     `json:"alerts_created"`
}

// StoreHistory is one store's snapshots of a dataset inside a window, oldest first.
// Only the slice matching Dataset is filled.
type StoreHistory struct {
	Dataset       DatasetType             `json:"dataset"`
	StoreID       int64                   `json:"store_id"`
	Window        Window                  `json:"window"`
	Results       []ResultsSnapshot       `json:"results,omitempty"`
	Complementary []ComplementarySnapshot `json:"complementary,omitempty"`
	Satisfaction  []SatisfactionSnapshot  `json:"satisfaction,omitempty"`
}

// LowPerformer is a store whose deviation is below an alert threshold.
type LowPerformer struct {
	StoreID       int64    `json:"store_id"`
	Name          string   `json:"name"`
	Zone          string   `json:"zone"`
	DeviationPct  float64  `json:"deviation_pct"`
	TotalServices *float64 `json:"total_services"`
	MonthlyTarget *float64 `json:"monthly_target"`
}
