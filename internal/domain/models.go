package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Store is an entry of the canonical store registry.
type Store struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Zone           string    `json:"zone" db:"zone"`
	Contact        string    `json:"contact,omitempty" db:"contact"`
	Email          string    `json:"email,omitempty" db:"email"`
	Address        string    `json:"address,omitempty" db:"address"`
	MinFreeReports int       `json:"min_free_reports" db:"min_free_reports"`
	MinFullReports int       `json:"min_full_reports" db:"min_full_reports"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Period is a calendar month.
type Period struct {
	Month int `json:"month" db:"month"`
	Year  int `json:"year" db:"year"`
}

// NewPeriod validates month in [1,12] and a plausible year.
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: month=%d year=%d", ErrInvalidPeriod, month, year)
	}
	return p, nil
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 2000 && p.Year <= 2200
}

// Index is a monotonically increasing month number, used for range filters.
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

func periodFromIndex(idx int) Period {
	return Period{Month: idx%12 + 1, Year: idx / 12}
}

// AddMonths shifts the period by n months (n may be negative).
func (p Period) AddMonths(n int) Period {
	return periodFromIndex(p.Index() + n)
}

func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Window is an inclusive range of months.
type Window struct {
	From Period `json:"from"`
	To   Period `json:"to"`
}

// WindowEndingAt covers monthsBack months ending at (and including) end.
func WindowEndingAt(end Period, monthsBack int) Window {
	if monthsBack < 1 {
		monthsBack = 1
	}
	return Window{From: end.AddMonths(-(monthsBack - 1)), To: end}
}

// Scope restricts queries to a set of stores. A nil StoreIDs slice means every store.
type Scope struct {
	StoreIDs []int64 `json:"store_ids,omitempty"`
}

func (s Scope) All() bool {
	return s.StoreIDs == nil
}

func (s Scope) Contains(storeID int64) bool {
	if s.All() {
		return true
	}
	for _, id := range s.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// String renders the scope for cache keys: "all" for every store, otherwise
// the sorted store ids. An empty manager scope renders as "stores:".
func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	ids := append([]int64(nil), s.StoreIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "stores:" + strings.Join(parts, ",")
}

// Provenance records where a snapshot came from.
type Provenance struct {
	SourceFile string    `json:"source_file" db:"source_file"`
	UploadedBy string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ResultsMetrics are the operational figures of one results row. Nil means the cell was blank.
type ResultsMetrics struct {
	TotalServices        *float64 `json:"total_services" db:"total_services"`
	ServicesPerEmployee  *float64 `json:"services_per_employee" db:"services_per_employee"`
	Employees            *float64 `json:"employees" db:"employees"`
	TargetToDate         *float64 `json:"target_to_date" db:"target_to_date"`
	MonthlyTarget        *float64 `json:"monthly_target" db:"monthly_target"`
	AccumulatedDeviation *float64 `json:"accumulated_deviation" db:"accumulated_deviation"`
	DailyDeviationPct    *float64 `json:"daily_deviation_pct" db:"daily_deviation_pct"`
	MonthlyDeviationPct  *float64 `json:"monthly_deviation_pct" db:"monthly_deviation_pct"`
	ReportedRepairRate   *float64 `json:"reported_repair_rate" db:"reported_repair_rate"`
	RepairCount          *float64 `json:"repair_count" db:"repair_count"`
	WindscreenCount      *float64 `json:"windscreen_count" db:"windscreen_count"`
	RepairGap            *float64 `json:"repair_gap" db:"repair_gap"`
}

// DeviationPct is (actual - target) / target when both are known and the target is non-zero,
// otherwise the monthly deviation printed in the export.
func (m ResultsMetrics) DeviationPct() *float64 {
	if m.TotalServices != nil && m.MonthlyTarget != nil && *m.MonthlyTarget != 0 {
		v := (*m.TotalServices - *m.MonthlyTarget) / *m.MonthlyTarget
		return &v
	}
	return m.MonthlyDeviationPct
}

// RepairRate is repairs over the windscreen count. Total services is never the denominator.
func (m ResultsMetrics) RepairRate() *float64 {
	if m.RepairCount == nil || m.WindscreenCount == nil || *m.WindscreenCount == 0 {
		return nil
	}
	v := *m.RepairCount / *m.WindscreenCount
	return &v
}

// HasTarget reports whether the monthly target is known and non-zero.
func (m ResultsMetrics) HasTarget() bool {
	return m.MonthlyTarget != nil && *m.MonthlyTarget != 0
}

// ResultsSnapshot is one store's operational results for one month.
type ResultsSnapshot struct {
	ID      int64  `json:"id" db:"id"`
	StoreID int64  `json:"store_id" db:"store_id"`
	Zone    string `json:"zone" db:"zone"`
	Period
	ResultsMetrics
	Provenance
}

// NetworkTotals holds the totals row of a results export.
type NetworkTotals struct {
	ID int64 `json:"id" db:"id"`
	Period
	ResultsMetrics
	Provenance
}

// ComplementaryMetrics are the add-on sales of one store. Amounts are money, quantities are counts.
type ComplementaryMetrics struct {
	TotalSales     decimal.NullDecimal `json:"total_sales" db:"total_sales"`
	BrushSales     decimal.NullDecimal `json:"brush_sales" db:"brush_sales"`
	BrushQty       *float64            `json:"brush_qty" db:"brush_qty"`
	BrushShare     *float64            `json:"brush_share" db:"brush_share"`
	PolishQty      *float64            `json:"polish_qty" db:"polish_qty"`
	PolishSales    decimal.NullDecimal `json:"polish_sales" db:"polish_sales"`
	TreatmentQty   *float64            `json:"treatment_qty" db:"treatment_qty"`
	TreatmentSales decimal.NullDecimal `json:"treatment_sales" db:"treatment_sales"`
	OtherQty       *float64            `json:"other_qty" db:"other_qty"`
	OtherSales     decimal.NullDecimal `json:"other_sales" db:"other_sales"`
	FilmSales      decimal.NullDecimal `json:"film_sales" db:"film_sales"`
	WashesTotal    *float64            `json:"washes_total" db:"washes_total"`
	WashesSales    decimal.NullDecimal `json:"washes_sales" db:"washes_sales"`
}

// ComplementarySnapshot is one store's complementary sales for one month.
type ComplementarySnapshot struct {
	ID      int64 `json:"id" db:"id"`
	StoreID int64 `json:"store_id" db:"store_id"`
	Period
	ComplementaryMetrics
	Provenance
}

// SatisfactionSnapshot holds NPS figures as fractions in [0,1].
type SatisfactionSnapshot struct {
	ID           int64    `json:"id" db:"id"`
	StoreID      int64    `json:"store_id" db:"store_id"`
	NPS          *float64 `json:"nps" db:"nps"`
	ResponseRate *float64 `json:"response_rate" db:"response_rate"`
	Period
	Provenance
}

// Alert is a threshold breach raised for a store and period.
type Alert struct {
	ID               int64       `json:"id" db:"id"`
	StoreID          int64       `json:"store_id" db:"store_id"`
	Type             AlertType   `json:"type" db:"alert_type"`
	ThresholdPercent float64     `json:"threshold_percent" db:"threshold_percent"`
	ObservedPct      *float64    `json:"observed_pct" db:"observed_pct"`
	Description      string      `json:"description" db:"description"`
	Status           AlertStatus `json:"status" db:"status"`
	ResolutionNotes  string      `json:"resolution_notes,omitempty" db:"resolution_notes"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`
	Period
}

func (a Alert) Pending() bool {
	return a.Status == AlertPending
}

// AlertFilter narrows alert listings. Zero values match everything.
type AlertFilter struct {
	Status  AlertStatus
	StoreID int64
	Type    AlertType
	Limit   int
}
