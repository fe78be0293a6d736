package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// Directory maps store ids to registry entries.
type Directory map[int64]domain.Store

func NewDirectory(stores []domain.Store) Directory {
	d := make(Directory, len(stores))
	for _, s := range stores {
		d[s.ID] = s
	}
	return d
}

func (d Directory) name(id int64) string {
	return d[id].Name
}

// zoneOf prefers the zone printed in the export and falls back to the registry.
func (d Directory) zoneOf(s domain.ResultsSnapshot) string {
	if z := strings.TrimSpace(s.Zone); z != "" {
		return z
	}
	return strings.TrimSpace(d[s.StoreID].Zone)
}

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m meanAcc) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

func addTo(sum *float64, v *float64) {
	if v != nil {
		*sum += *v
	}
}

// ComputePeriodStats summarises the snapshots of one period. Stores without a
// target count in the sums but never as above target.
func ComputePeriodStats(p domain.Period, snaps []domain.ResultsSnapshot) domain.PeriodStats {
	stats := domain.PeriodStats{Period: p, StoreCount: len(snaps)}
	var dev, rate meanAcc
	for _, s := range snaps {
		addTo(&stats.SumTotalServices, s.TotalServices)
		addTo(&stats.SumMonthlyTarget, s.MonthlyTarget)
		addTo(&stats.SumRepairs, s.RepairCount)

		d := s.DeviationPct()
		dev.add(d)
		rate.add(s.RepairRate())

		if s.HasTarget() {
			stats.StoresWithTarget++
			if d != nil && *d >= 0 {
				stats.StoresAboveTarget++
			}
		}
	}
	stats.MeanDeviationPct = dev.value()
	stats.MeanRepairRate = rate.value()
	return stats
}

// resultsMetric returns the accessor for a results ranking metric.
func resultsMetric(m domain.RankingMetric) (func(domain.ResultsSnapshot) *float64, bool) {
	switch m {
	case domain.MetricTotalServices:
		return func(s domain.ResultsSnapshot) *float64 { return s.TotalServices }, true
	case domain.MetricDeviation:
		return func(s domain.ResultsSnapshot) *float64 { return s.DeviationPct() }, true
	case domain.MetricRepairRate:
		return func(s domain.ResultsSnapshot) *float64 { return s.RepairRate() }, true
	case domain.MetricServicesPerEmployee:
		return func(s domain.ResultsSnapshot) *float64 { return s.ServicesPerEmployee }, true
	case domain.MetricMonthlyTarget:
		return func(s domain.ResultsSnapshot) *float64 { return s.MonthlyTarget }, true
	}
	return nil, false
}

func amount(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}

func complementaryMetric(m domain.RankingMetric) (func(domain.ComplementarySnapshot) *float64, bool) {
	switch m {
	case domain.MetricTotalSales:
		return func(s domain.ComplementarySnapshot) *float64 { return amount(s.TotalSales) }, true
	case domain.MetricBrushSales:
		return func(s domain.ComplementarySnapshot) *float64 { return amount(s.BrushSales) }, true
	case domain.MetricBrushShare:
		return func(s domain.ComplementarySnapshot) *float64 { return s.BrushShare }, true
	case domain.MetricPolishSales:
		return func(s domain.ComplementarySnapshot) *float64 { return amount(s.PolishSales) }, true
	}
	return nil, false
}

func satisfactionMetric(m domain.RankingMetric) (func(domain.SatisfactionSnapshot) *float64, bool) {
	switch m {
	case domain.MetricNPS:
		return func(s domain.SatisfactionSnapshot) *float64 { return s.NPS }, true
	case domain.MetricResponseRate:
		return func(s domain.SatisfactionSnapshot) *float64 { return s.ResponseRate }, true
	}
	return nil, false
}

// MetricDataset tells which dataset a ranking metric belongs to.
func MetricDataset(m domain.RankingMetric) (domain.DatasetType, error) {
	if _, ok := resultsMetric(m); ok {
		return domain.DatasetResults, nil
	}
	if _, ok := complementaryMetric(m); ok {
		return domain.DatasetComplementary, nil
	}
	if _, ok := satisfactionMetric(m); ok {
		return domain.DatasetSatisfaction, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownMetric, m)
}

// SortRanking orders entries by value descending, unknown values last, ties by
// store id ascending, then numbers positions from 1 and applies limit (<= 0 keeps all).
func SortRanking(entries []domain.RankingEntry, limit int) []domain.RankingEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Value == nil && b.Value == nil:
			return a.StoreID < b.StoreID
		case a.Value == nil:
			return false
		case b.Value == nil:
			return true
		case *a.Value != *b.Value:
			return *a.Value > *b.Value
		default:
			return a.StoreID < b.StoreID
		}
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

func RankResults(snaps []domain.ResultsSnapshot, dir Directory, metric domain.RankingMetric, limit int) ([]domain.RankingEntry, error) {
	value, ok := resultsMetric(metric)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a results metric", domain.ErrUnknownMetric, metric)
	}
	entries := make([]domain.RankingEntry, 0, len(snaps))
	for _, s := range snaps {
		entries = append(entries, domain.RankingEntry{
			StoreID: s.StoreID,
			Name:    dir.name(s.StoreID),
			Zone:    dir.zoneOf(s),
			Value:   value(s),
		})
	}
	return SortRanking(entries, limit), nil
}

func RankComplementary(snaps []domain.ComplementarySnapshot, dir Directory, metric domain.RankingMetric, limit int) ([]domain.RankingEntry, error) {
	value, ok := complementaryMetric(metric)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a complementary metric", domain.ErrUnknownMetric, metric)
	}
	entries := make([]domain.RankingEntry, 0, len(snaps))
	for _, s := range snaps {
		entries = append(entries, domain.RankingEntry{
			StoreID: s.StoreID,
			Name:    dir.name(s.StoreID),
			Zone:    dir[s.StoreID].Zone,
			Value:   value(s),
		})
	}
	return SortRanking(entries, limit), nil
}

func RankSatisfaction(snaps []domain.SatisfactionSnapshot, dir Directory, metric domain.RankingMetric, limit int) ([]domain.RankingEntry, error) {
	value, ok := satisfactionMetric(metric)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a satisfaction metric", domain.ErrUnknownMetric, metric)
	}
	entries := make([]domain.RankingEntry, 0, len(snaps))
	for _, s := range snaps {
		entries = append(entries, domain.RankingEntry{
			StoreID: s.StoreID,
			Name:    dir.name(s.StoreID),
			Zone:    dir[s.StoreID].Zone,
			Value:   value(s),
		})
	}
	return SortRanking(entries, limit), nil
}

// RollupZones groups a period by zone. Zones are sorted by name with the
// no-zone bucket last; best and worst are picked by deviation.
func RollupZones(p domain.Period, snaps []domain.ResultsSnapshot, dir Directory) []domain.ZoneRollup {
	groups := make(map[string][]domain.ResultsSnapshot)
	for _, s := range snaps {
		z := dir.zoneOf(s)
		groups[z] = append(groups[z], s)
	}

	out := make([]domain.ZoneRollup, 0, len(groups))
	for zone, members := range groups {
		r := domain.ZoneRollup{
			Zone:  zone,
			Stats: ComputePeriodStats(p, members),
		}
		if zone == "" {
			r.Zone = domain.NoZoneLabel
			r.NoZone = true
		}
		r.Best, r.Worst = extremes(members, dir)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NoZone != out[j].NoZone {
			return out[j].NoZone
		}
		return out[i].Zone < out[j].Zone
	})
	return out
}

func extremes(snaps []domain.ResultsSnapshot, dir Directory) (best, worst *domain.StoreRef) {
	for _, s := range snaps {
		d := s.DeviationPct()
		if d == nil {
			continue
		}
		ref := &domain.StoreRef{StoreID: s.StoreID, Name: dir.name(s.StoreID), Value: d}
		if best == nil || *d > *best.Value || (*d == *best.Value && s.StoreID < best.StoreID) {
			best = ref
		}
		if worst == nil || *d < *worst.Value || (*d == *worst.Value && s.StoreID < worst.StoreID) {
			worst = ref
		}
	}
	return best, worst
}

type seriesAcc struct {
	stores      int
	total       float64
	target      float64
	repairs     float64
	glass       float64
	hasTotal    bool
	hasTarget   bool
	hasRepairs  bool
	hasGlass    bool
	devActual   float64
	devTarget   float64
	rateRepairs float64
	rateGlass   float64
}

// GroupEvolution sums a group of stores per month. Months without snapshots
// are absent from the series.
func GroupEvolution(snaps []domain.ResultsSnapshot) []domain.EvolutionPoint {
	acc := make(map[domain.Period]*seriesAcc)
	for _, s := range snaps {
		a, ok := acc[s.Period]
		if !ok {
			a = &seriesAcc{}
			acc[s.Period] = a
		}
		a.stores++
		if s.TotalServices != nil {
			a.total += *s.TotalServices
			a.hasTotal = true
		}
		if s.MonthlyTarget != nil {
			a.target += *s.MonthlyTarget
			a.hasTarget = true
		}
		if s.RepairCount != nil {
			a.repairs += *s.RepairCount
			a.hasRepairs = true
		}
		if s.WindscreenCount != nil {
			a.glass += *s.WindscreenCount
			a.hasGlass = true
		}
		if s.TotalServices != nil && s.HasTarget() {
			a.devActual += *s.TotalServices
			a.devTarget += *s.MonthlyTarget
		}
		if s.RepairCount != nil && s.WindscreenCount != nil {
			a.rateRepairs += *s.RepairCount
			a.rateGlass += *s.WindscreenCount
		}
	}

	points := make([]domain.EvolutionPoint, 0, len(acc))
	for p, a := range acc {
		pt := domain.EvolutionPoint{Period: p, StoreCount: a.stores}
		if a.hasTotal {
			pt.TotalServices = ptr(a.total)
		}
		if a.hasTarget {
			pt.MonthlyTarget = ptr(a.target)
		}
		if a.hasRepairs {
			pt.RepairCount = ptr(a.repairs)
		}
		if a.hasGlass {
			pt.WindscreenCount = ptr(a.glass)
		}
		if a.devTarget != 0 {
			pt.DeviationPct = ptr((a.devActual - a.devTarget) / a.devTarget)
		}
		if a.rateGlass != 0 {
			pt.RepairRate = ptr(a.rateRepairs / a.rateGlass)
		}
		points = append(points, pt)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points
}

// ComparePeriodStats puts current next to previous.
func ComparePeriodStats(current, previous domain.PeriodStats) domain.PeriodComparison {
	return domain.PeriodComparison{
		Current:            current,
		Previous:           previous,
		DeltaTotalServices: current.SumTotalServices - previous.SumTotalServices,
		DeltaDeviationPct:  delta(current.MeanDeviationPct, previous.MeanDeviationPct),
		DeltaRepairRate:    delta(current.MeanRepairRate, previous.MeanRepairRate),
	}
}

func delta(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return ptr(*a - *b)
}

func ComputeComplementaryStats(p domain.Period, snaps []domain.ComplementarySnapshot) domain.ComplementaryStats {
	stats := domain.ComplementaryStats{Period: p, StoreCount: len(snaps)}
	var share meanAcc
	sum := func(dst *decimal.Decimal, v decimal.NullDecimal) {
		if v.Valid {
			*dst = dst.Add(v.Decimal)
		}
	}
	for _, s := range snaps {
		if s.TotalSales.Valid && s.TotalSales.Decimal.IsPositive() {
			stats.StoresWithSales++
		}
		sum(&stats.SumSales, s.TotalSales)
		sum(&stats.SumBrushSales, s.BrushSales)
		sum(&stats.SumPolishSales, s.PolishSales)
		sum(&stats.SumTreatmentSales, s.TreatmentSales)
		sum(&stats.SumOtherSales, s.OtherSales)
		sum(&stats.SumFilmSales, s.FilmSales)
		sum(&stats.SumWashesSales, s.WashesSales)
		addTo(&stats.TotalBrushQty, s.BrushQty)
		addTo(&stats.TotalPolishQty, s.PolishQty)
		addTo(&stats.TotalTreatmentQty, s.TreatmentQty)
		addTo(&stats.TotalWashes, s.WashesTotal)

		share.add(s.BrushShare)
		if s.BrushShare != nil && *s.BrushShare >= domain.BrushShareGoal {
			stats.StoresMeetingBrushGoal++
		}
	}
	stats.StoresWithoutSales = stats.StoreCount - stats.StoresWithSales
	stats.MeanBrushShare = share.value()
	return stats
}

func ptr(v float64) *float64 {
	return &v
}
