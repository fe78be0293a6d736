package ingest

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// Layout is the fixed geometry of one export. Rows and columns are 0-based.
type Layout struct {
	Dataset      domain.DatasetType
	SheetName    string
	LabelColumn  int
	FirstDataRow int
	// TotalsRow is the network totals row, or -1.
	TotalsRow int
}

// Results export columns.
const (
	resZone = iota
	resLabel
	resTotalServices
	resServicesPerEmployee
	resEmployees
	resTargetToDate
	resMonthlyTarget
	resAccumulatedDeviation
	resDailyDeviation
	resMonthlyDeviation
	resRepairRate
	resRepairCount
	resWindscreens
	resRepairGap
)

// Complementary sales export columns.
const (
	compLabel          = 2
	compTotalSales     = 3
	compBrushSales     = 5
	compBrushQty       = 6
	compBrushShare     = 7
	compPolishQty      = 8
	compPolishSales    = 9
	compTreatmentQty   = 10
	compTreatmentSales = 11
	compOtherQty       = 12
	compOtherSales     = 13
	compFilmSales      = 14
	compWashesTotal    = 21
	compWashesSales    = 22
)

// Satisfaction export: month M has its NPS at column 1+M and its response rate at 14+M.
const (
	satLabel              = 1
	satNPSOffset          = 1
	satResponseRateOffset = 14
)

var layouts = map[domain.DatasetType]Layout{
	domain.DatasetResults: {
		Dataset:      domain.DatasetResults,
		SheetName:    "Faturados",
		LabelColumn:  resLabel,
		FirstDataRow: 10,
		TotalsRow:    9,
	},
	domain.DatasetComplementary: {
		Dataset:      domain.DatasetComplementary,
		SheetName:    "Complementares",
		LabelColumn:  compLabel,
		FirstDataRow: 10,
		TotalsRow:    -1,
	},
	domain.DatasetSatisfaction: {
		Dataset:      domain.DatasetSatisfaction,
		SheetName:    "Por Loja",
		LabelColumn:  satLabel,
		FirstDataRow: 1,
		TotalsRow:    -1,
	},
}

// LayoutFor returns the layout of a dataset type.
func LayoutFor(dataset domain.DatasetType) (Layout, error) {
	l, ok := layouts[dataset]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q", domain.ErrUnknownDataset, dataset)
	}
	return l, nil
}

// RawRow is one candidate data row: a text label plus its raw cells.
type RawRow struct {
	// Index is the 0-based sheet row.
	Index int
	Label string
	Cells []string
}

// Number is the 1-based row number a spreadsheet tool shows.
func (r RawRow) Number() int {
	return r.Index + 1
}

// DataRows returns the rows at or after FirstDataRow with a text label.
// Blank labels are separators; numeric labels are not store names.
func (l Layout) DataRows(rows [][]string) (data []RawRow, skipped int) {
	for i := l.FirstDataRow; i < len(rows); i++ {
		label := strings.TrimSpace(cellAt(rows[i], l.LabelColumn))
		if label == "" || isNumericLabel(label) {
			skipped++
			continue
		}
		data = append(data, RawRow{Index: i, Label: label, Cells: rows[i]})
	}
	return data, skipped
}

// Totals returns the totals row when the layout has one and the sheet fills it.
func (l Layout) Totals(rows [][]string) ([]string, bool) {
	if l.TotalsRow < 0 || l.TotalsRow >= len(rows) || rowIsBlank(rows[l.TotalsRow]) {
		return nil, false
	}
	return rows[l.TotalsRow], true
}

func cellAt(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

func extractResults(cells []string) domain.ResultsMetrics {
	num := func(col int) *float64 { return ParseNumber(cellAt(cells, col)) }
	return domain.ResultsMetrics{
		TotalServices:        num(resTotalServices),
		ServicesPerEmployee:  num(resServicesPerEmployee),
		Employees:            num(resEmployees),
		TargetToDate:         num(resTargetToDate),
		MonthlyTarget:        num(resMonthlyTarget),
		AccumulatedDeviation: num(resAccumulatedDeviation),
		DailyDeviationPct:    num(resDailyDeviation),
		MonthlyDeviationPct:  num(resMonthlyDeviation),
		ReportedRepairRate:   num(resRepairRate),
		RepairCount:          num(resRepairCount),
		WindscreenCount:      num(resWindscreens),
		RepairGap:            num(resRepairGap),
	}
}

func extractZone(cells []string) string {
	return strings.TrimSpace(cellAt(cells, resZone))
}

func extractComplementary(cells []string) domain.ComplementaryMetrics {
	num := func(col int) *float64 { return ParseNumber(cellAt(cells, col)) }
	amount := func(col int) decimal.NullDecimal { return ParseAmount(cellAt(cells, col)) }
	return domain.ComplementaryMetrics{
		TotalSales:     amount(compTotalSales),
		BrushSales:     amount(compBrushSales),
		BrushQty:       num(compBrushQty),
		BrushShare:     num(compBrushShare),
		PolishQty:      num(compPolishQty),
		PolishSales:    amount(compPolishSales),
		TreatmentQty:   num(compTreatmentQty),
		TreatmentSales: amount(compTreatmentSales),
		OtherQty:       num(compOtherQty),
		OtherSales:     amount(compOtherSales),
		FilmSales:      amount(compFilmSales),
		WashesTotal:    num(compWashesTotal),
		WashesSales:    amount(compWashesSales),
	}
}

func extractSatisfaction(cells []string, month int) (nps, responseRate *float64) {
	return ParseFraction(cellAt(cells, satNPSOffset+month)),
		ParseFraction(cellAt(cells, satResponseRateOffset+month))
}
