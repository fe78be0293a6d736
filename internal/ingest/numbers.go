package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var cellCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "€", "", "$", "")

// parseCell reads a spreadsheet cell as a number. It accepts raw numeric values,
// comma or dot decimals, thousands separators and a trailing percent sign.
// ok is false for blank or non-numeric cells.
func parseCell(raw string) (value float64, percent bool, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, false
	}
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	s = cellCleaner.Replace(s)
	if s == "" || s == "-" {
		return 0, false, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	return v, percent, true
}

// ParseNumber returns nil for blank or non-numeric cells; zero is a real value.
// A cell printed with a percent sign is returned as a fraction.
func ParseNumber(raw string) *float64 {
	v, percent, ok := parseCell(raw)
	if !ok {
		return nil
	}
	if percent {
		v /= 100
	}
	return &v
}

// ParseFraction applies the satisfaction export convention: a percent sign or a
// bare value above 1 is a whole-number percentage, values in [0,1] are fractions.
func ParseFraction(raw string) *float64 {
	v, percent, ok := parseCell(raw)
	if !ok {
		return nil
	}
	if percent || v > 1 {
		v /= 100
	}
	return &v
}

// ParseAmount reads a money cell; blank cells stay invalid (unknown).
func ParseAmount(raw string) decimal.NullDecimal {
	v, _, ok := parseCell(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(2))
}

// isNumericLabel reports labels that are numbers rather than text.
func isNumericLabel(raw string) bool {
	_, _, ok := parseCell(raw)
	return ok
}
