package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	cases := map[string]*float64{
		"":          nil,
		"   ":       nil,
		"-":         nil,
		"n/a":       nil,
		"0":         fp(0),
		"110":       fp(110),
		"12.5":      fp(12.5),
		"12,5":      fp(12.5),
		"1.234,56":  fp(1234.56),
		"1,234.56":  fp(1234.56),
		"1.234.567": fp(1234567),
		"1,234,567": fp(1234567),
		"-15%":      fp(-0.15),
		"22,0 %":    fp(0.22),
		"€ 1 200":   fp(1200),
		"-0.25":     fp(-0.25),
	}
	for in, want := range cases {
		got := ParseNumber(in)
		if want == nil {
			assert.Nil(t, got, "input %q", in)
			continue
		}
		require.NotNil(t, got, "input %q", in)
		assert.InDelta(t, *want, *got, 1e-9, "input %q", in)
	}
}

func TestParseFraction(t *testing.T) {
	cases := map[string]float64{
		"100,0%": 1,
		"45":     0.45,
		"0.8":    0.8,
		"1":      1,
		"0":      0,
		"73.5%":  0.735,
	}
	for in, want := range cases {
		got := ParseFraction(in)
		require.NotNil(t, got, "input %q", in)
		assert.InDelta(t, want, *got, 1e-9, "input %q", in)
	}
	assert.Nil(t, ParseFraction(""))
}

func TestParseAmount(t *testing.T) {
	got := ParseAmount("1.234,567")
	require.True(t, got.Valid)
	assert.Equal(t, "1234.57", got.Decimal.StringFixed(2))

	assert.False(t, ParseAmount("").Valid)

	zero := ParseAmount("0")
	require.True(t, zero.Valid, "zero is a value, not unknown")
	assert.True(t, zero.Decimal.IsZero())
}

func TestIsNumericLabel(t *testing.T) {
	assert.True(t, isNumericLabel("42"))
	assert.False(t, isNumericLabel("Loja 42"))
}

func fp(v float64) *float64 { return &v }
