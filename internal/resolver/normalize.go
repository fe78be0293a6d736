package resolver

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	hyphenSpacing = regexp.MustCompile(`\s*-\s*`)
	dashReplacer  = strings.NewReplacer("\u00a0", " ", "\u2013", "-", "\u2014", "-")
)

// Normalize turns free text into the key used to compare store names.
// The result is stable under repeated application.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	// Lowercase first: some upper-case runes lower into a base letter plus a combining mark.
	s := strings.ToLower(text)
	s = foldDiacritics(s)
	s = dashReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return hyphenSpacing.ReplaceAllString(s, " - ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// MarkerKind classifies labels that are not stores.
type MarkerKind int

const (
	NotAMarker MarkerKind = iota
	TotalMarker
	RoleMarker
	HeaderMarker
)

func (k MarkerKind) String() string {
	switch k {
	case TotalMarker:
		return "total"
	case RoleMarker:
		return "role aggregate"
	case HeaderMarker:
		return "header"
	default:
		return "store"
	}
}

// ClassifyLabel reports whether a raw spreadsheet label is a totals row, a role
// aggregate (promoter) row or the zone header word rather than a store.
func ClassifyLabel(raw string) MarkerKind {
	key := Normalize(raw)
	switch {
	case strings.Contains(key, "total"):
		return TotalMarker
	case strings.Contains(key, "promotor"), strings.Contains(key, "promoter"):
		return RoleMarker
	case key == "zona", key == "zone":
		return HeaderMarker
	}
	return NotAMarker
}

// IsNonStoreLabel is ClassifyLabel(raw) != NotAMarker.
func IsNonStoreLabel(raw string) bool {
	return ClassifyLabel(raw) != NotAMarker
}

// IsZoneSubtotal reports labels such as "ZONA NORTE", which some exports print as
// per-zone subtotal rows. Only consulted after an exact lookup failed.
func IsZoneSubtotal(raw string) bool {
	key := Normalize(raw)
	return strings.HasPrefix(key, "zona ") || strings.HasPrefix(key, "zone ")
}
