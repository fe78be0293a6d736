package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry is an immutable view of the store registry, keyed by normalized name.
// Build one per import; later registry edits are not visible through it.
type Registry struct {
	byKey  map[string][]domain.Store
	byID   map[int64]domain.Store
	stores []domain.Store
	keys   []string
}

// NewRegistry snapshots the given stores. Stores are kept in id order so that
// approximate lookups are deterministic.
func NewRegistry(stores []domain.Store) *Registry {
	sorted := make([]domain.Store, len(stores))
	copy(sorted, stores)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	r := &Registry{
		byKey:  make(map[string][]domain.Store, len(sorted)),
		byID:   make(map[int64]domain.Store, len(sorted)),
		stores: sorted,
		keys:   make([]string, len(sorted)),
	}
	for i, s := range sorted {
		key := Normalize(s.Name)
		r.keys[i] = key
		r.byID[s.ID] = s
		if key == "" {
			continue
		}
		r.byKey[key] = append(r.byKey[key], s)
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.stores)
}

// Stores returns the snapshot in id order.
func (r *Registry) Stores() []domain.Store {
	out := make([]domain.Store, len(r.stores))
	copy(out, r.stores)
	return out
}

// Store looks a store up by id.
func (r *Registry) Store(id int64) (domain.Store, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Resolve finds the store whose normalized name equals the normalized label.
// Two stores sharing a key are reported as ambiguous rather than guessed.
func (r *Registry) Resolve(label string) (domain.Store, error) {
	key := Normalize(label)
	matches := r.byKey[key]
	switch len(matches) {
	case 0:
		return domain.Store{}, fmt.Errorf("%w: %q", domain.ErrStoreNotFound, label)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, fmt.Sprint(m.ID))
		}
		return domain.Store{}, fmt.Errorf("%w: %q matches stores %s", domain.ErrAmbiguousStore, label, strings.Join(ids, ", "))
	}
}

// Match is the result of an approximate lookup.
type Match struct {
	Label string       `json:"label"`
	Key   string       `json:"key"`
	Store domain.Store `json:"store"`
	Exact bool         `json:"exact"`
}

// ResolveApproximate is the diagnostic lookup used by admin tooling, never by bulk
// import. After an exact match it accepts the first store (by id) whose normalized
// name contains, or is contained in, the normalized label. Every match is logged.
func (r *Registry) ResolveApproximate(label string) (Match, bool) {
	key := Normalize(label)
	if key == "" {
		return Match{}, false
	}

	if s, err := r.Resolve(label); err == nil {
		m := Match{Label: label, Key: key, Store: s, Exact: true}
		logMatch(m)
		return m, true
	}

	for i, s := range r.stores {
		candidate := r.keys[i]
		if candidate == "" {
			continue
		}
		if strings.Contains(key, candidate) || strings.Contains(candidate, key) {
			m := Match{Label: label, Key: key, Store: s}
			logMatch(m)
			return m, true
		}
	}

	log.Info().Str("label", label).Str("key", key).Msg("approximate store match: no candidate")
	return Match{}, false
}

func logMatch(m Match) {
	log.Info().
		Str("label", m.Label).
		Str("key", m.Key).
		Int64("store_id", m.Store.ID).
		Str("store_name", m.Store.Name).
		Bool("exact", m.Exact).
		Msg("approximate store match")
}
