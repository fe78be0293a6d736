// Package alerting raises low-performance alerts from stored results and lets
// operators close them.
package alerting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
)

type StoreLister interface {
	ListStores(ctx context.Context) ([]domain.Store, error)
}

type ResultsReader interface {
	ListResultsByPeriod(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ResultsSnapshot, error)
}

type Scanner struct {
	stores  StoreLister
	results ResultsReader
	alerts  repository.AlertRepository
	now     func() time.Time
}

func NewScanner(stores StoreLister, results ResultsReader, alerts repository.AlertRepository) *Scanner {
	return &Scanner{stores: stores, results: results, alerts: alerts, now: time.Now}
}

// below reports the deviation of s when it is under thresholdPercent (e.g. -10 for -10%).
func below(s domain.ResultsSnapshot, thresholdPercent float64) (float64, bool) {
	d := s.DeviationPct()
	if d == nil {
		return 0, false
	}
	return *d, *d < thresholdPercent/100
}

func validThreshold(thresholdPercent float64) error {
	if math.IsNaN(thresholdPercent) || math.IsInf(thresholdPercent, 0) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidThreshold, thresholdPercent)
	}
	return nil
}

// ScanAndCreate raises one pending alert per store whose deviation for p is
// below the threshold. Stores that already have a pending alert of the same
// type, from this or any earlier period, are left alone until it is resolved.
func (s *Scanner) ScanAndCreate(ctx context.Context, thresholdPercent float64, p domain.Period) (*domain.ScanResult, error) {
	if err := validThreshold(thresholdPercent); err != nil {
		return nil, err
	}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPeriod, p)
	}

	snaps, err := s.results.ListResultsByPeriod(ctx, p, domain.Scope{})
	if err != nil {
		return nil, err
	}
	stores, err := s.stores.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	names := make(map[int64]string, len(stores))
	for _, st := range stores {
		names[st.ID] = st.Name
	}

	res := &domain.ScanResult{Period: p, ThresholdPercent: thresholdPercent, StoresScanned: len(snaps)}
	for _, snap := range snaps {
		dev, ok := below(snap, thresholdPercent)
		if !ok {
			continue
		}
		res.StoresBelowThreshold++

		existing, err := s.alerts.FindPending(ctx, snap.StoreID, domain.AlertLowPerformance)
		if err != nil {
			return res, err
		}
		if existing != nil {
			continue
		}

		alert := &domain.Alert{
			StoreID:          snap.StoreID,
			Type:             domain.AlertLowPerformance,
			ThresholdPercent: thresholdPercent,
			ObservedPct:      &dev,
			Description:      Describe(names[snap.StoreID], dev, snap.TotalServices, snap.MonthlyTarget),
			CreatedAt:        s.now(),
			Period:           p,
		}
		created, err := s.alerts.CreatePending(ctx, alert)
		if err != nil {
			return res, err
		}
		if created {
			res.AlertsCreated++
			log.Info().
				Int64("store_id", alert.StoreID).
				Int64("alert_id", alert.ID).
				Float64("deviation_pct", dev).
				Msg("low performance alert raised")
		}
	}

	log.Info().
		Int("month", p.Month).
		Int("year", p.Year).
		Int("scanned", res.StoresScanned).
		Int("below", res.StoresBelowThreshold).
		Int("created", res.AlertsCreated).
		Msg("alert scan finished")
	return res, nil
}

// Describe renders the text attached to a low-performance alert.
func Describe(storeName string, deviation float64, services, target *float64) string {
	if storeName == "" {
		storeName = "Unknown store"
	}
	return fmt.Sprintf("Store %s is %.1f%% below monthly target. Services: %s / Target: %s",
		storeName, math.Abs(deviation*100), figure(services), figure(target))
}

func figure(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f", *v)
}

// LowPerformers lists the scoped stores under the threshold without raising
// alerts, worst first.
func (s *Scanner) LowPerformers(ctx context.Context, thresholdPercent float64, p domain.Period, scope domain.Scope) ([]domain.LowPerformer, error) {
	if err := validThreshold(thresholdPercent); err != nil {
		return nil, err
	}
	snaps, err := s.results.ListResultsByPeriod(ctx, p, scope)
	if err != nil {
		return nil, err
	}
	stores, err := s.stores.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	byID := make(map[int64]domain.Store, len(stores))
	for _, st := range stores {
		byID[st.ID] = st
	}

	out := []domain.LowPerformer{}
	for _, snap := range snaps {
		dev, ok := below(snap, thresholdPercent)
		if !ok {
			continue
		}
		zone := snap.Zone
		if zone == "" {
			zone = byID[snap.StoreID].Zone
		}
		out = append(out, domain.LowPerformer{
			StoreID:       snap.StoreID,
			Name:          byID[snap.StoreID].Name,
			Zone:          zone,
			DeviationPct:  dev,
			TotalServices: snap.TotalServices,
			MonthlyTarget: snap.MonthlyTarget,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DeviationPct != out[j].DeviationPct {
			return out[i].DeviationPct < out[j].DeviationPct
		}
		return out[i].StoreID < out[j].StoreID
	})
	return out, nil
}

// Resolve closes a pending alert with operator notes.
func (s *Scanner) Resolve(ctx context.Context, id int64, notes string) (*domain.Alert, error) {
	a, err := s.alerts.Resolve(ctx, id, notes, s.now())
	if err != nil {
		return nil, err
	}
	log.Info().Int64("alert_id", id).Msg("alert resolved")
	return a, nil
}

func (s *Scanner) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	return s.alerts.ListAlerts(ctx, filter)
}

func (s *Scanner) Get(ctx context.Context, id int64) (*domain.Alert, error) {
	return s.alerts.GetAlert(ctx, id)
}
