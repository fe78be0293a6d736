package service

import (
	"context"

	"github.com/andresuchdata/storeresults/backend-go/internal/alerting"
	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
)

type AlertService struct {
	scanner          *alerting.Scanner
	cache            Invalidator
	defaultThreshold float64
}

func NewAlertService(scanner *alerting.Scanner, cache Invalidator, defaultThreshold float64) *AlertService {
	return &AlertService{scanner: scanner, cache: cache, defaultThreshold: defaultThreshold}
}

func (s *AlertService) threshold(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.defaultThreshold
}

// Scan raises low-performance alerts; threshold nil uses the configured default.
func (s *AlertService) Scan(ctx context.Context, threshold *float64, p domain.Period) (*domain.ScanResult, error) {
	res, err := s.scanner.ScanAndCreate(ctx, s.threshold(threshold), p)
	if err != nil {
		return res, err
	}
	if s.cache != nil && res.AlertsCreated > 0 {
		s.cache.Invalidate(ctx)
	}
	return res, nil
}

func (s *AlertService) LowPerformers(ctx context.Context, threshold *float64, p domain.Period, scope domain.Scope) ([]domain.LowPerformer, error) {
	return s.scanner.LowPerformers(ctx, s.threshold(threshold), p, scope)
}

func (s *AlertService) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	return s.scanner.List(ctx, filter)
}

func (s *AlertService) Get(ctx context.Context, id int64) (*domain.Alert, error) {
	return s.scanner.Get(ctx, id)
}

func (s *AlertService) Resolve(ctx context.Context, id int64, notes string) (*domain.Alert, error) {
	return s.scanner.Resolve(ctx, id, notes)
}
