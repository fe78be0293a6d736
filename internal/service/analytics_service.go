package service

import (
	"context"

	"github.com/andresuchdata/storeresults/backend-go/internal/analytics"
	"github.com/andresuchdata/storeresults/backend-go/internal/cache"
	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

type AnalyticsService struct {
	engine *analytics.Engine
	cache  cache.AnalyticsCache
}

func NewAnalyticsService(engine *analytics.Engine, cacheImpl cache.AnalyticsCache) *AnalyticsService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAnalyticsCache()
	}
	return &AnalyticsService{engine: engine, cache: cacheImpl}
}

// cached answers from the analytics cache and falls back to load. Cache
// failures are logged and never fail the query.
func cached[T any](ctx context.Context, c cache.AnalyticsCache, key string, load func() (T, error)) (T, error) {
	var hit T
	if ok, err := c.Get(ctx, key, &hit); err == nil && ok {
		return hit, nil
	} else if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analytics: cache get failed")
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("analytics: cache set failed")
	}
	return value, nil
}

func (s *AnalyticsService) Scope(ctx context.Context, managerID string) (domain.Scope, error) {
	return s.engine.ScopeForManager(ctx, managerID)
}

func (s *AnalyticsService) PeriodStats(ctx context.Context, p domain.Period, scope domain.Scope) (*domain.PeriodStats, error) {
	return cached(ctx, s.cache, cache.Key("stats", p, scope), func() (*domain.PeriodStats, error) {
		return s.engine.PeriodStats(ctx, p, scope)
	})
}

func (s *AnalyticsService) Ranking(ctx context.Context, metric domain.RankingMetric, p domain.Period, limit int, scope domain.Scope) ([]domain.RankingEntry, error) {
	return cached(ctx, s.cache, cache.Key("ranking", metric, p, limit, scope), func() ([]domain.RankingEntry, error) {
		return s.engine.Ranking(ctx, metric, p, limit, scope)
	})
}

func (s *AnalyticsService) ZoneRollup(ctx context.Context, p domain.Period, scope domain.Scope) ([]domain.ZoneRollup, error) {
	return cached(ctx, s.cache, cache.Key("zones", p, scope), func() ([]domain.ZoneRollup, error) {
		return s.engine.ZoneRollup(ctx, p, scope)
	})
}

func (s *AnalyticsService) StoreEvolution(ctx context.Context, storeID int64, monthsBack int) ([]domain.ResultsSnapshot, error) {
	return s.engine.StoreEvolution(ctx, storeID, monthsBack)
}

func (s *AnalyticsService) GroupEvolution(ctx context.Context, scope domain.Scope, monthsBack int) ([]domain.EvolutionPoint, error) {
	return cached(ctx, s.cache, cache.Key("evolution", s.engine.CurrentPeriod(), scope, monthsBack), func() ([]domain.EvolutionPoint, error) {
		return s.engine.GroupEvolution(ctx, scope, monthsBack)
	})
}

func (s *AnalyticsService) StoreHistory(ctx context.Context, dataset domain.DatasetType, storeID int64, monthsBack int) (*domain.StoreHistory, error) {
	return s.engine.StoreHistory(ctx, dataset, storeID, monthsBack)
}

func (s *AnalyticsService) Compare(ctx context.Context, storeA, storeB int64, p domain.Period) (*domain.StoreComparison, error) {
	return s.engine.Compare(ctx, storeA, storeB, p)
}

func (s *AnalyticsService) ComparePeriods(ctx context.Context, current, previous domain.Period, scope domain.Scope) (*domain.PeriodComparison, error) {
	return cached(ctx, s.cache, cache.Key("periods", current, previous, scope), func() (*domain.PeriodComparison, error) {
		return s.engine.ComparePeriods(ctx, current, previous, scope)
	})
}

func (s *AnalyticsService) NetworkTotals(ctx context.Context, p domain.Period) (*domain.NetworkTotals, error) {
	return s.engine.NetworkTotals(ctx, p)
}

func (s *AnalyticsService) NetworkTotalsSeries(ctx context.Context, monthsBack int) ([]domain.NetworkTotals, error) {
	return s.engine.NetworkTotalsSeries(ctx, monthsBack)
}

func (s *AnalyticsService) AvailablePeriods(ctx context.Context, dataset domain.DatasetType) ([]domain.AvailablePeriod, error) {
	return cached(ctx, s.cache, cache.Key("available", dataset), func() ([]domain.AvailablePeriod, error) {
		return s.engine.AvailablePeriods(ctx, dataset)
	})
}

func (s *AnalyticsService) ComplementaryStats(ctx context.Context, p domain.Period, scope domain.Scope) (*domain.ComplementaryStats, error) {
	return cached(ctx, s.cache, cache.Key("complementary", p, scope), func() (*domain.ComplementaryStats, error) {
		return s.engine.ComplementaryStats(ctx, p, scope)
	})
}

// Invalidate drops every cached answer.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("analytics: cache invalidation failed")
	}
}
