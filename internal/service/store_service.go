package service

import (
	"context"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/ingest"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository"
	"github.com/andresuchdata/storeresults/backend-go/internal/resolver"
)

type StoreService struct {
	repo  repository.StoreRepository
	cache Invalidator
}

func NewStoreService(repo repository.StoreRepository, cache Invalidator) *StoreService {
	return &StoreService{repo: repo, cache: cache}
}

func (s *StoreService) List(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ListStores(ctx)
}

func (s *StoreService) Get(ctx context.Context, id int64) (*domain.Store, error) {
	return s.repo.GetStore(ctx, id)
}

// Save validates and upserts a store by normalized name.
func (s *StoreService) Save(ctx context.Context, store *domain.Store) (bool, error) {
	if err := ingest.ValidateStore(store); err != nil {
		return false, err
	}
	created, err := s.repo.UpsertStore(ctx, store)
	if err != nil {
		return false, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *StoreService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteStore(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *StoreService) AssignManager(ctx context.Context, managerID string, storeIDs []int64) error {
	for _, id := range storeIDs {
		if _, err := s.repo.GetStore(ctx, id); err != nil {
			return err
		}
	}
	return s.repo.AssignManager(ctx, managerID, storeIDs)
}

func (s *StoreService) ManagerStores(ctx context.Context, managerID string) ([]int64, error) {
	return s.repo.ManagerStoreIDs(ctx, managerID)
}

// ResolveResult is the outcome of a diagnostic lookup of one raw label.
type ResolveResult struct {
	Label  string        `json:"label"`
	Key    string        `json:"key"`
	Marker string        `json:"marker,omitempty"`
	Found  bool          `json:"found"`
	Exact  bool          `json:"exact"`
	Store  *domain.Store `json:"store,omitempty"`
}

// ResolveApproximate is the manual diagnostic lookup. It is never used by imports.
func (s *StoreService) ResolveApproximate(ctx context.Context, labels []string) ([]ResolveResult, error) {
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	registry := resolver.NewRegistry(stores)

	out := make([]ResolveResult, 0, len(labels))
	for _, label := range labels {
		res := ResolveResult{Label: label, Key: resolver.Normalize(label)}
		if kind := resolver.ClassifyLabel(label); kind != resolver.NotAMarker {
			res.Marker = kind.String()
			out = append(out, res)
			continue
		}
		if m, ok := registry.ResolveApproximate(label); ok {
			store := m.Store
			res.Found, res.Exact, res.Store = true, m.Exact, &store
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *StoreService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
