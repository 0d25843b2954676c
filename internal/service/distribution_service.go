package service

import (
	"context"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/util"
)

// DistributionService serves cohort distributions to dashboards.
type DistributionService struct {
	Repo  *repository.CohortDistributionRepository
	cache *DistributionCache
}

func NewDistributionService(repo *repository.CohortDistributionRepository, cache *DistributionCache) *DistributionService {
	return &DistributionService{Repo: repo, cache: cache}
}

// Get returns the distribution for an exact cohort key.
func (s *DistributionService) Get(ctx context.Context, key model.CohortKey) (*model.CohortDistribution, error) {
	key = key.Normalize()
	if d, ok := s.cache.Get(ctx, key); ok {
		return d, nil
	}
	gen, fill := s.cache.Generation(ctx, key)
	d, err := s.Repo.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, util.ErrDistributionNotFound
	}
	if fill {
		s.cache.Fill(ctx, d, gen)
	}
	return d, nil
}

func (s *DistributionService) List(ctx context.Context, f repository.DistributionFilter) ([]model.CohortDistribution, error) {
	return s.Repo.List(ctx, f)
}
