package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/internal/util"
	"sel_rubric_backend/pkg/logger"
	"sel_rubric_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DistributionStore is the document store the aggregator needs: point lookup by
// cohort key, create, and a version-guarded update of the counters.
type DistributionStore interface {
	Find(ctx context.Context, key model.CohortKey) (*model.CohortDistribution, error)
	Create(ctx context.Context, d *model.CohortDistribution) error
	UpdateCounts(ctx context.Context, id string, expectedVersion int, dist rubric.Distribution) (bool, error)
}

// AggregationHooks receives aggregator events, typically for metrics.
type AggregationHooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

const (
	opRecord  = "record"
	opRevise  = "revise"
	opRetract = "retract"
	opReplace = "replace"
)

// AggregatorService maintains the per-cohort level distributions incrementally.
//
// Every write is a read-modify-write guarded by the row version. A lost race is a
// conflict; the public methods retry the whole cycle under the retry policy, the
// *Once variants make a single attempt so callers can retry a wider transaction.
type AggregatorService struct {
	store  DistributionStore
	cache  *DistributionCache
	hooks  AggregationHooks
	policy *atomic.Pointer[RetryPolicy]
}

func NewAggregatorService(store DistributionStore, cache *DistributionCache, hooks AggregationHooks, policy RetryPolicy) *AggregatorService {
	if hooks == nil {
		hooks = noopHooks{}
	}
	p := &atomic.Pointer[RetryPolicy]{}
	p.Store(&policy)
	return &AggregatorService{store: store, cache: cache, hooks: hooks, policy: p}
}

// WithStore returns an aggregator writing through store, typically a transaction-bound
// repository. Hooks, cache and retry policy are shared with s.
func (s *AggregatorService) WithStore(store DistributionStore) *AggregatorService {
	return &AggregatorService{store: store, cache: s.cache, hooks: s.hooks, policy: s.policy}
}

func (s *AggregatorService) RetryPolicy() RetryPolicy {
	return *s.policy.Load()
}

// SetRetryPolicy swaps the policy for subsequent operations.
func (s *AggregatorService) SetRetryPolicy(p RetryPolicy) {
	s.policy.Store(&p)
}

func (s *AggregatorService) Hooks() AggregationHooks {
	return s.hooks
}

// RecordAssessment counts one more student in the cohort.
func (s *AggregatorService) RecordAssessment(ctx context.Context, key model.CohortKey, result rubric.Result) (*model.CohortDistribution, error) {
	return s.run(ctx, opRecord, key, func() (*model.CohortDistribution, error) {
		return s.RecordOnce(ctx, key, result)
	})
}

// ReviseAssessment moves an edited student from the bands of old to the bands of updated.
func (s *AggregatorService) ReviseAssessment(ctx context.Context, key model.CohortKey, old, updated rubric.Result) (*model.CohortDistribution, error) {
	return s.run(ctx, opRevise, key, func() (*model.CohortDistribution, error) {
		return s.ReviseOnce(ctx, key, old, updated)
	})
}

// RetractAssessment removes a deleted student's contribution.
func (s *AggregatorService) RetractAssessment(ctx context.Context, key model.CohortKey, result rubric.Result) (*model.CohortDistribution, error) {
	return s.run(ctx, opRetract, key, func() (*model.CohortDistribution, error) {
		return s.RetractOnce(ctx, key, result)
	})
}

func (s *AggregatorService) run(ctx context.Context, op string, key model.CohortKey, fn func() (*model.CohortDistribution, error)) (*model.CohortDistribution, error) {
	key = key.Normalize()
	ctx, span := tracing.StartSpan(ctx, "aggregator."+op, attribute.String("cohort", key.String()))
	start := time.Now()

	d, err := withConflictRetry(ctx, s.RetryPolicy(), s.hooks, op, fn)

	s.hooks.ObserveOperation(op, operationStatus(err), time.Since(start))
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, key)
	return d, nil
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, util.ErrDistributionConflict):
		return "conflict"
	case errors.Is(err, rubric.ErrInvariant):
		return "invariant"
	default:
		return "error"
	}
}

// Invalidate drops the cached copy of key's distribution.
func (s *AggregatorService) Invalidate(ctx context.Context, key model.CohortKey) {
	s.cache.Invalidate(ctx, key.Normalize())
}

// RecordOnce makes a single attempt at RecordAssessment.
func (s *AggregatorService) RecordOnce(ctx context.Context, key model.CohortKey, result rubric.Result) (*model.CohortDistribution, error) {
	key = key.Normalize()
	stored, err := s.store.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return s.create(ctx, key, rubric.ApplyOne(rubric.NewDistribution(), result))
	}
	return s.update(ctx, stored, true, func(d rubric.Distribution) (rubric.Distribution, error) {
		return rubric.ApplyOne(d, result), nil
	})
}

// ReviseOnce makes a single attempt at ReviseAssessment. A cohort with no
// distribution yet gets one seeded with the updated result.
func (s *AggregatorService) ReviseOnce(ctx context.Context, key model.CohortKey, old, updated rubric.Result) (*model.CohortDistribution, error) {
	key = key.Normalize()
	stored, err := s.store.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		logger.Log.Warn("Revising assessment of a cohort without distribution, seeding it",
			zap.String("cohort", key.String()))
		return s.create(ctx, key, rubric.ApplyOne(rubric.NewDistribution(), updated))
	}
	return s.update(ctx, stored, true, func(d rubric.Distribution) (rubric.Distribution, error) {
		removed, err := rubric.RemoveOne(d, old)
		if err != nil {
			return d, err
		}
		return rubric.ApplyOne(removed, updated), nil
	})
}

// RetractOnce makes a single attempt at RetractAssessment. A cohort with no
// distribution is skipped and nil, nil returned.
func (s *AggregatorService) RetractOnce(ctx context.Context, key model.CohortKey, result rubric.Result) (*model.CohortDistribution, error) {
	key = key.Normalize()
	stored, err := s.store.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		logger.Log.Warn("Retracting assessment of a cohort without distribution, skipping",
			zap.String("cohort", key.String()))
		return nil, nil
	}
	return s.update(ctx, stored, true, func(d rubric.Distribution) (rubric.Distribution, error) {
		return rubric.RemoveOne(d, result)
	})
}

// Replace overwrites the cohort's counters with dist, whatever they held before.
// It is meant for repair tooling that recomputes distributions from assessments.
func (s *AggregatorService) Replace(ctx context.Context, key model.CohortKey, dist rubric.Distribution) (*model.CohortDistribution, error) {
	return s.run(ctx, opReplace, key, func() (*model.CohortDistribution, error) {
		k := key.Normalize()
		stored, err := s.store.Find(ctx, k)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return s.create(ctx, k, dist)
		}
		return s.update(ctx, stored, false, func(rubric.Distribution) (rubric.Distribution, error) {
			return dist, nil
		})
	})
}

func (s *AggregatorService) create(ctx context.Context, key model.CohortKey, dist rubric.Distribution) (*model.CohortDistribution, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	d := model.NewCohortDistribution(key, dist)
	if err := s.store.Create(ctx, d); err != nil {
		if repository.IsDuplicateKey(err) {
			// another writer created the cohort first
			return nil, fmt.Errorf("%w: cohort %s created concurrently", util.ErrDistributionConflict, key)
		}
		return nil, err
	}
	return d, nil
}

func (s *AggregatorService) update(ctx context.Context, stored *model.CohortDistribution, checkCurrent bool, apply func(rubric.Distribution) (rubric.Distribution, error)) (*model.CohortDistribution, error) {
	current := stored.Distribution()
	if checkCurrent {
		if err := current.Validate(); err != nil {
			return nil, fmt.Errorf("stored cohort %s: %w", stored.Key(), err)
		}
	}
	next, err := apply(current)
	if err != nil {
		return nil, fmt.Errorf("cohort %s: %w", stored.Key(), err)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("cohort %s: %w", stored.Key(), err)
	}

	ok, err := s.store.UpdateCounts(ctx, stored.ID, stored.Version, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cohort %s changed since version %d", util.ErrDistributionConflict, stored.Key(), stored.Version)
	}

	out := *stored
	out.SetDistribution(next)
	out.Version = stored.Version + 1
	return &out, nil
}
