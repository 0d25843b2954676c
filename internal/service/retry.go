package service

import (
	"context"
	"errors"
	"time"

	"sel_rubric_backend/internal/config"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/util"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often a conflicting cohort update is re-run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func RetryPolicyFromConfig(cfg config.ScoringConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     cfg.MaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// withConflictRetry re-runs fn while it fails with util.ErrDistributionConflict
// or repository.ErrStaleRecord. Any other error stops the loop and is returned as is.
func withConflictRetry[T any](ctx context.Context, p RetryPolicy, hooks AggregationHooks, op string, fn func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, util.ErrDistributionConflict) || errors.Is(err, repository.ErrStaleRecord) {
			hooks.IncConflict(op)
			return v, err
		}
		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(error, time.Duration) { hooks.IncRetry(op) }),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return res, err
}
