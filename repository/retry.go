package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 10 * time.Millisecond
	DefaultMaxInterval     = 500 * time.Millisecond
)

var counterTxConflicts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "raiot_counter_tx_conflicts_total",
		Help: "Counter transaction attempts rejected because of a conflicting writer",
	},
	[]string{"backend"},
)

// RetryPolicy bounds how often a conflicting counter transaction is re-run.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// runWithRetry runs attempt until it succeeds, fails with something other than
// ErrTxConflict, or the policy runs out of attempts.
func runWithRetry(ctx context.Context, policy RetryPolicy, backend string, attempt func(context.Context) error) error {
	policy = policy.normalized()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := attempt(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrTxConflict) {
			counterTxConflicts.WithLabelValues(backend).Inc()
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(policy.MaxAttempts))

	if err != nil && errors.Is(err, ErrTxConflict) {
		return fmt.Errorf("%w after %d attempts: %w", ErrTxAborted, policy.MaxAttempts, err)
	}
	return err
}
