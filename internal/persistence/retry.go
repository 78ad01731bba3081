package persistence

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// Retryer applies bounded exponential backoff to transient store failures.
// Errors that reach the server (constraint violations, missing rows) are
// never retried; only calls pgx reports as safe to retry are.
type Retryer struct {
	maxTries uint64
}

// NewRetryer builds a retryer allowing maxTries attempts in total.
func NewRetryer(maxTries int) *Retryer {
	if maxTries < 1 {
		maxTries = 1
	}
	return &Retryer{maxTries: uint64(maxTries)}
}

// Do runs op, retrying transient failures until the attempt budget or the
// context runs out.
func (r *Retryer) Do(ctx context.Context, op func() error) error {
	if r == nil {
		return op()
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxTries-1), ctx))
}

func retryable(err error) bool {
	return pgconn.SafeToRetry(err)
}
