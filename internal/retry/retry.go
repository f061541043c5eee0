/*
Package retry wraps a fallible I/O call with an exponential backoff policy
bounded by a deadline — the Go analogue of the Python `backoff` decorator
the original ETL wrapped its producers and loader calls with.

Usage:

	err := retry.Do(ctx, 60*time.Second, func() error {
	    return postgres.Ping(ctx, pool)
	})
*/
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Do retries fn with exponential backoff until it succeeds, ctx is
// cancelled, or maxElapsed has passed since the first attempt — whichever
// comes first.
func Do(ctx context.Context, maxElapsed time.Duration, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	return backoff.Retry(fn, backoff.WithContext(policy, ctx))
}

// Constant retries fn at a fixed interval until it succeeds, ctx is
// cancelled, or maxElapsed has passed — used by the index provisioner,
// which mirrors the original's `backoff.constant` retry on startup.
func Constant(ctx context.Context, interval, maxElapsed time.Duration, fn func() error) error {
	policy := backoff.WithMaxElapsedTime(backoff.NewConstantBackOff(interval), maxElapsed)

	return backoff.Retry(fn, backoff.WithContext(policy, ctx))
}
