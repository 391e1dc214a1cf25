package util

import (
	"time"

	"github.com/cenkalti/backoff"
)

// BackoffFactory produces a fresh backoff.BackOff for a single bounded retry sequence.
type BackoffFactory func() backoff.BackOff

// NewBackoffFactory creates a new BackoffFactory based on backoff.ExponentialBackOff.
func NewBackoffFactory(multiplier float64, maxElapsedTime, interval time.Duration, maxRetries uint64) BackoffFactory {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.Multiplier = multiplier
		bo.MaxElapsedTime = maxElapsedTime
		bo.InitialInterval = interval
		bo.Reset() // Reset is required to make the InitialInterval change take effect.
		if maxRetries == 0 {
			return bo
		}
		return backoff.WithMaxRetries(bo, maxRetries)
	}
}

// NewResolveBackOffFactory returns a BackoffFactory suitable for retrying a single DNS
// lookup within one resolver tick. It never retries across ticks — the tick cadence is
// controlled exclusively by dns_refresh_interval.
func NewResolveBackOffFactory() BackoffFactory {
	return NewBackoffFactory(backoff.DefaultMultiplier, 5*time.Second, 100*time.Millisecond, 4)
}
