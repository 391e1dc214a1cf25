package util

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/require"
)

func TestNewBackoffFactoryExponentialGrows(t *testing.T) {
	t.Parallel()
	f := NewBackoffFactory(2.0, 10*time.Second, 1*time.Second, 0)
	bo := f()

	prevInterval := time.Duration(0)
	for i := 0; i < 5; i++ {
		d := bo.NextBackOff()
		require.GreaterOrEqual(t, uint64(d), uint64(prevInterval/2))
		prevInterval = d
	}
}

func TestNewBackoffFactoryMaxRetries(t *testing.T) {
	t.Parallel()
	f := NewBackoffFactory(2.0, 10*time.Second, 1*time.Millisecond, 3)
	bo := f()

	for i := 0; i < 3; i++ {
		require.NotEqual(t, backoff.Stop, bo.NextBackOff())
	}
	require.Equal(t, backoff.Stop, bo.NextBackOff())
}

func TestNewResolveBackOffFactory(t *testing.T) {
	t.Parallel()
	bo := NewResolveBackOffFactory()()
	require.NotNil(t, bo)

	seen := 0
	for d := bo.NextBackOff(); d != backoff.Stop; d = bo.NextBackOff() {
		seen++
		require.LessOrEqual(t, seen, 4)
	}
	require.Equal(t, 4, seen)
}
