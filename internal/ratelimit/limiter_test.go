package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterDoesNotBlock(t *testing.T) {
	l := New(0)
	start := time.Now()
	require.NoError(t, l.Acquire(context.Background(), 10*1024*1024))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestEnabledLimiterThrottles(t *testing.T) {
	l := New(1000) // 1000 B/s
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	// First acquire drains the initial burst instantly.
	require.NoError(t, l.Acquire(ctx, 1000))
	// Second acquire of the same size must wait for refill (~1s).
	require.NoError(t, l.Acquire(ctx, 1000))
	require.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestSetLimitToDisabled(t *testing.T) {
	l := New(100)
	l.SetLimit(0)
	start := time.Now()
	require.NoError(t, l.Acquire(context.Background(), 10*1024*1024))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
