package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ZeroRPSDisables(t *testing.T) {
	l := New(0)
	assert.True(t, l.Disabled())
	assert.Equal(t, 0, l.Burst())
}

func TestNew_NegativeRPSDisables(t *testing.T) {
	l := New(-1)
	assert.True(t, l.Disabled())
}

func TestNew_BurstIsTwiceRPS(t *testing.T) {
	l := New(10)
	require.False(t, l.Disabled())
	assert.Equal(t, 20, l.Burst())
}

func TestLimiter_DisabledNeverBlocks(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(ctx))
		require.True(t, l.TryAcquire())
	}
}

func TestLimiter_BurstAllowsAtLeastRPSImmediateAcquisitions(t *testing.T) {
	// S6: rps=10, after an idle period ten consecutive try_acquire calls
	// succeed. We assert the conservative >= rps bound rather than the full
	// burst, since some fractional refill may already have been consumed
	// by the time the first call runs.
	l := New(10)
	time.Sleep(1100 * time.Millisecond)

	succeeded := 0
	for i := 0; i < 10; i++ {
		if l.TryAcquire() {
			succeeded++
		}
	}
	assert.GreaterOrEqual(t, succeeded, 10)
}

func TestLimiter_ExhaustedBucketRejectsTryAcquire(t *testing.T) {
	l := New(5)
	for i := 0; i < l.Burst(); i++ {
		l.TryAcquire()
	}
	assert.False(t, l.TryAcquire())
}

func TestLimiter_WaitBlocksUntilTokenAvailable(t *testing.T) {
	l := New(5)
	for i := 0; i < l.Burst(); i++ {
		require.True(t, l.TryAcquire())
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx))
	assert.Greater(t, time.Since(start), time.Duration(0))
}

func TestLimiter_WaitRespectsContextCancellation(t *testing.T) {
	l := New(1)
	for i := 0; i < l.Burst(); i++ {
		l.TryAcquire()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestLimiter_RPSAndBurstAccessors(t *testing.T) {
	l := New(7)
	assert.Equal(t, float64(7), l.RPS())
	assert.Equal(t, 14, l.Burst())
}
