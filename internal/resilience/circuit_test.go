package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zariya-jewels/backend-store/internal/resilience"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := resilience.NewBreaker("phonepe", 3, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow(ctx))
		b.Report(ctx, false)
	}
	require.True(t, b.Allow(ctx), "still under threshold")
	b.Report(ctx, false)

	require.False(t, b.Allow(ctx), "third consecutive failure opens the breaker")
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	b := resilience.NewBreaker("phonepe", 2, time.Minute, zerolog.Nop())
	ctx := context.Background()

	b.Report(ctx, false)
	b.Report(ctx, true)
	b.Report(ctx, false)

	require.True(t, b.Allow(ctx), "a success in between must reset the run")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := resilience.NewBreaker("phonepe", 1, 10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	b.Report(ctx, false)
	require.False(t, b.Allow(ctx))

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow(ctx), "cool-off admits a probe")

	b.Report(ctx, true)
	require.True(t, b.Allow(ctx), "successful probe closes the breaker")
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := resilience.NewBreaker("phonepe", 1, 10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	b.Report(ctx, false)
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow(ctx))

	b.Report(ctx, false)
	require.False(t, b.Allow(ctx), "failed probe reopens immediately")
}
