package hyperbridge

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(mutate func(*Config)) *RateLimiter {
	cfg := DefaultConfig()
	cfg.RateLimitEnabled = true
	if mutate != nil {
		mutate(cfg)
	}
	return NewRateLimiter(cfg, hclog.NewNullLogger())
}

func TestRateLimiter_BurstAdmitsInstantly(t *testing.T) {
	rl := newTestLimiter(func(cfg *Config) {
		cfg.RateLimitRequestsPerMinute = 60
		cfg.RateLimitBurst = 5
	})

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Admit(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_ThrottlesBeyondBurst(t *testing.T) {
	// 600 rpm = 10 tokens/sec; after a burst of 2, four more admissions need
	// at least ~400ms of refill.
	rl := newTestLimiter(func(cfg *Config) {
		cfg.RateLimitRequestsPerMinute = 600
		cfg.RateLimitBurst = 2
	})

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, rl.Admit(context.Background()))
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "admissions outpaced the refill rate")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRateLimiter_NoWaitRejectsWhenEmpty(t *testing.T) {
	rl := newTestLimiter(func(cfg *Config) {
		cfg.RateLimitRequestsPerMinute = 60
		cfg.RateLimitBurst = 1
		cfg.RateLimitNoWait = true
	})

	require.NoError(t, rl.Admit(context.Background()))

	err := rl.Admit(context.Background())
	ne, ok := AsNormalizedError(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimited, ne.Kind)
}

func TestRateLimiter_DisabledAdmitsEverything(t *testing.T) {
	rl := newTestLimiter(func(cfg *Config) {
		cfg.RateLimitEnabled = false
	})

	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.NoError(t, rl.Admit(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiter_CancelledWaitPassesThrough(t *testing.T) {
	rl := newTestLimiter(func(cfg *Config) {
		cfg.RateLimitRequestsPerMinute = 1
		cfg.RateLimitBurst = 1
	})
	require.NoError(t, rl.Admit(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := rl.Admit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
