package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRateLimiter_BurstThenWait はバースト分は即時に通過し、超過分は待機することを検証します。
func TestRateLimiter_BurstThenWait(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(5, 100*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.WaitIfNeeded(ctx))
	}
	assert.Less(t, time.Since(start), 15*time.Millisecond)

	require.NoError(t, rl.WaitIfNeeded(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

// TestRateLimiter_ContextCanceled はキャンセル済みのコンテキストで待機が中断されることを検証します。
func TestRateLimiter_ContextCanceled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Hour)
	require.NoError(t, rl.WaitIfNeeded(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.WaitIfNeeded(ctx))
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 0)
	assert.Equal(t, 1, rl.limit)
	assert.NoError(t, rl.WaitIfNeeded(context.Background()))
}
