package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Check(ctx, "1.2.3.4").Allowed, "request %d", i)
	}
	res := rl.Check(ctx, "1.2.3.4")
	assert.False(t, res.Allowed)
	assert.Equal(t, "rate_limiter", res.Guard)
	assert.Contains(t, res.Reason, "rate limit exceeded")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "a").Allowed)
	assert.False(t, rl.Check(ctx, "a").Allowed)
	assert.True(t, rl.Check(ctx, "b").Allowed)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(2, 20*time.Millisecond)
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "k").Allowed)
	assert.True(t, rl.Check(ctx, "k").Allowed)
	assert.False(t, rl.Check(ctx, "k").Allowed)

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Check(ctx, "k").Allowed)
}
