package reliability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock provides a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestLimiter wires a limiter to a fake clock whose sleep advances the
// clock instead of blocking.
func newTestLimiter(capacity float64) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	rl := NewRateLimiter(capacity, zerolog.Nop())
	rl.now = clock.Now
	rl.lastRefill = clock.Now()
	rl.sleep = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}
	return rl, clock
}

// TestAcquireFromFullBucket tests that a full bucket admits without waiting.
func TestAcquireFromFullBucket(t *testing.T) {
	rl, _ := newTestLimiter(5)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Acquire(context.Background()))
	}

	st := rl.Status()
	assert.Equal(t, int64(5), st.Acquired)
	assert.Equal(t, int64(0), st.Waited)
	assert.InDelta(t, 0.0, st.Tokens, 0.001)
}

// TestAcquireWaitsWhenExhausted tests that an empty bucket forces a wait of
// (1 - tokens) / capacity seconds before admission.
func TestAcquireWaitsWhenExhausted(t *testing.T) {
	rl, clock := newTestLimiter(4)

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.Acquire(context.Background()))
	}

	before := clock.Now()
	require.NoError(t, rl.Acquire(context.Background()))
	waited := clock.Now().Sub(before)

	// One token at 4 tokens/sec is 250ms away.
	assert.Equal(t, 250*time.Millisecond, waited)
	assert.Equal(t, int64(1), rl.Status().Waited)
}

// TestTokensNeverExceedCapacity tests the refill cap after a long idle gap.
func TestTokensNeverExceedCapacity(t *testing.T) {
	rl, clock := newTestLimiter(3)

	require.NoError(t, rl.Acquire(context.Background()))
	clock.Advance(time.Hour)

	st := rl.Status()
	assert.InDelta(t, 3.0, st.Tokens, 0.001)
}

// TestSlidingWindowBound tests that no one-second window ever admits more
// than capacity calls.
func TestSlidingWindowBound(t *testing.T) {
	const capacity = 8.0
	rl, clock := newTestLimiter(capacity)

	// Drain the initial burst so the measurement covers steady state.
	for i := 0; i < int(capacity); i++ {
		require.NoError(t, rl.Acquire(context.Background()))
	}

	var admitted []time.Time
	for i := 0; i < 40; i++ {
		require.NoError(t, rl.Acquire(context.Background()))
		admitted = append(admitted, clock.Now())
	}

	for i := range admitted {
		count := 0
		windowEnd := admitted[i].Add(time.Second)
		for _, ts := range admitted[i:] {
			if ts.Before(windowEnd) {
				count++
			}
		}
		// The window opens after an admission, so at most capacity further
		// tokens can accrue inside it.
		assert.LessOrEqual(t, count, int(capacity)+1,
			"window starting at admission %d exceeded the rate ceiling", i)
	}
}

// TestAcquireRespectsContext tests that a caller waiting for a token can
// give up via its context.
func TestAcquireRespectsContext(t *testing.T) {
	rl := NewRateLimiter(1, zerolog.Nop())
	require.NoError(t, rl.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestConcurrentAcquireSerializes tests that concurrent callers all complete
// and the token accounting stays consistent.
func TestConcurrentAcquireSerializes(t *testing.T) {
	rl, _ := newTestLimiter(2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Acquire(context.Background())
		}()
	}
	wg.Wait()

	st := rl.Status()
	assert.Equal(t, int64(10), st.Acquired)
	assert.GreaterOrEqual(t, st.Tokens, 0.0)
	assert.LessOrEqual(t, st.Tokens, 2.0)
}
