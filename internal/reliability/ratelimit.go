// Package reliability provides the admission-control and failure-isolation
// primitives guarding calls to the EDGAR upstream.
package reliability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/finbrief/edgar-pipeline/internal/observability"
)

// RateLimiter is a token-bucket admission gate. It bounds the outbound
// request rate without knowing anything about request success or failure.
// Tokens refill continuously in proportion to elapsed time and are capped at
// the bucket capacity.
type RateLimiter struct {
	mu         sync.Mutex
	capacity   float64 // tokens per second, also the bucket cap
	tokens     float64
	lastRefill time.Time

	acquired int64
	waited   int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	log zerolog.Logger
}

// RateLimiterStatus is a point-in-time snapshot for the admin surface.
type RateLimiterStatus struct {
	Capacity float64 `json:"capacity"`
	Tokens   float64 `json:"tokens"`
	Acquired int64   `json:"acquired"`
	Waited   int64   `json:"waited"`
}

// NewRateLimiter creates a limiter admitting at most capacity calls per
// second. The bucket starts full so a cold process does not stall.
func NewRateLimiter(capacity float64, log zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		capacity: capacity,
		tokens:   capacity,
		now:      time.Now,
		sleep:    sleepCtx,
		log:      log.With().Str("component", "ratelimiter").Logger(),
	}
	rl.lastRefill = rl.now()
	return rl
}

// Acquire blocks until one token is available, then consumes it. Admission
// is a delay, never a failure: the only error returned is the context's,
// when the caller gives up while waiting.
//
// The whole refill-check-wait-consume sequence runs inside one critical
// section so concurrent callers serialize; no caller is admitted while the
// bucket is empty.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	if rl.tokens < 1 {
		wait := time.Duration((1 - rl.tokens) / rl.capacity * float64(time.Second))
		rl.waited++
		observability.RecordRateLimiterWait()
		rl.log.Debug().Dur("wait", wait).Msg("Rate limit reached, waiting for token")

		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
		rl.refillLocked()
	}

	rl.tokens--
	if rl.tokens < 0 {
		rl.tokens = 0
	}
	rl.acquired++
	return nil
}

// Status returns a snapshot of the bucket state.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	return RateLimiterStatus{
		Capacity: rl.capacity,
		Tokens:   rl.tokens,
		Acquired: rl.acquired,
		Waited:   rl.waited,
	}
}

// refillLocked credits tokens for the time elapsed since the last refill,
// capped at capacity. Caller must hold rl.mu.
func (rl *RateLimiter) refillLocked() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed > 0 {
		rl.tokens += elapsed * rl.capacity
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}
	rl.lastRefill = now
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
