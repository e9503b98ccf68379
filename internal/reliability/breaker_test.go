package reliability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")
var errBusiness = errors.New("filing not found")

func tripOnUpstream(err error) bool {
	return errors.Is(err, errUpstream)
}

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := newFakeClock()
	b := NewBreaker(cfg, tripOnUpstream, zerolog.Nop())
	b.now = clock.Now
	return b, clock
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxRequests: 2,
	}
}

func failCall(ctx context.Context) error { return errUpstream }
func okCall(ctx context.Context) error   { return nil }

// TestBreakerOpensAfterThreshold tests that exactly failure_threshold
// consecutive failures open the circuit and the next call is rejected
// without being attempted.
func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 3; i++ {
		err := b.Do(context.Background(), failCall)
		assert.ErrorIs(t, err, errUpstream)
	}

	assert.Equal(t, "open", b.Status().State)

	attempted := false
	err := b.Do(context.Background(), func(ctx context.Context) error {
		attempted = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, attempted, "open breaker must not make a network attempt")
	assert.Equal(t, int64(1), b.Status().Rejected)
}

// TestSuccessResetsFailureCount tests that a success while closed resets the
// consecutive failure counter.
func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(defaultBreakerConfig())

	require.Error(t, b.Do(context.Background(), failCall))
	require.Error(t, b.Do(context.Background(), failCall))
	require.NoError(t, b.Do(context.Background(), okCall))
	require.Error(t, b.Do(context.Background(), failCall))
	require.Error(t, b.Do(context.Background(), failCall))

	// Two failures after the reset: still closed.
	assert.Equal(t, "closed", b.Status().State)
}

// TestBusinessErrorsDoNotTrip tests that errors outside the trip
// classification pass through without perturbing circuit state.
func TestBusinessErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 10; i++ {
		err := b.Do(context.Background(), func(ctx context.Context) error { return errBusiness })
		assert.ErrorIs(t, err, errBusiness)
	}

	st := b.Status()
	assert.Equal(t, "closed", st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Equal(t, int64(0), st.Failed)
}

// TestOpenToHalfOpenAfterRecoveryTimeout tests the lazy transition: never
// before the recovery timeout, on the first call after it.
func TestOpenToHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b, clock := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failCall)
	}
	require.Equal(t, "open", b.Status().State)

	// Just short of the timeout: still rejecting.
	clock.Advance(30*time.Second - time.Millisecond)
	err := b.Do(context.Background(), okCall)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// Past the timeout: the next call probes the upstream.
	clock.Advance(time.Millisecond)
	attempted := false
	err = b.Do(context.Background(), func(ctx context.Context) error {
		attempted = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, attempted)
	assert.Equal(t, "half-open", b.Status().State)
}

// TestHalfOpenConcurrencyBound tests that at most half_open_max_requests
// probes run concurrently and the excess call is rejected, not queued.
func TestHalfOpenConcurrencyBound(t *testing.T) {
	b, clock := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failCall)
	}
	clock.Advance(31 * time.Second)
	require.Equal(t, "half-open", b.Status().State)

	release := make(chan struct{})
	started := make(chan struct{}, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Do(context.Background(), func(ctx context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}

	// Wait until both admitted probes are in flight.
	<-started
	<-started

	// The third concurrent probe must be rejected immediately.
	err := b.Do(context.Background(), okCall)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	wg.Wait()
}

// TestHalfOpenSuccessesClose tests that success_threshold consecutive
// half-open successes close the breaker.
func TestHalfOpenSuccessesClose(t *testing.T) {
	b, clock := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failCall)
	}
	clock.Advance(31 * time.Second)

	require.NoError(t, b.Do(context.Background(), okCall))
	assert.Equal(t, "half-open", b.Status().State)

	require.NoError(t, b.Do(context.Background(), okCall))
	st := b.Status()
	assert.Equal(t, "closed", st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Nil(t, st.OpenedAt)
}

// TestHalfOpenFailureReopens tests that one half-open failure reopens the
// circuit with a fresh opened_at, discarding partial successes.
func TestHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failCall)
	}
	firstOpen := b.Status().OpenedAt
	require.NotNil(t, firstOpen)

	clock.Advance(31 * time.Second)
	require.NoError(t, b.Do(context.Background(), okCall))

	err := b.Do(context.Background(), failCall)
	assert.ErrorIs(t, err, errUpstream)

	st := b.Status()
	assert.Equal(t, "open", st.State)
	require.NotNil(t, st.OpenedAt)
	assert.True(t, st.OpenedAt.After(*firstOpen))
	assert.Equal(t, 0, st.ConsecutiveSuccesses)
}

// TestReset tests the operator escape hatch.
func TestReset(t *testing.T) {
	b, _ := newTestBreaker(defaultBreakerConfig())

	for i := 0; i < 3; i++ {
		_ = b.Do(context.Background(), failCall)
	}
	require.Equal(t, "open", b.Status().State)

	b.Reset()

	st := b.Status()
	assert.Equal(t, "closed", st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)

	// Calls flow again.
	assert.NoError(t, b.Do(context.Background(), okCall))
}

// TestStatusCounters tests the rolling counters in the stats snapshot.
func TestStatusCounters(t *testing.T) {
	b, _ := newTestBreaker(defaultBreakerConfig())

	require.NoError(t, b.Do(context.Background(), okCall))
	require.Error(t, b.Do(context.Background(), failCall))
	require.Error(t, b.Do(context.Background(), failCall))
	require.Error(t, b.Do(context.Background(), failCall))
	require.Error(t, b.Do(context.Background(), okCall)) // rejected

	st := b.Status()
	assert.Equal(t, int64(5), st.Total)
	assert.Equal(t, int64(1), st.Succeeded)
	assert.Equal(t, int64(3), st.Failed)
	assert.Equal(t, int64(1), st.Rejected)
}
