package reliability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/finbrief/edgar-pipeline/internal/observability"
)

// ErrCircuitOpen is returned when the breaker rejects a call without making
// a network attempt.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// TripFunc decides whether an error is an upstream-health signal (timeout,
// connection failure, 5xx) that should count toward tripping the breaker.
// Business errors (404s, parse failures) must return false so they pass
// through without perturbing circuit state.
type TripFunc func(error) bool

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold    int           // consecutive trip-eligible failures before opening
	SuccessThreshold    int           // consecutive half-open successes before closing
	RecoveryTimeout     time.Duration // time open before probing is allowed
	HalfOpenMaxRequests int           // concurrent probes admitted while half-open
}

// Breaker is a three-state circuit breaker. Open rejects immediately; the
// transition back to HalfOpen is lazy, evaluated on the next call after the
// recovery timeout rather than by a background timer. HalfOpen admits a bounded
// number of concurrent probes; excess probes are rejected, not queued, so a
// barely-recovering upstream is not re-overwhelmed.
type Breaker struct {
	mu sync.Mutex

	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time

	total     int64
	succeeded int64
	failed    int64
	rejected  int64

	cfg    BreakerConfig
	trips  TripFunc
	probes *semaphore.Weighted

	now func() time.Time
	log zerolog.Logger
}

// BreakerStatus is a point-in-time snapshot for the admin surface.
type BreakerStatus struct {
	State                string     `json:"state"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	OpenedAt             *time.Time `json:"opened_at,omitempty"`
	Total                int64      `json:"total"`
	Succeeded            int64      `json:"succeeded"`
	Failed               int64      `json:"failed"`
	Rejected             int64      `json:"rejected"`
}

// NewBreaker creates a closed breaker. trips classifies which errors count
// as upstream failures.
func NewBreaker(cfg BreakerConfig, trips TripFunc, log zerolog.Logger) *Breaker {
	if cfg.HalfOpenMaxRequests < 1 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &Breaker{
		state:  StateClosed,
		cfg:    cfg,
		trips:  trips,
		probes: semaphore.NewWeighted(int64(cfg.HalfOpenMaxRequests)),
		now:    time.Now,
		log:    log.With().Str("component", "breaker").Logger(),
	}
}

// Do runs fn under the breaker. It returns ErrCircuitOpen without invoking
// fn when the call is rejected; otherwise it returns fn's error unchanged.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	release, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	b.record(callErr)
	release()

	return callErr
}

// admit decides whether the call may proceed, performing the lazy
// Open -> HalfOpen transition. The returned release func must be called
// after the attempt completes.
func (b *Breaker) admit() (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.advanceLocked()

	switch b.state {
	case StateOpen:
		b.rejected++
		return nil, ErrCircuitOpen

	case StateHalfOpen:
		if !b.probes.TryAcquire(1) {
			b.rejected++
			return nil, ErrCircuitOpen
		}
		return func() { b.probes.Release(1) }, nil

	default: // StateClosed
		return func() {}, nil
	}
}

// record applies the outcome of an attempt to the state machine.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.succeeded++
		b.onSuccessLocked()
		return
	}

	if !b.trips(err) {
		// Business error: passes through without perturbing circuit state.
		return
	}

	b.failed++
	b.onFailureLocked()
}

func (b *Breaker) onSuccessLocked() {
	switch b.state {
	case StateClosed:
		b.consecutiveFailures = 0
	case StateHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	}
}

func (b *Breaker) onFailureLocked() {
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// A single half-open failure reopens, discarding partial successes.
		b.transitionLocked(StateOpen)
	}
}

// advanceLocked performs the lazy Open -> HalfOpen transition once the
// recovery timeout has elapsed.
func (b *Breaker) advanceLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
		b.transitionLocked(StateHalfOpen)
	}
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.consecutiveSuccesses = 0
	case StateHalfOpen:
		b.consecutiveSuccesses = 0
	case StateClosed:
		b.openedAt = time.Time{}
		b.consecutiveFailures = 0
		b.consecutiveSuccesses = 0
	}

	observability.RecordBreakerState(int(to))
	observability.RecordBreakerTransition(to.String())
	b.log.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Circuit breaker state changed")
}

// Reset forces the breaker closed unconditionally. Operator escape hatch;
// rolling counters are preserved.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transitionLocked(StateClosed)
	}
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}

// Status returns a snapshot of the breaker, applying the lazy transition
// first so the reported state matches what the next call would observe.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked()

	st := BreakerStatus{
		State:                b.state.String(),
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		Total:                b.total,
		Succeeded:            b.succeeded,
		Failed:               b.failed,
		Rejected:             b.rejected,
	}
	if b.state == StateOpen {
		openedAt := b.openedAt
		st.OpenedAt = &openedAt
	}
	return st
}
