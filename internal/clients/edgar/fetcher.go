package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/finbrief/edgar-pipeline/internal/observability"
	"github.com/finbrief/edgar-pipeline/internal/reliability"
)

// responseBodyLimit caps how much of an EDGAR response is read. The largest
// companyfacts documents run to a few tens of MB.
const responseBodyLimit = 64 << 20

// FetcherConfig holds retry and timeout tuning for the resilience wrapper.
type FetcherConfig struct {
	UserAgent      string // required by the SEC; requests without it are rejected
	MaxRetries     int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
}

// Fetcher performs one logical GET against EDGAR under the full resilience
// stack: rate-limit admission, circuit breaker, per-attempt timeout, and
// bounded retry with exponential backoff. It has no cache awareness; the
// owner decides what to do with successful bytes.
type Fetcher struct {
	limiter *reliability.RateLimiter
	breaker *reliability.Breaker
	client  *http.Client
	cfg     FetcherConfig

	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger
}

// NewFetcher creates a fetcher guarded by the given limiter and breaker.
func NewFetcher(limiter *reliability.RateLimiter, breaker *reliability.Breaker, cfg FetcherConfig, log zerolog.Logger) *Fetcher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	return &Fetcher{
		limiter: limiter,
		breaker: breaker,
		// The per-attempt timeout is applied via context so it is visible
		// to the transport error classification.
		client: &http.Client{},
		cfg:    cfg,
		sleep:  sleepCtx,
		log:    log.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch GETs url and returns the response body. Each attempt passes through
// the rate limiter and the circuit breaker, so a breaker trip mid-sequence
// aborts the remaining retries immediately. Non-retryable errors (4xx) are
// returned after the first attempt.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("rate limit admission: %w", err)
		}

		err := f.breaker.Do(ctx, func(ctx context.Context) error {
			var attemptErr error
			body, attemptErr = f.attempt(ctx, url)
			return attemptErr
		})
		if err == nil {
			observability.RecordFetchAttempt("ok")
			return body, nil
		}
		lastErr = err

		if errors.Is(err, reliability.ErrCircuitOpen) {
			observability.RecordFetchAttempt("rejected")
			return nil, err
		}
		if !IsRetryable(err) {
			observability.RecordFetchAttempt("fatal")
			return nil, err
		}
		observability.RecordFetchAttempt("retryable")
		if attempt == f.cfg.MaxRetries {
			break
		}

		wait := f.backoff(attempt)
		f.log.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Fetch attempt failed, retrying")

		if serr := f.sleep(ctx, wait); serr != nil {
			return nil, serr
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", f.cfg.MaxRetries+1, lastErr)
}

// attempt performs a single GET with the per-attempt timeout.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, URL: url, Err: err}
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, classifyTransport(url, err)
	}

	return body, nil
}

// backoff computes base * 2^attempt plus a small jitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	wait := f.cfg.BackoffBase * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(f.cfg.BackoffBase)/4 + 1))
	return wait + jitter
}

// sleepCtx sleeps for d or until ctx is done.
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
