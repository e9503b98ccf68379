package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TwoTier is the read-through/write-through composition of the L1 LRU and
// an optional L2 tier. Entries present in either tier are always successful
// results; callers must never Set a failure.
type TwoTier struct {
	l1  *LRU
	l2  Level2 // nil when no shared tier is configured
	ttl time.Duration
	log zerolog.Logger
}

// Stats is the combined cache snapshot exposed on the admin surface.
type Stats struct {
	L1        LRUStats `json:"l1"`
	L2Healthy bool     `json:"l2_healthy"`
	L2Enabled bool     `json:"l2_enabled"`
}

// NewTwoTier composes the tiers. ttl is used both as the default entry TTL
// and when re-populating L1 from an L2 hit.
func NewTwoTier(l1 *LRU, l2 Level2, ttl time.Duration, log zerolog.Logger) *TwoTier {
	return &TwoTier{
		l1:  l1,
		l2:  l2,
		ttl: ttl,
		log: log.With().Str("component", "cache").Logger(),
	}
}

// Get checks L1 first, then L2. An L2 hit re-populates L1 (subject to
// eviction). A miss on both tiers means "go fetch".
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Get(key); ok {
		return val, true
	}

	if c.l2 == nil {
		return nil, false
	}

	val, ok := c.l2.Get(ctx, key)
	if !ok {
		return nil, false
	}

	c.l1.Set(key, val, c.ttl)
	c.log.Debug().Str("key", key).Msg("L1 populated from L2")
	return val, true
}

// Set writes through to both tiers. Callers only invoke this for
// successful fetch results; negative results must never reach either tier,
// or a transient outage would poison retries for the full TTL.
func (c *TwoTier) Set(ctx context.Context, key string, value []byte) {
	c.l1.Set(key, value, c.ttl)
	if c.l2 != nil {
		c.l2.Set(ctx, key, value, c.ttl)
	}
}

// Clear empties both tiers and returns the number of entries removed.
func (c *TwoTier) Clear(ctx context.Context) int {
	count := c.l1.Clear()
	if c.l2 != nil {
		count += c.l2.Clear(ctx)
	}
	c.log.Info().Int("entries", count).Msg("Cache cleared")
	return count
}

// SweepExpired drops lapsed L1 entries; L2 expiry is handled natively by
// the store.
func (c *TwoTier) SweepExpired() int {
	return c.l1.SweepExpired()
}

// Stats returns the combined snapshot.
func (c *TwoTier) Stats(ctx context.Context) Stats {
	st := Stats{
		L1:        c.l1.Stats(),
		L2Enabled: c.l2 != nil,
	}
	if c.l2 != nil {
		st.L2Healthy = c.l2.Healthy(ctx)
	}
	return st
}
