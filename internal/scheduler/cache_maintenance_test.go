package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbrief/edgar-pipeline/internal/cache"
)

// TestCacheMaintenanceRun tests that a pass sweeps lapsed entries and
// leaves live ones alone.
func TestCacheMaintenanceRun(t *testing.T) {
	// Negative TTL makes every entry lapse immediately.
	c := cache.NewTwoTier(cache.NewLRU(8), nil, -time.Millisecond, zerolog.Nop())
	c.Set(context.Background(), "stale-1", []byte("1"))
	c.Set(context.Background(), "stale-2", []byte("2"))

	job := NewCacheMaintenanceJob(c, zerolog.Nop())
	require.NoError(t, job.Run())

	stats := c.Stats(context.Background())
	assert.Equal(t, 0, stats.L1.Entries)
	assert.Equal(t, "cache_maintenance", job.Name())
}

// TestCacheMaintenanceKeepsLiveEntries tests the no-op pass.
func TestCacheMaintenanceKeepsLiveEntries(t *testing.T) {
	c := cache.NewTwoTier(cache.NewLRU(8), nil, time.Hour, zerolog.Nop())
	c.Set(context.Background(), "live", []byte("1"))

	job := NewCacheMaintenanceJob(c, zerolog.Nop())
	require.NoError(t, job.Run())

	_, ok := c.Get(context.Background(), "live")
	assert.True(t, ok)
}
