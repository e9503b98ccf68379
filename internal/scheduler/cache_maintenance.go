package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finbrief/edgar-pipeline/internal/cache"
)

// CacheMaintenanceJob sweeps lapsed L1 entries and probes L2 health. The
// LRU expires lazily on read; without this sweep, keys that stop being
// requested would pin memory until evicted.
type CacheMaintenanceJob struct {
	cache   *cache.TwoTier
	timeout time.Duration
	log     zerolog.Logger
}

// NewCacheMaintenanceJob creates the maintenance job.
func NewCacheMaintenanceJob(c *cache.TwoTier, log zerolog.Logger) *CacheMaintenanceJob {
	return &CacheMaintenanceJob{
		cache:   c,
		timeout: 10 * time.Second,
		log:     log.With().Str("job", "cache-maintenance").Logger(),
	}
}

// Name returns the job name
func (j *CacheMaintenanceJob) Name() string {
	return "cache_maintenance"
}

// Run performs one maintenance pass.
func (j *CacheMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	swept := j.cache.SweepExpired()
	stats := j.cache.Stats(ctx)

	ev := j.log.Info().
		Int("swept", swept).
		Int("l1_entries", stats.L1.Entries).
		Float64("l1_hit_rate", stats.L1.HitRate)
	if stats.L2Enabled {
		ev = ev.Bool("l2_healthy", stats.L2Healthy)
		if !stats.L2Healthy {
			j.log.Warn().Msg("L2 cache unhealthy, operating on L1 only")
		}
	}
	ev.Msg("Cache maintenance pass completed")

	return nil
}
