package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Level2 is the shared cache tier visible to all processes. A slow or
// unavailable backend must degrade to "miss", never to a caller-visible
// error.
type Level2 interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Clear(ctx context.Context) int
	Healthy(ctx context.Context) bool
}

// RedisCache is the Redis-backed L2 tier. Every operation carries its own
// short timeout, independent of the fetch timeout, so a stalled Redis
// cannot stall the pipeline.
type RedisCache struct {
	rdb       *redis.Client
	keyPrefix string
	opTimeout time.Duration
	log       zerolog.Logger
}

// NewRedisCache connects an L2 tier to addr. Keys are namespaced with
// keyPrefix so Clear cannot touch other tenants of the instance.
func NewRedisCache(addr, password string, db int, keyPrefix string, opTimeout time.Duration, log zerolog.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		opTimeout: opTimeout,
		log:       log.With().Str("component", "cache-l2").Logger(),
	}
}

// Get reads a key, treating any backend failure as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	val, err := c.rdb.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("L2 read failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

// Set writes a key with the store's native TTL. Failures are logged and
// swallowed: a broken L2 degrades the cache, it does not fail requests.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("L2 write failed")
	}
}

// Clear deletes every key under the namespace and returns how many were
// removed.
func (c *RedisCache) Clear(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 10*c.opTimeout)
	defer cancel()

	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			c.log.Warn().Err(err).Msg("L2 scan failed during clear")
			return removed
		}
		if len(keys) > 0 {
			deleted, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				c.log.Warn().Err(err).Msg("L2 delete failed during clear")
				return removed
			}
			removed += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// Healthy probes the backend with PING.
func (c *RedisCache) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	return c.rdb.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
