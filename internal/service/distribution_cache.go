package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	distributionCachePrefix = "sel:distribution:"
	distributionGenPrefix   = "sel:distribution:gen:"
)

// setIfGeneration writes KEYS[1] only while the cohort's generation counter
// KEYS[2] still equals ARGV[1], the value the reader saw before loading the row.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// DistributionCache is a read-through redis cache of cohort distributions.
// A nil cache, or one without a client, caches nothing. Redis failures are
// logged and treated as misses.
//
// Every invalidation bumps a per-cohort generation; a fill only lands if the
// generation it read before loading the row is still current, so a reader
// that loaded a row just before a write cannot cache it afterwards.
type DistributionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDistributionCache(rdb *redis.Client, ttl time.Duration) *DistributionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DistributionCache{rdb: rdb, ttl: ttl}
}

func (c *DistributionCache) enabled() bool {
	return c != nil && c.rdb != nil
}

func cohortHash(key model.CohortKey) string {
	sum := sha256.Sum256([]byte(key.Normalize().String()))
	return hex.EncodeToString(sum[:])
}

func distributionCacheKey(key model.CohortKey) string {
	return distributionCachePrefix + cohortHash(key)
}

func distributionGenKey(key model.CohortKey) string {
	return distributionGenPrefix + cohortHash(key)
}

func (c *DistributionCache) Get(ctx context.Context, key model.CohortKey) (*model.CohortDistribution, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, distributionCacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Distribution cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var d model.CohortDistribution
	if err := json.Unmarshal(raw, &d); err != nil {
		logger.Log.Warn("Distribution cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &d, true
}

// Generation returns the cohort's current invalidation generation, read before
// loading the row that will be passed to Fill. ok is false when the cache is
// disabled or redis failed, in which case nothing should be filled.
func (c *DistributionCache) Generation(ctx context.Context, key model.CohortKey) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	gen, err := c.rdb.Get(ctx, distributionGenKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		logger.Log.Warn("Distribution cache generation read failed", zap.Error(err))
		return "", false
	}
	return gen, true
}

// Fill caches d unless the cohort was invalidated after gen was read.
func (c *DistributionCache) Fill(ctx context.Context, d *model.CohortDistribution, gen string) bool {
	if !c.enabled() || d == nil {
		return false
	}
	raw, err := json.Marshal(d)
	if err != nil {
		logger.Log.Warn("Distribution cache encode failed", zap.Error(err))
		return false
	}
	key := d.Key()
	n, err := setIfGeneration.Run(ctx, c.rdb,
		[]string{distributionCacheKey(key), distributionGenKey(key)},
		gen, raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		logger.Log.Warn("Distribution cache write failed", zap.Error(err))
		return false
	}
	return n == 1
}

func (c *DistributionCache) Invalidate(ctx context.Context, key model.CohortKey) {
	if !c.enabled() {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, distributionGenKey(key))
		pipe.Del(ctx, distributionCacheKey(key))
		return nil
	})
	if err != nil {
		logger.Log.Warn("Distribution cache invalidation failed",
			zap.String("cohort", key.String()),
			zap.Error(err),
		)
	}
}

// Ping reports redis health; a disabled cache is healthy.
func (c *DistributionCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
