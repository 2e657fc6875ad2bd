// Package cache memoizes join match sets in Redis. Keys are content hashes
// computed by the engine, so a hit is only possible for identical inputs.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/redis"
)

// keyPattern matches every key produced by simjoin.CacheKey.
const keyPattern = "simjoin:*"

// JoinCache implements simjoin.ResultCache. Concurrent misses on the same
// key run the computation once.
type JoinCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *JoinCache {
	return &JoinCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "join-cache"),
	}
}

// Get returns the cached pairs for key. Redis failures are logged and
// treated as misses.
func (c *JoinCache) Get(ctx context.Context, key string) ([]simjoin.MatchPair, bool) {
	var pairs []simjoin.MatchPair
	found, err := c.client.GetJSON(ctx, key, &pairs)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !found || err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key, "pairs", len(pairs))
	return pairs, true
}

// Set stores pairs under key for the configured TTL. Failures are logged.
func (c *JoinCache) Set(ctx context.Context, key string, pairs []simjoin.MatchPair) {
	if pairs == nil {
		pairs = []simjoin.MatchPair{}
	}
	if err := c.client.SetJSON(ctx, key, pairs, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the pairs cached under key, or runs compute and
// caches its result. hit is false only for the caller whose compute ran.
func (c *JoinCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) ([]simjoin.MatchPair, error),
) (pairs []simjoin.MatchPair, hit bool, err error) {
	if pairs, ok := c.Get(ctx, key); ok {
		return pairs, true, nil
	}
	computed := false
	val, err, _ := c.group.Do(key, func() (any, error) {
		if pairs, ok := c.Get(ctx, key); ok {
			return pairs, nil
		}
		computed = true
		pairs, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, pairs)
		return pairs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]simjoin.MatchPair), !computed, nil
}

// Invalidate drops every cached match set and returns the number of keys
// removed.
func (c *JoinCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *JoinCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
