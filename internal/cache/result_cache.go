package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/netplan/internal/config"
	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/redis/go-redis/v9"
)

const (
	resultKeyPrefix = "netplan:result"
	scanBatchSize   = 100
)

// ResultCache stores solved results by input fingerprint.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*engine.Result, bool, error)
	Set(ctx context.Context, fingerprint string, res *engine.Result) error
	// InvalidateAll drops every cached result and reports how many were
	// removed.
	InvalidateAll(ctx context.Context) (int64, error)
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

// NewResultCache connects to Redis when caching is enabled and returns a
// no-op cache otherwise.
func NewResultCache(ctx context.Context, cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, err := dialRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisResultCache(client, resultTTL(cfg)), nil
}

// NewRedisResultCache wraps an existing client.
func NewRedisResultCache(client *redis.Client, ttl time.Duration) ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &redisResultCache{client: client, ttl: ttl}
}

func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, fingerprint string) (*engine.Result, bool, error) {
	payload, err := c.client.Get(ctx, resultKey(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var res engine.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, fmt.Errorf("decode result cache: %w", err)
	}

	return &res, true, nil
}

func (c *redisResultCache) Set(ctx context.Context, fingerprint string, res *engine.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result cache: %w", err)
	}

	if err := c.client.Set(ctx, resultKey(fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return unlinkMatching(ctx, c.client, resultKey("*"))
}

func (n *noopResultCache) Get(ctx context.Context, fingerprint string) (*engine.Result, bool, error) {
	return nil, false, nil
}

func (n *noopResultCache) Set(ctx context.Context, fingerprint string, res *engine.Result) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return 0, nil
}

func resultKey(fingerprint string) string {
	return fmt.Sprintf("%s:%s", resultKeyPrefix, fingerprint)
}
