package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/netplan/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultResultTTL = time.Hour
	dialTimeout      = 5 * time.Second
)

// dialRedis connects with the configured options and fails fast when the
// server does not answer a PING.
func dialRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: ping: %w", opts.Addr, err)
	}
	return client, nil
}

// redisOptions prefers REDIS_URL and falls back to host, port and db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:        net.JoinHostPort(host, port),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: dialTimeout,
	}, nil
}

func resultTTL(cfg config.CacheConfig) time.Duration {
	if ttl := time.Duration(cfg.ResultTTLSeconds) * time.Second; ttl > 0 {
		return ttl
	}
	return defaultResultTTL
}

// unlinkMatching walks the keyspace with SCAN and unlinks every key matching
// pattern, one batch per round trip. It returns the number of keys removed.
func unlinkMatching(ctx context.Context, rdb redis.Cmdable, pattern string) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := rdb.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis unlink: %w", err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
