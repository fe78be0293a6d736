package cache

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	redisDialTimeout = 5 * time.Second
	unlinkBatchSize  = 100
)

// redisOptions resolves connection settings. REDIS_URL wins over host and port.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL == "" {
		return &redis.Options{
			Addr:        net.JoinHostPort(orDefault(cfg.RedisHost, "127.0.0.1"), orDefault(cfg.RedisPort, "6379")),
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: redisDialTimeout,
		}, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opt, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func analyticsTTL(cfg config.CacheConfig) time.Duration {
	if cfg.AnalyticsTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.AnalyticsTTLSeconds) * time.Second
}

// connectRedis opens a client and fails fast when the server does not answer.
func connectRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// unlinkPrefix walks the keyspace with SCAN and unlinks matching keys in
// batches. It returns how many keys were removed.
func unlinkPrefix(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	var (
		removed int
		batch   = make([]string, 0, unlinkBatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := client.Unlink(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := client.Scan(ctx, 0, prefix+"*", unlinkBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == unlinkBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}
