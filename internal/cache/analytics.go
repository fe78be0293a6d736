package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const analyticsKeyPrefix = "analytics:"

// AnalyticsCache stores JSON-encoded analytics answers until the next import
// or alert scan invalidates them.
type AnalyticsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	InvalidateAll(ctx context.Context) error
}

type redisAnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAnalyticsCache struct{}

// NewAnalyticsCache connects to redis when caching is enabled, otherwise every
// lookup misses.
func NewAnalyticsCache(cfg config.CacheConfig) (AnalyticsCache, error) {
	if !cfg.Enabled {
		return NewNoopAnalyticsCache(), nil
	}
	client, err := connectRedis(cfg)
	if err != nil {
		return nil, err
	}
	return &redisAnalyticsCache{client: client, ttl: analyticsTTL(cfg)}, nil
}

func NewNoopAnalyticsCache() AnalyticsCache {
	return &noopAnalyticsCache{}
}

// Key builds a cache key from a query kind and its parameters.
func Key(kind string, params ...any) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprint(p)
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return analyticsKeyPrefix + kind + ":" + hex.EncodeToString(hash[:])
}

func (c *redisAnalyticsCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode analytics cache %s: %w", key, err)
	}
	return true, nil
}

func (c *redisAnalyticsCache) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode analytics cache %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAnalyticsCache) InvalidateAll(ctx context.Context) error {
	n, err := unlinkPrefix(ctx, c.client, analyticsKeyPrefix)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", n).Msg("analytics cache invalidated")
	return nil
}

func (n *noopAnalyticsCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (n *noopAnalyticsCache) Set(ctx context.Context, key string, value any) error {
	return nil
}

func (n *noopAnalyticsCache) InvalidateAll(ctx context.Context) error {
	return nil
}
