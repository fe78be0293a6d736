package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	p := domain.Period{Month: 3, Year: 2025}
	a := Key("ranking", "deviation", p, 10)
	b := Key("ranking", "deviation", p, 10)
	c := Key("ranking", "deviation", p, 5)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "analytics:ranking:"))
	assert.NotEqual(t, Key("stats", p), Key("zones", p))
	assert.NotEqual(t, Key("stats", p, domain.Scope{}), Key("stats", p, domain.Scope{StoreIDs: []int64{}}),
		"every store and no store are different scopes")
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c, err := NewAnalyticsCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}))
	var out map[string]int
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.InvalidateAll(ctx))
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions(config.CacheConfig{RedisURL: "redis://:secret@cache:6379/1"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)

	_, err = redisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestAnalyticsTTL(t *testing.T) {
	assert.Equal(t, defaultCacheTTL, analyticsTTL(config.CacheConfig{}))
	assert.Equal(t, 90*time.Second, analyticsTTL(config.CacheConfig{AnalyticsTTLSeconds: 90}))
}
