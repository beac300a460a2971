package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
)

func newTestRedisCache(t *testing.T) (*redisCache, *miniredis.Miniredis) {
	t.Helper()

	m := miniredis.RunT(t)

	c, err := newRedisCache(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
		TTL:     config.Duration(time.Minute),
		Redis: &config.RedisCacheConfig{
			URL: "redis://" + m.Addr(),
		},
	}, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, m
}

func TestRedisCacheSetGet(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheTTL(t *testing.T) {
	c, m := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))

	m.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDelete(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "apigw:users:aaa", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "apigw:users:bbb", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "apigw:orders:ccc", []byte("3"), time.Minute))

	removed, err := c.DeletePrefix(ctx, "apigw:users:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = c.Get(ctx, "apigw:users:aaa")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "apigw:orders:ccc")
	assert.NoError(t, err)
}

func TestRedisCacheConnectionFailure(t *testing.T) {
	_, err := newRedisCache(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
		Redis: &config.RedisCacheConfig{
			URL: "redis://127.0.0.1:1",
		},
	}, observability.NopLogger())
	assert.Error(t, err)
}

func TestRedisCacheRequiresURL(t *testing.T) {
	_, err := newRedisCache(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
	}, observability.NopLogger())
	assert.Error(t, err)
}
