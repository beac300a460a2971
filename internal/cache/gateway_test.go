package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
)

// failingCache errors on every operation.
type failingCache struct{}

var errBackendDown = errors.New("backend down")

func (f *failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errBackendDown
}

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}

func (f *failingCache) Delete(context.Context, string) error {
	return errBackendDown
}

func (f *failingCache) DeletePrefix(context.Context, string) (int, error) {
	return 0, errBackendDown
}

func (f *failingCache) Close() error {
	return nil
}

func newTestGateway(t *testing.T, backend Cache) *Gateway {
	t.Helper()

	cfg := &config.CacheConfig{
		Enabled:   true,
		Type:      config.CacheTypeMemory,
		TTL:       config.Duration(time.Minute),
		KeyPrefix: "apigw:",
	}
	if backend == nil {
		backend = newMemoryCache(cfg, observability.NopLogger())
	}
	g := NewGateway(backend, cfg)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGatewayStoreLookup(t *testing.T) {
	g := newTestGateway(t, nil)
	ctx := context.Background()

	resp := &CachedResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"id":123}`),
	}

	g.Store(ctx, "users", "abcdef0123456789", resp, time.Minute)

	got, ok := g.Lookup(ctx, "users", "abcdef0123456789")
	require.True(t, ok)
	assert.Equal(t, resp.StatusCode, got.StatusCode)
	assert.Equal(t, resp.Headers, got.Headers)
	assert.Equal(t, resp.Body, got.Body)
}

func TestGatewayLookupMiss(t *testing.T) {
	g := newTestGateway(t, nil)

	_, ok := g.Lookup(context.Background(), "users", "0000000000000000")
	assert.False(t, ok)
}

func TestGatewayKeysAreServiceScoped(t *testing.T) {
	g := newTestGateway(t, nil)
	ctx := context.Background()

	resp := &CachedResponse{StatusCode: 200, Body: []byte("users")}
	g.Store(ctx, "users", "samekey", resp, time.Minute)

	_, ok := g.Lookup(ctx, "orders", "samekey")
	assert.False(t, ok)
}

func TestGatewayFailOpen(t *testing.T) {
	g := newTestGateway(t, &failingCache{})
	ctx := context.Background()

	// Every operation must degrade silently, never panic or error out.
	for i := 0; i < 20; i++ {
		_, ok := g.Lookup(ctx, "users", "deadbeefdeadbeef")
		assert.False(t, ok)

		g.Store(ctx, "users", "deadbeefdeadbeef", &CachedResponse{StatusCode: 200}, time.Minute)
		g.Remove(ctx, "users", "deadbeefdeadbeef")
	}
}

func TestGatewayCorruptEntryDroppedAsMiss(t *testing.T) {
	cfg := &config.CacheConfig{Enabled: true, TTL: config.Duration(time.Minute), KeyPrefix: "apigw:"}
	backend := newMemoryCache(cfg, observability.NopLogger())
	g := NewGateway(backend, cfg)
	t.Cleanup(func() { _ = g.Close() })

	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "apigw:users:badentry", []byte("{not json"), time.Minute))

	_, ok := g.Lookup(ctx, "users", "badentry")
	assert.False(t, ok)

	// The corrupt entry is dropped so the next lookup is a clean miss.
	_, err := backend.Get(ctx, "apigw:users:badentry")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGatewayInvalidateService(t *testing.T) {
	g := newTestGateway(t, nil)
	ctx := context.Background()

	g.Store(ctx, "users", "key1", &CachedResponse{StatusCode: 200}, time.Minute)
	g.Store(ctx, "users", "key2", &CachedResponse{StatusCode: 200}, time.Minute)
	g.Store(ctx, "orders", "key3", &CachedResponse{StatusCode: 200}, time.Minute)

	removed := g.InvalidateService(ctx, "users")
	assert.Equal(t, 2, removed)

	_, ok := g.Lookup(ctx, "users", "key1")
	assert.False(t, ok)
	_, ok = g.Lookup(ctx, "orders", "key3")
	assert.True(t, ok)
}

func TestGatewayInvalidateServiceFailOpen(t *testing.T) {
	cfg := &config.CacheConfig{Enabled: true, KeyPrefix: "apigw:"}
	g := NewGateway(&failingCache{}, cfg)

	// A broken backend never surfaces an error to the caller; the
	// best-effort count is simply zero.
	assert.NotPanics(t, func() {
		removed := g.InvalidateService(context.Background(), "users")
		assert.Equal(t, 0, removed)
	})
}

func TestGatewayStats(t *testing.T) {
	g := newTestGateway(t, nil)
	ctx := context.Background()

	g.Store(ctx, "users", "key1", &CachedResponse{StatusCode: 200}, time.Minute)
	g.Lookup(ctx, "users", "key1")
	g.Lookup(ctx, "users", "missing")

	stats, ok := g.Stats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)

	// A backend without statistics reports none.
	_, ok = NewGateway(&failingCache{}, &config.CacheConfig{KeyPrefix: "apigw:"}).Stats()
	assert.False(t, ok)
}

func TestGatewayRemove(t *testing.T) {
	g := newTestGateway(t, nil)
	ctx := context.Background()

	g.Store(ctx, "users", "key1", &CachedResponse{StatusCode: 200}, time.Minute)
	g.Remove(ctx, "users", "key1")

	_, ok := g.Lookup(ctx, "users", "key1")
	assert.False(t, ok)
}
