package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
)

// CachedResponse is the stored form of an upstream response.
type CachedResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
}

// Gateway wraps a backend with fail-open semantics: every backend
// failure degrades to a miss and is never surfaced to the request
// path. A circuit breaker guards the backend so a dead cache is
// skipped cheaply instead of timing out on every request.
type Gateway struct {
	backend   Cache
	keyPrefix string
	guard     *gobreaker.CircuitBreaker
	logger    observability.Logger
}

// GatewayOption is a functional option for the gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger observability.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a fail-open gateway over the given backend.
func NewGateway(backend Cache, cfg *config.CacheConfig, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend:   backend,
		keyPrefix: cfg.KeyPrefix,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.keyPrefix == "" {
		g.keyPrefix = config.DefaultCacheKeyPrefix
	}

	g.guard = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-backend",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				GetCacheMetrics().guardStateGauge.Set(1)
			} else {
				GetCacheMetrics().guardStateGauge.Set(0)
			}
			g.logger.Warn("cache guard state changed",
				observability.String("from", from.String()),
				observability.String("to", to.String()))
		},
	})

	return g
}

// Lookup fetches a cached response. Any failure, including an open
// guard breaker, is treated as a miss.
func (g *Gateway) Lookup(ctx context.Context, service, key string) (*CachedResponse, bool) {
	value, err := g.guard.Execute(func() (interface{}, error) {
		data, err := g.backend.Get(ctx, g.storageKey(service, key))
		if errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheDisabled) {
			// Misses must not count against the guard breaker.
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		g.logger.Debug("cache lookup degraded to miss",
			observability.String("service", service),
			observability.String("key", key),
			observability.Error(err))
		return nil, false
	}

	data, ok := value.([]byte)
	if !ok || data == nil {
		return nil, false
	}

	var resp CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		g.logger.Warn("corrupt cache entry dropped",
			observability.String("service", service),
			observability.String("key", key),
			observability.Error(err))
		_ = g.backend.Delete(ctx, g.storageKey(service, key))
		return nil, false
	}

	return &resp, true
}

// Store persists a response. Failures are logged and swallowed.
func (g *Gateway) Store(ctx context.Context, service, key string, resp *CachedResponse, ttl time.Duration) {
	data, err := json.Marshal(resp)
	if err != nil {
		g.logger.Warn("failed to encode response for cache",
			observability.String("service", service),
			observability.Error(err))
		return
	}

	_, err = g.guard.Execute(func() (interface{}, error) {
		if err := g.backend.Set(ctx, g.storageKey(service, key), data, ttl); err != nil &&
			!errors.Is(err, ErrCacheDisabled) {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		g.logger.Debug("cache store skipped",
			observability.String("service", service),
			observability.String("key", key),
			observability.Error(err))
	}
}

// Remove drops a single cached response. Failures are swallowed.
func (g *Gateway) Remove(ctx context.Context, service, key string) {
	if err := g.backend.Delete(ctx, g.storageKey(service, key)); err != nil &&
		!errors.Is(err, ErrCacheDisabled) {
		g.logger.Debug("cache remove failed",
			observability.String("service", service),
			observability.Error(err))
	}
}

// InvalidateService removes every cached response for a service and
// returns the best-effort count of entries dropped. Like the rest of
// the gateway it fails open: backend errors are logged and swallowed,
// never surfaced to the caller.
func (g *Gateway) InvalidateService(ctx context.Context, service string) int {
	removed, err := g.backend.DeletePrefix(ctx, g.keyPrefix+service+":")
	if err != nil && !errors.Is(err, ErrCacheDisabled) {
		g.logger.Warn("cache invalidation incomplete",
			observability.String("service", service),
			observability.Int("removed", removed),
			observability.Error(err))
	}
	return removed
}

// Stats reports backend statistics when the backend collects them.
func (g *Gateway) Stats() (Stats, bool) {
	if sc, ok := g.backend.(CacheWithStats); ok {
		return sc.Stats(), true
	}
	return Stats{}, false
}

// Close closes the underlying backend.
func (g *Gateway) Close() error {
	return g.backend.Close()
}

// storageKey namespaces a canonical key by prefix and service so that
// per-service invalidation can match on a prefix scan.
func (g *Gateway) storageKey(service, key string) string {
	return g.keyPrefix + service + ":" + key
}
