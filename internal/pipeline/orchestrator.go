package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaymesh/apigw/internal/cache"
	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/forward"
	"github.com/relaymesh/apigw/internal/observability"
	"github.com/relaymesh/apigw/internal/resilience"
	"github.com/relaymesh/apigw/internal/route"
)

// pipelineTracerName is the OpenTelemetry tracer name for pipeline spans.
const pipelineTracerName = "apigw/pipeline"

// snapshot is the route/service view the orchestrator reads per
// request. Configuration reloads swap the whole snapshot atomically;
// in-flight requests keep the one they started with.
type snapshot struct {
	authorizer   *route.Authorizer
	services     map[string]config.ServiceConfig
	cacheEnabled bool
	defaultTTL   time.Duration
}

// Orchestrator runs the request pipeline. It is safe for concurrent
// use; resilience and cache state live in their own components and the
// route/service view is an atomically swapped snapshot.
type Orchestrator struct {
	current  atomic.Pointer[snapshot]
	cache    *cache.Gateway
	registry *resilience.Registry
	engine   forward.Engine
	verifier route.TokenVerifier
	metrics  *observability.GatewayMetrics
	logger   observability.Logger
}

// Option is a functional option for the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTokenVerifier sets the verifier used for authenticated routes.
func WithTokenVerifier(v route.TokenVerifier) Option {
	return func(o *Orchestrator) {
		o.verifier = v
	}
}

// NewOrchestrator wires the pipeline from its collaborators and the
// initial configuration.
func NewOrchestrator(
	cfg *config.GatewayConfig,
	cacheGateway *cache.Gateway,
	registry *resilience.Registry,
	engine forward.Engine,
	opts ...Option,
) (*Orchestrator, error) {
	o := &Orchestrator{
		cache:    cacheGateway,
		registry: registry,
		engine:   engine,
		metrics:  observability.GetGatewayMetrics(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.Apply(cfg); err != nil {
		return nil, err
	}
	return o, nil
}

// Apply installs a new configuration snapshot. Circuit breaker and
// cache state survive reloads; only routes and service targets change.
func (o *Orchestrator) Apply(cfg *config.GatewayConfig) error {
	authorizer, err := route.NewAuthorizer(cfg.Routes,
		route.WithTokenVerifier(o.verifier),
		route.WithLogger(o.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to build authorizer: %w", err)
	}

	services := make(map[string]config.ServiceConfig, len(cfg.Services))
	for _, svc := range cfg.Services {
		services[svc.Name] = svc
	}

	o.current.Store(&snapshot{
		authorizer:   authorizer,
		services:     services,
		cacheEnabled: cfg.Cache.Enabled,
		defaultTTL:   cfg.Cache.TTL.Duration(),
	})
	return nil
}

// ResolveService maps an inbound path to the owning service by longest
// route prefix.
func (o *Orchestrator) ResolveService(path string) (string, bool) {
	return o.current.Load().authorizer.ResolveService(path)
}

// Process runs one request through the full pipeline and always
// returns a terminal Result. It never panics: any uncaught failure is
// converted to a 500 Failure with a fresh correlation identifier.
func (o *Orchestrator) Process(ctx context.Context, desc *RequestDescriptor) (result *Result) {
	start := time.Now()
	correlationID := desc.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = observability.ContextWithCorrelationID(ctx, correlationID)

	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.Process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("gateway.service", desc.Service),
			attribute.String("http.method", desc.Method),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in request pipeline",
				observability.String("service", desc.Service),
				observability.String("correlationId", correlationID),
				observability.Any("panic", r),
			)
			result = failureResult(http.StatusInternalServerError,
				"internal gateway error", fmt.Sprint(r), correlationID)
		}
		span.SetAttributes(
			attribute.Int("http.status_code", result.StatusCode),
			attribute.Bool("gateway.from_cache", result.FromCache),
		)
		o.metrics.RecordRequest(desc.Service, desc.Method,
			result.StatusCode, time.Since(start), result.FromCache)
	}()

	snap := o.current.Load()

	// Authorization precedes any cache or network activity.
	decision := snap.authorizer.Authorize(ctx, &route.Request{
		Service: desc.Service,
		Method:  desc.Method,
		Path:    desc.Path,
		Headers: desc.Headers,
	})
	if !decision.Allowed {
		return failureResult(decision.StatusCode, decision.Reason, "", correlationID)
	}

	cacheEligible := snap.cacheEnabled && desc.UseCache &&
		strings.EqualFold(desc.Method, http.MethodGet)

	var key string
	if cacheEligible {
		key = cache.GenerateKey(cache.KeyInput{
			Service: desc.Service,
			Method:  desc.Method,
			Path:    desc.Path,
			Query:   desc.Query,
			Headers: desc.Headers,
		})
		if cached, ok := o.cache.Lookup(ctx, desc.Service, key); ok {
			return successResult(cached.StatusCode, cached.Headers, cached.Body, true)
		}
	}

	svc, ok := snap.services[desc.Service]
	if !ok {
		return failureResult(http.StatusBadGateway,
			"no backend configured for service", desc.Service, correlationID)
	}

	resp, err := o.forward(ctx, desc, &svc)
	if err != nil {
		status, message := mapFailure(err)
		return failureResult(status, message, err.Error(), correlationID)
	}

	if cacheEligible && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		ttl := snap.defaultTTL
		if svc.CacheTTL > 0 {
			ttl = svc.CacheTTL.Duration()
		}
		if desc.CacheTTLOverride > 0 {
			ttl = desc.CacheTTLOverride
		}
		o.cache.Store(ctx, desc.Service, key, &cache.CachedResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
		}, ttl)
	}

	return successResult(resp.StatusCode, resp.Headers, resp.Body, false)
}

// forward executes the upstream call through the service's resilience
// policy. A response with a retryable status code is retried; if the
// retry budget runs out the last upstream response is surfaced as-is.
func (o *Orchestrator) forward(
	ctx context.Context, desc *RequestDescriptor, svc *config.ServiceConfig,
) (*forward.Response, error) {
	target, err := buildTargetURL(svc.URL, desc.Path, desc.Query)
	if err != nil {
		return nil, &forward.TransportError{Kind: forward.OutcomeMalformedRequest, Err: err}
	}

	policy := o.registry.GetPolicy(desc.Service)
	cfg := policy.Config()

	var resp *forward.Response
	execErr := policy.Execute(ctx, func(attemptCtx context.Context) error {
		r, sendErr := o.engine.Send(attemptCtx, &forward.Request{
			Method:    desc.Method,
			TargetURL: target,
			Headers:   desc.Headers,
			Body:      desc.Body,
		})
		if sendErr != nil {
			return sendErr
		}
		resp = r
		if cfg.IsRetryableStatus(r.StatusCode) {
			return &resilience.StatusError{StatusCode: r.StatusCode}
		}
		return nil
	})

	if execErr == nil {
		return resp, nil
	}

	// Retries exhausted on a retryable status: the upstream did answer,
	// so its last response wins over a synthesized gateway error.
	var statusErr *resilience.StatusError
	if errors.As(execErr, &statusErr) && resp != nil {
		return resp, nil
	}

	return nil, execErr
}

// InvalidateService drops all cached responses for a service and
// returns the best-effort count of entries removed.
func (o *Orchestrator) InvalidateService(ctx context.Context, service string) int {
	return o.cache.InvalidateService(ctx, service)
}

// CacheStats exposes backend cache statistics, when the configured
// backend collects them.
func (o *Orchestrator) CacheStats() (cache.Stats, bool) {
	return o.cache.Stats()
}

// buildTargetURL joins the service base URL with the request path and
// encoded query parameters.
func buildTargetURL(baseURL, path string, query map[string][]string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	joined := strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	base.Path = joined

	if len(query) > 0 {
		base.RawQuery = url.Values(query).Encode()
	}

	return base.String(), nil
}

// mapFailure converts a pipeline error into a gateway status and
// message. Malformed outbound requests map to 400, timeouts to 504,
// and everything backend-shaped, circuit-open included, to 502.
func mapFailure(err error) (int, string) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusBadGateway, "circuit open for service"
	case errors.Is(err, resilience.ErrOverallTimeout):
		return http.StatusGatewayTimeout, "upstream request timed out"
	case errors.Is(err, resilience.ErrAttemptTimeout):
		return http.StatusGatewayTimeout, "upstream request timed out"
	}

	switch forward.KindOf(err) {
	case forward.OutcomeMalformedRequest:
		return http.StatusBadRequest, "malformed upstream request"
	case forward.OutcomeTimeout:
		return http.StatusGatewayTimeout, "upstream request timed out"
	case forward.OutcomeNoDestination:
		return http.StatusBadGateway, "no reachable backend"
	case forward.OutcomeBodyError:
		return http.StatusBadGateway, "upstream response unreadable"
	default:
		return http.StatusBadGateway, "upstream request failed"
	}
}
