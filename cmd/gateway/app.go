package main

import (
	"context"
	"fmt"

	"github.com/relaymesh/apigw/internal/auth"
	"github.com/relaymesh/apigw/internal/cache"
	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/forward"
	"github.com/relaymesh/apigw/internal/observability"
	"github.com/relaymesh/apigw/internal/pipeline"
	"github.com/relaymesh/apigw/internal/resilience"
	"github.com/relaymesh/apigw/internal/route"
	"github.com/relaymesh/apigw/internal/server"
)

// application holds the wired gateway components.
type application struct {
	server       *server.Server
	orchestrator *pipeline.Orchestrator
	cacheBackend cache.Cache
	tracer       *observability.Tracer
	config       *config.GatewayConfig
	logger       observability.Logger
}

// newApplication wires every component from the configuration.
func newApplication(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Observability.ServiceName,
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
		SamplingRate: cfg.Observability.TracingSampleRate,
		Insecure:     cfg.Observability.TracingInsecure,
		Enabled:      cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	backend, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache backend: %w", err)
	}

	var verifier route.TokenVerifier
	if cfg.Auth.Secret != "" || cfg.Auth.JWKSURL != "" {
		v, verr := auth.NewVerifier(ctx, &cfg.Auth, auth.WithVerifierLogger(logger))
		if verr != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to initialize token verifier: %w", verr)
		}
		verifier = v
	}

	orchestrator, err := pipeline.NewOrchestrator(cfg,
		cache.NewGateway(backend, &cfg.Cache, cache.WithGatewayLogger(logger)),
		resilience.NewRegistry(cfg,
			resilience.WithRegistryLogger(logger),
			resilience.WithRegistryObserver(resilience.MetricsObserver()),
		),
		forward.NewHTTPEngine(forward.WithEngineLogger(logger)),
		pipeline.WithLogger(logger),
		pipeline.WithTokenVerifier(verifier),
	)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	srv := server.New(cfg, orchestrator, server.WithLogger(logger))

	return &application{
		server:       srv,
		orchestrator: orchestrator,
		cacheBackend: backend,
		tracer:       tracer,
		config:       cfg,
		logger:       logger,
	}, nil
}

// reload applies a changed configuration to the running pipeline.
// Listener settings require a restart and are left untouched.
func (a *application) reload(cfg *config.GatewayConfig) error {
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return a.orchestrator.Apply(cfg)
}

// shutdown releases every component in reverse wiring order.
func (a *application) shutdown(ctx context.Context) {
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("failed to stop server gracefully", observability.Error(err))
	}
	if err := a.cacheBackend.Close(); err != nil {
		a.logger.Error("failed to close cache backend", observability.Error(err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}
}
