package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
	"github.com/relaymesh/apigw/internal/pipeline"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race
// conditions between servers created in the same process.
var ginModeOnce sync.Once

// defaultMaxRequestBody bounds inbound request bodies.
const defaultMaxRequestBody = 10 << 20

// Server is the inbound HTTP server for the gateway.
type Server struct {
	engine       *gin.Engine
	httpServer   *http.Server
	orchestrator *pipeline.Orchestrator
	cfg          *config.ServerConfig
	limiter      *clientLimiter
	logger       observability.Logger

	mu      sync.Mutex
	running bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the HTTP server around an orchestrator.
func New(cfg *config.GatewayConfig, orchestrator *pipeline.Orchestrator, opts ...Option) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:       gin.New(),
		orchestrator: orchestrator,
		cfg:          &cfg.Server,
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(Recovery(s.logger))
	s.engine.Use(CorrelationID())
	s.engine.Use(AccessLog(s.logger))
	if cfg.Server.RateLimit.Enabled {
		s.limiter = newClientLimiter(
			rate.Limit(cfg.Server.RateLimit.RequestsPerSecond),
			cfg.Server.RateLimit.Burst,
		)
		s.engine.Use(RateLimit(s.limiter, s.logger))
	}

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/cache/stats", s.handleCacheStats)
	s.engine.DELETE("/cache/:service", s.handleInvalidateCache)
	if cfg.Observability.MetricsEnabled {
		path := cfg.Observability.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	// Everything else is gateway traffic.
	s.engine.NoRoute(s.handleProxy)

	return s
}

// Engine returns the underlying gin engine, for tests and embedding.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the listener until the server is stopped. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.WriteTimeout.Duration(),
		IdleTimeout:  s.cfg.IdleTimeout.Duration(),
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	if timeout := s.cfg.ShutdownTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.logger.Info("stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// IsRunning reports whether the listener is active.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
