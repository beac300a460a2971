// Package config provides configuration management for the gateway.
// Configuration is loaded from a YAML file with ${VAR} and ${VAR:-default}
// environment substitution, validated at startup, and optionally watched
// for changes.
package config

import (
	"time"
)

// GatewayConfig is the root configuration for the gateway process.
type GatewayConfig struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Services      []ServiceConfig     `yaml:"services" json:"services"`
	Routes        []RouteConfig       `yaml:"routes" json:"routes"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Resilience    ResilienceConfig    `yaml:"resilience" json:"resilience"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig holds the inbound HTTP server settings.
type ServerConfig struct {
	Address         string          `yaml:"address" json:"address"`
	Port            int             `yaml:"port" json:"port"`
	ReadTimeout     Duration        `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration        `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout     Duration        `yaml:"idleTimeout" json:"idleTimeout"`
	ShutdownTimeout Duration        `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	RateLimit       RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
}

// RateLimitConfig holds inbound rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ServiceConfig describes one named backend service.
type ServiceConfig struct {
	// Name is the service identifier referenced by routes and descriptors.
	Name string `yaml:"name" json:"name"`

	// URL is the base URL all requests for this service are forwarded to.
	URL string `yaml:"url" json:"url"`

	// CacheTTL overrides the global default cache TTL for this service.
	CacheTTL Duration `yaml:"cacheTTL" json:"cacheTTL"`

	// ResilienceProfile selects a named resilience profile
	// ("critical", "standard", "tolerant"). Empty means "standard".
	ResilienceProfile string `yaml:"resilienceProfile" json:"resilienceProfile"`
}

// RouteConfig is one allow-list entry of the route authorizer.
type RouteConfig struct {
	Service       string   `yaml:"service" json:"service"`
	Methods       []string `yaml:"methods" json:"methods"`
	PathPrefix    string   `yaml:"pathPrefix" json:"pathPrefix"`
	RequiresAuth  bool     `yaml:"requiresAuth" json:"requiresAuth"`
	RequiredRoles []string `yaml:"requiredRoles" json:"requiredRoles"`

	// Condition is an optional CEL expression evaluated against the
	// request attributes; an empty condition always passes.
	Condition string `yaml:"condition" json:"condition"`
}

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// DefaultCacheKeyPrefix namespaces cache entries written by the gateway.
const DefaultCacheKeyPrefix = "apigw:"

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Type       string            `yaml:"type" json:"type"`
	TTL        Duration          `yaml:"ttl" json:"ttl"`
	MaxEntries int               `yaml:"maxEntries" json:"maxEntries"`
	KeyPrefix  string            `yaml:"keyPrefix" json:"keyPrefix"`
	Redis      *RedisCacheConfig `yaml:"redis" json:"redis"`
}

// RedisCacheConfig holds Redis connection settings for the cache backend.
type RedisCacheConfig struct {
	URL            string   `yaml:"url" json:"url"`
	PoolSize       int      `yaml:"poolSize" json:"poolSize"`
	ConnectTimeout Duration `yaml:"connectTimeout" json:"connectTimeout"`
	ReadTimeout    Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout   Duration `yaml:"writeTimeout" json:"writeTimeout"`
}

// ResilienceConfig holds resilience profile settings. Named profiles may be
// overridden or extended; services pick a profile by name.
type ResilienceConfig struct {
	Profiles map[string]*ResilienceProfile `yaml:"profiles" json:"profiles"`
}

// ResilienceProfile mirrors one composed policy configuration.
type ResilienceProfile struct {
	RetryCount                   int      `yaml:"retryCount" json:"retryCount"`
	BaseDelay                    Duration `yaml:"baseDelay" json:"baseDelay"`
	MaxDelay                     Duration `yaml:"maxDelay" json:"maxDelay"`
	TimeoutPerTry                Duration `yaml:"timeoutPerTry" json:"timeoutPerTry"`
	OverallTimeout               Duration `yaml:"overallTimeout" json:"overallTimeout"`
	CircuitBreakerThreshold      int      `yaml:"circuitBreakerThreshold" json:"circuitBreakerThreshold"`
	CircuitBreakerSamplingWindow Duration `yaml:"circuitBreakerSamplingWindow" json:"circuitBreakerSamplingWindow"`
	CircuitBreakerOpenDuration   Duration `yaml:"circuitBreakerOpenDuration" json:"circuitBreakerOpenDuration"`
	UseJitter                    *bool    `yaml:"useJitter" json:"useJitter"`
	RetryableStatusCodes         []int    `yaml:"retryableStatusCodes" json:"retryableStatusCodes"`
}

// AuthConfig holds JWT verification settings for routes with requiresAuth.
type AuthConfig struct {
	// Secret is the shared HMAC secret for HS256 tokens.
	Secret string `yaml:"secret" json:"secret"`

	// JWKSURL fetches verification keys from a JWKS endpoint instead.
	JWKSURL string `yaml:"jwksUrl" json:"jwksUrl"`

	// RolesClaim is the claim holding the caller's roles. Default "roles".
	RolesClaim string `yaml:"rolesClaim" json:"rolesClaim"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
	LogOutput string `yaml:"logOutput" json:"logOutput"`

	MetricsEnabled bool   `yaml:"metricsEnabled" json:"metricsEnabled"`
	MetricsPath    string `yaml:"metricsPath" json:"metricsPath"`

	TracingEnabled    bool    `yaml:"tracingEnabled" json:"tracingEnabled"`
	OTLPEndpoint      string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	TracingSampleRate float64 `yaml:"tracingSampleRate" json:"tracingSampleRate"`
	TracingInsecure   bool    `yaml:"tracingInsecure" json:"tracingInsecure"`
	ServiceName       string  `yaml:"serviceName" json:"serviceName"`
}

// DefaultConfig returns a GatewayConfig with default values applied.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Cache: CacheConfig{
			Enabled:    true,
			Type:       CacheTypeMemory,
			TTL:        Duration(5 * time.Minute),
			MaxEntries: 10000,
			KeyPrefix:  DefaultCacheKeyPrefix,
		},
		Auth: AuthConfig{
			RolesClaim: "roles",
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			LogOutput:         "stdout",
			MetricsEnabled:    true,
			MetricsPath:       "/metrics",
			TracingSampleRate: 1.0,
			ServiceName:       "apigw",
		},
	}
}

// ServiceByName returns the service configuration for the given name,
// or nil when the name is unknown.
func (c *GatewayConfig) ServiceByName(name string) *ServiceConfig {
	for i := range c.Services {
		if c.Services[i].Name == name {
			return &c.Services[i]
		}
	}
	return nil
}

// applyDefaults fills zero-valued fields with defaults.
func (c *GatewayConfig) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	if c.Cache.Type == "" {
		c.Cache.Type = def.Cache.Type
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = def.Cache.KeyPrefix
	}

	if c.Auth.RolesClaim == "" {
		c.Auth.RolesClaim = def.Auth.RolesClaim
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = def.Observability.LogLevel
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = def.Observability.LogFormat
	}
	if c.Observability.LogOutput == "" {
		c.Observability.LogOutput = def.Observability.LogOutput
	}
	if c.Observability.MetricsPath == "" {
		c.Observability.MetricsPath = def.Observability.MetricsPath
	}
	if c.Observability.TracingSampleRate == 0 {
		c.Observability.TracingSampleRate = def.Observability.TracingSampleRate
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = def.Observability.ServiceName
	}
}
