package resilience

import (
	"sync"
	"time"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
)

// Registry builds and memoizes one policy per service name. Repeated
// lookups for the same name return the same instance, which keeps
// circuit state continuous across requests. Unknown names resolve to
// the "default" policy.
type Registry struct {
	policies sync.Map

	mu       sync.RWMutex
	profiles map[string]*Config

	observer ExecutionObserver
	logger   observability.Logger
}

// RegistryOption is a functional option for the registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger observability.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRegistryObserver sets the execution observer for all policies.
func WithRegistryObserver(observer ExecutionObserver) RegistryOption {
	return func(r *Registry) {
		r.observer = observer
	}
}

// NewRegistry builds a registry from the gateway configuration. Each
// service is bound to its named profile (with config overrides applied
// on top of the preset); services naming no profile, and unknown
// service names at runtime, use the standard profile.
func NewRegistry(cfg *config.GatewayConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		profiles: make(map[string]*Config),
		observer: NopObserver(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.rebuildProfiles(cfg)
	return r
}

// rebuildProfiles resolves the per-service profile table.
func (r *Registry) rebuildProfiles(cfg *config.GatewayConfig) {
	profiles := make(map[string]*Config)
	profiles[ProfileDefault] = StandardConfig()

	if cfg != nil {
		for _, svc := range cfg.Services {
			name := svc.ResilienceProfile
			var override *config.ResilienceProfile
			if cfg.Resilience.Profiles != nil {
				override = cfg.Resilience.Profiles[name]
			}
			profiles[svc.Name] = FromProfile(name, override)
		}
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()
}

// GetPolicy returns the memoized policy for a service, building it on
// first access.
func (r *Registry) GetPolicy(service string) *Policy {
	name := r.resolveName(service)

	if value, ok := r.policies.Load(name); ok {
		return value.(*Policy)
	}

	policy := NewPolicy(name, r.GetConfig(name),
		WithPolicyLogger(r.logger),
		WithPolicyObserver(r.observer),
	)

	actual, loaded := r.policies.LoadOrStore(name, policy)
	if loaded {
		return actual.(*Policy)
	}

	r.logger.Debug("created resilience policy",
		observability.String("service", name))

	return policy
}

// GetConfig returns the resolved configuration for a service. Unknown
// names resolve to the default profile.
func (r *Registry) GetConfig(service string) *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.profiles[service]; ok {
		return cfg
	}
	return r.profiles[ProfileDefault]
}

// RecordExecution forwards a policy event to the observer. It never
// panics and never alters policy behavior.
func (r *Registry) RecordExecution(service, event string, success bool, elapsed time.Duration) {
	defer func() {
		_ = recover()
	}()
	r.observer.RecordExecution(service, event, success, elapsed)
}

// resolveName maps unknown services onto the default policy entry so
// they share one breaker instead of leaking unbounded policies.
func (r *Registry) resolveName(service string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.profiles[service]; ok {
		return service
	}
	return ProfileDefault
}
