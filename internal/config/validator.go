package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// validMethods are the HTTP methods accepted in route rules.
var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// knownProfiles are the resilience profile names services may select.
var knownProfiles = map[string]bool{
	"critical": true,
	"standard": true,
	"tolerant": true,
	"default":  true,
}

// ValidateConfig checks the configuration for consistency. It returns the
// first problem found.
func ValidateConfig(cfg *GatewayConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is required")
	}

	if err := validateServices(cfg); err != nil {
		return err
	}
	if err := validateRoutes(cfg); err != nil {
		return err
	}
	if err := validateCache(&cfg.Cache); err != nil {
		return err
	}
	return validateProfiles(&cfg.Resilience)
}

func validateServices(cfg *GatewayConfig) error {
	if len(cfg.Services) == 0 {
		return fmt.Errorf("at least one service is required")
	}

	seen := make(map[string]bool, len(cfg.Services))
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if svc.Name == "" {
			return fmt.Errorf("service %d: name is required", i)
		}
		if seen[svc.Name] {
			return fmt.Errorf("service %q: duplicate name", svc.Name)
		}
		seen[svc.Name] = true

		u, err := url.Parse(svc.URL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("service %q: url must be an absolute URL", svc.Name)
		}

		if svc.ResilienceProfile != "" &&
			!knownProfiles[svc.ResilienceProfile] &&
			cfg.Resilience.Profiles[svc.ResilienceProfile] == nil {
			return fmt.Errorf("service %q: unknown resilience profile %q",
				svc.Name, svc.ResilienceProfile)
		}
	}
	return nil
}

func validateRoutes(cfg *GatewayConfig) error {
	for i := range cfg.Routes {
		route := &cfg.Routes[i]
		if route.Service == "" {
			return fmt.Errorf("route %d: service is required", i)
		}
		if cfg.ServiceByName(route.Service) == nil {
			return fmt.Errorf("route %d: unknown service %q", i, route.Service)
		}
		if !strings.HasPrefix(route.PathPrefix, "/") {
			return fmt.Errorf("route %d: pathPrefix must start with /", i)
		}
		if len(route.Methods) == 0 {
			return fmt.Errorf("route %d: at least one method is required", i)
		}
		for _, m := range route.Methods {
			if !validMethods[strings.ToUpper(m)] {
				return fmt.Errorf("route %d: invalid method %q", i, m)
			}
		}
	}
	return nil
}

func validateCache(cache *CacheConfig) error {
	switch cache.Type {
	case CacheTypeMemory, "":
	case CacheTypeRedis:
		if cache.Redis == nil || cache.Redis.URL == "" {
			return fmt.Errorf("cache: redis url is required for redis cache")
		}
	default:
		return fmt.Errorf("cache: unknown type %q", cache.Type)
	}
	return nil
}

func validateProfiles(res *ResilienceConfig) error {
	for name, profile := range res.Profiles {
		if profile == nil {
			return fmt.Errorf("resilience profile %q: empty", name)
		}
		if profile.RetryCount < 0 {
			return fmt.Errorf("resilience profile %q: retryCount must be >= 0", name)
		}
		if profile.BaseDelay > profile.MaxDelay && profile.MaxDelay != 0 {
			return fmt.Errorf("resilience profile %q: baseDelay exceeds maxDelay", name)
		}
		for _, code := range profile.RetryableStatusCodes {
			if code < 100 || code > 599 {
				return fmt.Errorf("resilience profile %q: invalid status code %d", name, code)
			}
		}
	}
	return nil
}
