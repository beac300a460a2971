package resilience

import (
	"time"

	"github.com/relaymesh/apigw/internal/config"
)

// Well-known profile names.
const (
	ProfileCritical = "critical"
	ProfileStandard = "standard"
	ProfileTolerant = "tolerant"
	ProfileDefault  = "default"
)

// Config is one resolved resilience profile. Immutable once built.
type Config struct {
	RetryCount     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	TimeoutPerTry  time.Duration
	OverallTimeout time.Duration

	BreakerThreshold      int
	BreakerSamplingWindow time.Duration
	BreakerOpenDuration   time.Duration

	UseJitter            bool
	RetryableStatusCodes map[int]bool
}

// defaultRetryableStatusCodes are the upstream statuses retried when a
// profile does not configure its own set.
var defaultRetryableStatusCodes = []int{502, 503, 504}

// StandardConfig returns the "standard" profile, which is also the
// default for services that name no profile.
func StandardConfig() *Config {
	return &Config{
		RetryCount:            3,
		BaseDelay:             100 * time.Millisecond,
		MaxDelay:              30 * time.Second,
		TimeoutPerTry:         10 * time.Second,
		OverallTimeout:        30 * time.Second,
		BreakerThreshold:      5,
		BreakerSamplingWindow: 30 * time.Second,
		BreakerOpenDuration:   30 * time.Second,
		UseJitter:             true,
		RetryableStatusCodes:  statusSet(defaultRetryableStatusCodes),
	}
}

// CriticalConfig returns the "critical" profile: aggressive retries
// with a sensitive breaker, for dependencies that must be shielded
// quickly.
func CriticalConfig() *Config {
	return &Config{
		RetryCount:            5,
		BaseDelay:             50 * time.Millisecond,
		MaxDelay:              10 * time.Second,
		TimeoutPerTry:         15 * time.Second,
		OverallTimeout:        45 * time.Second,
		BreakerThreshold:      3,
		BreakerSamplingWindow: 60 * time.Second,
		BreakerOpenDuration:   60 * time.Second,
		UseJitter:             true,
		RetryableStatusCodes:  statusSet(defaultRetryableStatusCodes),
	}
}

// TolerantConfig returns the "tolerant" profile: few retries, long
// timeouts, and a breaker that trips late.
func TolerantConfig() *Config {
	return &Config{
		RetryCount:            2,
		BaseDelay:             200 * time.Millisecond,
		MaxDelay:              60 * time.Second,
		TimeoutPerTry:         30 * time.Second,
		OverallTimeout:        2 * time.Minute,
		BreakerThreshold:      8,
		BreakerSamplingWindow: 2 * time.Minute,
		BreakerOpenDuration:   2 * time.Minute,
		UseJitter:             true,
		RetryableStatusCodes:  statusSet(defaultRetryableStatusCodes),
	}
}

// presetConfig resolves a profile name to its preset. Unknown names
// fall back to the standard profile.
func presetConfig(name string) *Config {
	switch name {
	case ProfileCritical:
		return CriticalConfig()
	case ProfileTolerant:
		return TolerantConfig()
	case ProfileStandard, ProfileDefault, "":
		return StandardConfig()
	default:
		return StandardConfig()
	}
}

// FromProfile builds a Config from a configured profile, filling any
// unset field from the named preset base.
func FromProfile(name string, p *config.ResilienceProfile) *Config {
	cfg := presetConfig(name)
	if p == nil {
		return cfg
	}

	if p.RetryCount > 0 {
		cfg.RetryCount = p.RetryCount
	}
	if p.BaseDelay > 0 {
		cfg.BaseDelay = p.BaseDelay.Duration()
	}
	if p.MaxDelay > 0 {
		cfg.MaxDelay = p.MaxDelay.Duration()
	}
	if p.TimeoutPerTry > 0 {
		cfg.TimeoutPerTry = p.TimeoutPerTry.Duration()
	}
	if p.OverallTimeout > 0 {
		cfg.OverallTimeout = p.OverallTimeout.Duration()
	}
	if p.CircuitBreakerThreshold > 0 {
		cfg.BreakerThreshold = p.CircuitBreakerThreshold
	}
	if p.CircuitBreakerSamplingWindow > 0 {
		cfg.BreakerSamplingWindow = p.CircuitBreakerSamplingWindow.Duration()
	}
	if p.CircuitBreakerOpenDuration > 0 {
		cfg.BreakerOpenDuration = p.CircuitBreakerOpenDuration.Duration()
	}
	if p.UseJitter != nil {
		cfg.UseJitter = *p.UseJitter
	}
	if len(p.RetryableStatusCodes) > 0 {
		cfg.RetryableStatusCodes = statusSet(p.RetryableStatusCodes)
	}

	return cfg
}

// IsRetryableStatus reports whether an upstream status code is
// configured as retryable.
func (c *Config) IsRetryableStatus(status int) bool {
	return c.RetryableStatusCodes[status]
}

func statusSet(codes []int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set
}
