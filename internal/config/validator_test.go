package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *GatewayConfig {
	t.Helper()
	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	return cfg
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*GatewayConfig) {},
		},
		{
			name:    "nil services",
			mutate:  func(c *GatewayConfig) { c.Services = nil },
			wantErr: "at least one service",
		},
		{
			name:    "missing service name",
			mutate:  func(c *GatewayConfig) { c.Services[0].Name = "" },
			wantErr: "name is required",
		},
		{
			name: "duplicate service name",
			mutate: func(c *GatewayConfig) {
				c.Services[1].Name = c.Services[0].Name
			},
			wantErr: "duplicate name",
		},
		{
			name:    "relative service url",
			mutate:  func(c *GatewayConfig) { c.Services[0].URL = "/not-absolute" },
			wantErr: "absolute URL",
		},
		{
			name:    "unknown profile",
			mutate:  func(c *GatewayConfig) { c.Services[0].ResilienceProfile = "heroic" },
			wantErr: "unknown resilience profile",
		},
		{
			name:    "route references unknown service",
			mutate:  func(c *GatewayConfig) { c.Routes[0].Service = "ghost" },
			wantErr: "unknown service",
		},
		{
			name:    "route prefix without slash",
			mutate:  func(c *GatewayConfig) { c.Routes[0].PathPrefix = "api/users" },
			wantErr: "must start with /",
		},
		{
			name:    "route without methods",
			mutate:  func(c *GatewayConfig) { c.Routes[0].Methods = nil },
			wantErr: "at least one method",
		},
		{
			name:    "route with bogus method",
			mutate:  func(c *GatewayConfig) { c.Routes[0].Methods = []string{"FETCH"} },
			wantErr: "invalid method",
		},
		{
			name:    "redis cache without url",
			mutate:  func(c *GatewayConfig) { c.Cache.Type = CacheTypeRedis },
			wantErr: "redis url is required",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *GatewayConfig) { c.Cache.Type = "memcached" },
			wantErr: "unknown type",
		},
		{
			name: "negative retry count",
			mutate: func(c *GatewayConfig) {
				c.Resilience.Profiles = map[string]*ResilienceProfile{
					"standard": {RetryCount: -1},
				}
			},
			wantErr: "retryCount",
		},
		{
			name: "invalid retryable status code",
			mutate: func(c *GatewayConfig) {
				c.Resilience.Profiles = map[string]*ResilienceProfile{
					"standard": {RetryableStatusCodes: []int{99}},
				}
			},
			wantErr: "invalid status code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	require.Error(t, ValidateConfig(nil))
}
