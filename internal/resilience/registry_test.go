package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/apigw/internal/config"
)

func testGatewayConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		Services: []config.ServiceConfig{
			{Name: "users", URL: "http://users.internal", ResilienceProfile: ProfileCritical},
			{Name: "orders", URL: "http://orders.internal", ResilienceProfile: ProfileTolerant},
			{Name: "search", URL: "http://search.internal"},
		},
	}
}

func TestRegistryMemoizesPolicies(t *testing.T) {
	r := NewRegistry(testGatewayConfig())

	p1 := r.GetPolicy("users")
	p2 := r.GetPolicy("users")
	assert.Same(t, p1, p2)

	// Same breaker instance too, so circuit state is continuous.
	assert.Same(t, p1.Breaker(), p2.Breaker())
}

func TestRegistryUnknownServiceUsesDefault(t *testing.T) {
	r := NewRegistry(testGatewayConfig())

	unknown := r.GetPolicy("does-not-exist")
	alsoUnknown := r.GetPolicy("another-stranger")
	assert.Same(t, unknown, alsoUnknown)

	cfg := r.GetConfig("does-not-exist")
	assert.Equal(t, StandardConfig().RetryCount, cfg.RetryCount)
	assert.Equal(t, StandardConfig().BreakerThreshold, cfg.BreakerThreshold)
}

func TestRegistryProfileSelection(t *testing.T) {
	r := NewRegistry(testGatewayConfig())

	tests := []struct {
		service        string
		wantRetries    int
		wantThreshold  int
		wantPerTry     time.Duration
		wantOverall    time.Duration
		wantOpenPeriod time.Duration
	}{
		{"users", 5, 3, 15 * time.Second, 45 * time.Second, 60 * time.Second},
		{"orders", 2, 8, 30 * time.Second, 2 * time.Minute, 2 * time.Minute},
		{"search", 3, 5, 10 * time.Second, 30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			cfg := r.GetConfig(tt.service)
			assert.Equal(t, tt.wantRetries, cfg.RetryCount)
			assert.Equal(t, tt.wantThreshold, cfg.BreakerThreshold)
			assert.Equal(t, tt.wantPerTry, cfg.TimeoutPerTry)
			assert.Equal(t, tt.wantOverall, cfg.OverallTimeout)
			assert.Equal(t, tt.wantOpenPeriod, cfg.BreakerOpenDuration)
		})
	}
}

func TestRegistryProfileOverrides(t *testing.T) {
	cfg := testGatewayConfig()
	jitterOff := false
	cfg.Resilience.Profiles = map[string]*config.ResilienceProfile{
		ProfileCritical: {
			RetryCount:           7,
			UseJitter:            &jitterOff,
			RetryableStatusCodes: []int{429, 503},
		},
	}
	r := NewRegistry(cfg)

	resolved := r.GetConfig("users")
	assert.Equal(t, 7, resolved.RetryCount)
	assert.False(t, resolved.UseJitter)
	assert.True(t, resolved.IsRetryableStatus(429))
	assert.True(t, resolved.IsRetryableStatus(503))
	assert.False(t, resolved.IsRetryableStatus(502))

	// Fields without overrides keep the preset values.
	assert.Equal(t, 50*time.Millisecond, resolved.BaseDelay)
	assert.Equal(t, 3, resolved.BreakerThreshold)
}

func TestRegistryRecordExecutionNeverPanics(t *testing.T) {
	r := NewRegistry(testGatewayConfig(), WithRegistryObserver(panickyObserver{}))

	require.NotPanics(t, func() {
		r.RecordExecution("users", EventAttempt, true, time.Millisecond)
	})
}
