package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresetProfiles(t *testing.T) {
	critical := CriticalConfig()
	assert.Equal(t, 5, critical.RetryCount)
	assert.Equal(t, 50*time.Millisecond, critical.BaseDelay)
	assert.Equal(t, 10*time.Second, critical.MaxDelay)
	assert.Equal(t, 15*time.Second, critical.TimeoutPerTry)
	assert.Equal(t, 45*time.Second, critical.OverallTimeout)
	assert.Equal(t, 3, critical.BreakerThreshold)
	assert.Equal(t, 60*time.Second, critical.BreakerOpenDuration)

	standard := StandardConfig()
	assert.Equal(t, 3, standard.RetryCount)
	assert.Equal(t, 100*time.Millisecond, standard.BaseDelay)
	assert.Equal(t, 30*time.Second, standard.MaxDelay)
	assert.Equal(t, 10*time.Second, standard.TimeoutPerTry)
	assert.Equal(t, 30*time.Second, standard.OverallTimeout)
	assert.Equal(t, 5, standard.BreakerThreshold)
	assert.Equal(t, 30*time.Second, standard.BreakerOpenDuration)

	tolerant := TolerantConfig()
	assert.Equal(t, 2, tolerant.RetryCount)
	assert.Equal(t, 200*time.Millisecond, tolerant.BaseDelay)
	assert.Equal(t, 60*time.Second, tolerant.MaxDelay)
	assert.Equal(t, 30*time.Second, tolerant.TimeoutPerTry)
	assert.Equal(t, 2*time.Minute, tolerant.OverallTimeout)
	assert.Equal(t, 8, tolerant.BreakerThreshold)
	assert.Equal(t, 2*time.Minute, tolerant.BreakerOpenDuration)
}

func TestPresetConfigFallback(t *testing.T) {
	standard := StandardConfig()

	for _, name := range []string{"", ProfileDefault, ProfileStandard, "unheard-of"} {
		cfg := presetConfig(name)
		assert.Equal(t, standard.RetryCount, cfg.RetryCount, "profile %q", name)
		assert.Equal(t, standard.BreakerThreshold, cfg.BreakerThreshold, "profile %q", name)
	}
}

func TestDefaultRetryableStatuses(t *testing.T) {
	cfg := StandardConfig()

	assert.True(t, cfg.IsRetryableStatus(502))
	assert.True(t, cfg.IsRetryableStatus(503))
	assert.True(t, cfg.IsRetryableStatus(504))
	assert.False(t, cfg.IsRetryableStatus(200))
	assert.False(t, cfg.IsRetryableStatus(404))
	assert.False(t, cfg.IsRetryableStatus(500))
}
