package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaymesh/apigw/internal/observability"
)

func testBreakerConfig() *Config {
	return &Config{
		BreakerThreshold:      3,
		BreakerSamplingWindow: time.Minute,
		BreakerOpenDuration:   50 * time.Millisecond,
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(60 * time.Millisecond)

	// Exactly one probe is admitted after the cooldown.
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestBreakerReleaseProbeFreesSlot(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	// Releasing an unresolved probe keeps the breaker half-open but
	// lets the next caller probe instead.
	b.ReleaseProbe()
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReleaseProbeIgnoredWhenClosed(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	b.ReleaseProbe()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow())
	b.RecordSuccess()

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerWindowExpiryResetsCount(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.BreakerSamplingWindow = 30 * time.Millisecond
	b := NewBreaker("users", cfg, observability.NopLogger())

	b.RecordFailure()
	b.RecordFailure()

	time.Sleep(40 * time.Millisecond)

	// The window has rolled over, so the old failures no longer count.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerConcurrentSingleProbe(t *testing.T) {
	b := NewBreaker("users", testBreakerConfig(), observability.NopLogger())

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
}
