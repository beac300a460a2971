package resilience

import (
	"sync"
	"time"

	"github.com/relaymesh/apigw/internal/observability"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed allows requests through.
	StateClosed State = iota

	// StateOpen rejects requests without contacting the backend.
	StateOpen

	// StateHalfOpen allows a single probe request through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is the per-service circuit breaker. It is the only mutable
// shared state in the pipeline; a single mutex guards every read and
// write so concurrent callers observe one consistent state machine and
// at most one half-open probe is in flight.
type Breaker struct {
	name      string
	threshold int
	window    time.Duration
	openFor   time.Duration
	logger    observability.Logger

	mu            sync.Mutex
	state         State
	failures      int
	windowStart   time.Time
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker creates a closed breaker for one service.
func NewBreaker(name string, cfg *Config, logger observability.Logger) *Breaker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Breaker{
		name:        name,
		threshold:   cfg.BreakerThreshold,
		window:      cfg.BreakerSamplingWindow,
		openFor:     cfg.BreakerOpenDuration,
		logger:      logger,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Allow reports whether a call may proceed. An open circuit whose
// cooldown has elapsed transitions to half-open and admits exactly one
// probe; further callers are rejected until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if now.Sub(b.openedAt) >= b.openFor {
			b.transitionTo(StateHalfOpen)
			b.probeInFlight = true
			return true
		}
		return false

	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true

	default:
		return false
	}
}

// RecordSuccess counts a successful call. A successful half-open probe
// closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.transitionTo(StateClosed)
	}
}

// RecordFailure counts a failed call. Reaching the threshold within
// the sampling window opens the circuit; a failed half-open probe
// reopens it for another full duration.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case StateClosed:
		if now.Sub(b.windowStart) >= b.window {
			b.failures = 0
			b.windowStart = now
		}
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = now
			b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		b.openedAt = now
		b.transitionTo(StateOpen)
	}
}

// ReleaseProbe frees the half-open probe slot without resolving the
// probe. Used when an admitted call ends for reasons that say nothing
// about backend health, such as caller cancellation; the breaker stays
// half-open and the next caller becomes the probe.
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transitionTo moves the state machine and resets counters.
// Must be called with the lock held.
func (b *Breaker) transitionTo(newState State) {
	oldState := b.state
	b.state = newState
	b.failures = 0
	b.windowStart = time.Now()
	b.probeInFlight = false

	b.logger.Info("circuit breaker state changed",
		observability.String("service", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)
}
