package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/relaymesh/apigw/internal/observability"
)

// Policy event kinds reported to the execution observer.
const (
	EventAttempt     = "attempt"
	EventRetry       = "retry"
	EventCircuitOpen = "circuit_open"
	EventTimeout     = "timeout"
)

// AttemptFunc is one upstream attempt. The context carries the per-try
// deadline; implementations must respect its cancellation.
type AttemptFunc func(ctx context.Context) error

// Policy executes upstream calls for one service with retry, circuit
// breaking, and timeouts composed around each attempt. Policies are
// immutable and safe for concurrent use; all mutable state lives in
// the breaker.
type Policy struct {
	service  string
	cfg      *Config
	breaker  *Breaker
	observer ExecutionObserver
	logger   observability.Logger
}

// NewPolicy builds a policy for one service.
func NewPolicy(service string, cfg *Config, opts ...PolicyOption) *Policy {
	p := &Policy{
		service:  service,
		cfg:      cfg,
		observer: NopObserver(),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = NewBreaker(service, cfg, p.logger)
	}
	return p
}

// PolicyOption is a functional option for a policy.
type PolicyOption func(*Policy)

// WithPolicyLogger sets the logger.
func WithPolicyLogger(logger observability.Logger) PolicyOption {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithPolicyObserver sets the execution observer.
func WithPolicyObserver(observer ExecutionObserver) PolicyOption {
	return func(p *Policy) {
		p.observer = observer
	}
}

// Config returns the policy's resolved configuration.
func (p *Policy) Config() *Config {
	return p.cfg
}

// Breaker returns the policy's circuit breaker.
func (p *Policy) Breaker() *Breaker {
	return p.breaker
}

// Execute runs fn with the full composed policy: up to retryCount+1
// attempts, each guarded by the breaker and bounded by the per-try
// timeout, with the whole execution bounded by the overall timeout.
// Circuit-open failures are returned immediately without consuming a
// retry, and caller cancellation aborts retries and backoff waits.
func (p *Policy) Execute(ctx context.Context, fn AttemptFunc) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OverallTimeout)
	defer cancel()

	var lastErr error
	attempts := p.cfg.RetryCount + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return p.mapContextError(ctx, err)
		}

		start := time.Now()
		err := p.attempt(ctx, fn)
		elapsed := time.Since(start)

		if err == nil {
			p.observe(EventAttempt, true, elapsed)
			return nil
		}
		lastErr = err

		switch {
		case errors.Is(err, ErrCircuitOpen):
			p.observe(EventCircuitOpen, false, elapsed)
			return err
		case errors.Is(err, ErrOverallTimeout):
			p.observe(EventTimeout, false, elapsed)
			return err
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, ErrAttemptTimeout):
			p.observe(EventTimeout, false, elapsed)
		default:
			p.observe(EventAttempt, false, elapsed)
		}

		if attempt == attempts {
			break
		}

		delay := p.backoffDelay(attempt)
		p.observe(EventRetry, true, delay)
		p.logger.Debug("retrying upstream call",
			observability.String("service", p.service),
			observability.Int("attempt", attempt),
			observability.Duration("delay", delay),
			observability.Error(err),
		)

		select {
		case <-ctx.Done():
			return p.mapContextError(ctx, ctx.Err())
		case <-time.After(delay):
		}
	}

	return lastErr
}

// attempt runs one guarded, per-try-bounded attempt and feeds its
// outcome to the breaker.
func (p *Policy) attempt(ctx context.Context, fn AttemptFunc) error {
	if !p.breaker.Allow() {
		return ErrCircuitOpen
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.TimeoutPerTry)
	defer cancel()

	err := fn(attemptCtx)

	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		if ctx.Err() != nil {
			// The overall deadline fired, not the per-try one.
			p.breaker.RecordFailure()
			return ErrOverallTimeout
		}
		p.breaker.RecordFailure()
		return ErrAttemptTimeout
	}

	if err != nil && errors.Is(err, context.Canceled) {
		// Caller went away; not a backend failure. The admission may
		// have been the half-open probe, so free the slot or the
		// breaker would reject every call until process restart.
		p.breaker.ReleaseProbe()
		return err
	}

	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// backoffDelay computes the jittered exponential delay before the
// given 1-indexed attempt's retry.
func (p *Policy) backoffDelay(attempt int) time.Duration {
	delay := p.cfg.BaseDelay << uint(attempt-1)
	if delay > p.cfg.MaxDelay || delay <= 0 {
		delay = p.cfg.MaxDelay
	}

	if p.cfg.UseJitter {
		// ±50% jitter around the computed delay.
		jitter := time.Duration(rand.Float64() * float64(delay))
		delay = delay/2 + jitter/2
	}

	return delay
}

// mapContextError converts a context error on the overall-timeout
// context into the matching policy error.
func (p *Policy) mapContextError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrOverallTimeout
	}
	return err
}

// observe reports a policy event without ever affecting control flow.
func (p *Policy) observe(event string, success bool, elapsed time.Duration) {
	defer func() {
		_ = recover()
	}()
	p.observer.RecordExecution(p.service, event, success, elapsed)
}
