package resilience

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned immediately while a service's circuit
	// is open. It is never retried.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrAttemptTimeout marks a single attempt that exceeded the
	// per-try timeout. It counts as a failure and is retryable.
	ErrAttemptTimeout = errors.New("attempt timed out")

	// ErrOverallTimeout marks an execution that exceeded the overall
	// timeout. Remaining retries are abandoned.
	ErrOverallTimeout = errors.New("overall timeout exceeded")
)

// StatusError marks an upstream response whose status code is in the
// profile's retryable set. It carries the status so the final attempt
// can still surface the upstream response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("retryable upstream status %d", e.StatusCode)
}
