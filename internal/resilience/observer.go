package resilience

import (
	"time"

	"github.com/relaymesh/apigw/internal/observability"
)

// ExecutionObserver receives fire-and-forget policy events. Observer
// failures never affect policy behavior.
type ExecutionObserver interface {
	RecordExecution(service, event string, success bool, elapsed time.Duration)
}

// nopObserver discards all events.
type nopObserver struct{}

func (nopObserver) RecordExecution(string, string, bool, time.Duration) {}

// NopObserver returns an observer that discards all events.
func NopObserver() ExecutionObserver {
	return nopObserver{}
}

// metricsObserver exports policy events as Prometheus metrics.
type metricsObserver struct {
	metrics *observability.GatewayMetrics
}

// MetricsObserver returns an observer backed by the gateway metrics.
func MetricsObserver() ExecutionObserver {
	return &metricsObserver{metrics: observability.GetGatewayMetrics()}
}

func (o *metricsObserver) RecordExecution(service, event string, success bool, elapsed time.Duration) {
	o.metrics.RecordPolicyEvent(service, event, success, elapsed)
}
