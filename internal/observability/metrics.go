package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GatewayMetrics holds the Prometheus collectors for the request pipeline.
type GatewayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	policyEvents    *prometheus.CounterVec
	policyDuration  *prometheus.HistogramVec
}

var (
	gatewayMetrics     *GatewayMetrics
	gatewayMetricsOnce sync.Once
)

// GetGatewayMetrics returns the process-wide gateway metrics instance.
func GetGatewayMetrics() *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayMetrics = newGatewayMetrics("gateway")
	})
	return gatewayMetrics
}

func newGatewayMetrics(namespace string) *GatewayMetrics {
	return &GatewayMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed by the pipeline",
			},
			[]string{"service", "method", "status", "from_cache"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request processing duration in seconds",
				Buckets: []float64{
					.001, .005, .01, .025, .05,
					.1, .25, .5, 1, 2.5, 5, 10,
				},
			},
			[]string{"service", "method", "status"},
		),
		policyEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_events_total",
				Help:      "Total number of resilience policy events",
			},
			[]string{"service", "event", "success"},
		),
		policyDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "policy_event_duration_seconds",
				Help:      "Duration of resilience policy executions in seconds",
				Buckets: []float64{
					.001, .005, .01, .05, .1, .5, 1, 5, 15, 45,
				},
			},
			[]string{"service", "event"},
		),
	}
}

// RecordRequest records one pipeline request outcome.
func (m *GatewayMetrics) RecordRequest(service, method string, status int, duration time.Duration, fromCache bool) {
	statusLabel := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(
		service, method, statusLabel, strconv.FormatBool(fromCache),
	).Inc()
	m.requestDuration.WithLabelValues(
		service, method, statusLabel,
	).Observe(duration.Seconds())
}

// RecordPolicyEvent records one resilience policy event.
func (m *GatewayMetrics) RecordPolicyEvent(service, event string, success bool, duration time.Duration) {
	m.policyEvents.WithLabelValues(
		service, event, strconv.FormatBool(success),
	).Inc()
	m.policyDuration.WithLabelValues(service, event).Observe(duration.Seconds())
}
