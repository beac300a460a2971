// Package observability provides logging, metrics, and tracing for the gateway.
//
// Logging is structured and backed by zap. Metrics are Prometheus collectors
// exposed on the metrics endpoint. Tracing is OpenTelemetry with an optional
// OTLP gRPC exporter; when disabled, a no-op tracer is installed so
// instrumentation sites never need to branch.
package observability
