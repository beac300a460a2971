// Package server exposes the gateway over HTTP. It translates inbound
// requests into pipeline descriptors, runs them through the
// orchestrator, and materializes the terminal result back onto the
// wire. Everything behind the handler is the pipeline's concern; the
// server owns listening, middleware, and graceful shutdown.
package server
