// Package forward is the transport layer for upstream calls. The
// engine owns the mechanics of sending one HTTP request; failures are
// classified into a small closed set of outcome kinds so the pipeline
// can map them to gateway status codes without inspecting transport
// internals.
package forward
