// Package pipeline orchestrates request processing: route
// authorization, response cache lookup, resilient forwarding, cache
// store, and error mapping. The orchestrator is the last-resort error
// boundary; no failure inside it may escape as a panic.
package pipeline
