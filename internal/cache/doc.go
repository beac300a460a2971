// Package cache provides the response cache for the gateway: a
// deterministic key builder, memory and Redis backends, and a
// fail-open gateway wrapper that keeps cache outages from affecting
// request processing.
package cache
