// Package resilience composes retry, circuit breaking, and timeouts
// around upstream calls. Policies are built once per service and
// memoized in a registry so circuit state is continuous across
// requests. Composition order is retry around breaker around per-try
// timeout, with an independent overall timeout bounding the whole
// execution.
package resilience
