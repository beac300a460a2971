package pipeline

import (
	"time"
)

// RequestDescriptor carries one inbound request through the pipeline.
// It is created per call, never mutated after construction, and
// consumed by the authorizer, cache, and orchestrator. Values are
// expected to be sanitized and length-bounded before entering the
// pipeline.
type RequestDescriptor struct {
	Service string
	Method  string
	Path    string
	Query   map[string][]string
	Headers map[string]string
	Body    []byte

	// UseCache opts the request into response caching. Defaults to
	// true via NewRequestDescriptor.
	UseCache bool

	// CacheTTLOverride replaces the service-level TTL when positive.
	CacheTTLOverride time.Duration

	// CorrelationID is the inbound correlation identifier, if any.
	// The pipeline generates one when absent.
	CorrelationID string
}

// NewRequestDescriptor creates a descriptor with caching opted in.
func NewRequestDescriptor(service, method, path string) *RequestDescriptor {
	return &RequestDescriptor{
		Service:  service,
		Method:   method,
		Path:     path,
		UseCache: true,
	}
}
