package forward

import (
	"context"
	"errors"
	"fmt"
)

// OutcomeKind classifies a transport failure. The set is closed: the
// pipeline maps each kind to a gateway status and treats anything it
// does not recognize as OutcomeUnknown.
type OutcomeKind int

const (
	// OutcomeMalformedRequest means the outbound request could not be
	// constructed from the descriptor.
	OutcomeMalformedRequest OutcomeKind = iota

	// OutcomeTimeout means the attempt's deadline expired in transit.
	OutcomeTimeout

	// OutcomeNoDestination means no backend could be reached.
	OutcomeNoDestination

	// OutcomeBodyError means the response arrived but its body could
	// not be read.
	OutcomeBodyError

	// OutcomeUnknown covers every other transport failure.
	OutcomeUnknown
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMalformedRequest:
		return "malformed-request"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNoDestination:
		return "no-destination"
	case OutcomeBodyError:
		return "body-error"
	default:
		return "unknown"
	}
}

// TransportError is a classified transport failure.
type TransportError struct {
	Kind OutcomeKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// KindOf extracts the outcome kind from an error chain, defaulting to
// OutcomeUnknown for unclassified errors.
func KindOf(err error) OutcomeKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return OutcomeUnknown
}

// Request is one outbound upstream request.
type Request struct {
	Method    string
	TargetURL string
	Headers   map[string]string
	Body      []byte
}

// Response is a completed upstream response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Engine sends upstream requests. A non-nil error is always a
// *TransportError; a nil error means the response carries a valid
// status code, whatever that code is.
type Engine interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}
