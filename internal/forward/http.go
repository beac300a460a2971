package forward

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaymesh/apigw/internal/observability"
)

// forwardTracerName is the OpenTelemetry tracer name for upstream calls.
const forwardTracerName = "apigw/forward"

// hopHeaders are transport-framing headers that are never forwarded in
// either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// maxResponseBody bounds how much of an upstream body is buffered.
const maxResponseBody = 32 << 20

// httpEngine implements Engine over net/http.
type httpEngine struct {
	client *http.Client
	logger observability.Logger
}

// EngineOption is a functional option for the HTTP engine.
type EngineOption func(*httpEngine)

// WithEngineLogger sets the logger.
func WithEngineLogger(logger observability.Logger) EngineOption {
	return func(e *httpEngine) {
		e.logger = logger
	}
}

// WithEngineClient sets a custom HTTP client.
func WithEngineClient(client *http.Client) EngineOption {
	return func(e *httpEngine) {
		e.client = client
	}
}

// NewHTTPEngine creates an Engine backed by a pooled HTTP client.
// Deadlines come from the caller's context, not the client, so the
// resilience layer stays in control of timeouts.
func NewHTTPEngine(opts ...EngineOption) Engine {
	e := &httpEngine{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return e
}

// Send performs one upstream request and classifies any failure.
func (e *httpEngine) Send(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := otel.Tracer(forwardTracerName).Start(ctx, "forward.Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.TargetURL),
		),
	)
	defer span.End()

	resp, err := e.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func (e *httpEngine) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.TargetURL, body)
	if err != nil {
		return nil, &TransportError{Kind: OutcomeMalformedRequest, Err: err}
	}

	for name, value := range req.Headers {
		if isHopHeader(name) {
			continue
		}
		httpReq.Header.Set(name, value)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, e.classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, err
		case errors.Is(err, context.DeadlineExceeded):
			return nil, &TransportError{Kind: OutcomeTimeout, Err: err}
		}
		return nil, &TransportError{Kind: OutcomeBodyError, Err: err}
	}

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		if isHopHeader(name) {
			continue
		}
		headers[name] = resp.Header.Get(name)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}

// classify maps a client error onto the closed outcome set. Caller
// cancellation is not a transport outcome and passes through untouched
// so it is never counted as an upstream timeout.
func (e *httpEngine) classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: OutcomeTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: OutcomeTimeout, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportError{Kind: OutcomeNoDestination, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransportError{Kind: OutcomeNoDestination, Err: err}
	}

	e.logger.Debug("unclassified transport error", observability.Error(err))
	return &TransportError{Kind: OutcomeUnknown, Err: err}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
