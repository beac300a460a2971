package pipeline

import (
	"encoding/json"
)

// Result is the terminal value of one pipeline execution. A nil
// Failure means success; a non-nil Failure carries the gateway-facing
// error. A Result is never re-entered into the pipeline.
type Result struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	FromCache  bool

	Failure *Failure
}

// Failure describes a gateway-facing error.
type Failure struct {
	StatusCode    int    `json:"-"`
	Message       string `json:"message"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlationId"`
}

// Success reports whether the result carries an upstream response.
func (r *Result) Success() bool {
	return r.Failure == nil
}

// failureEnvelope is the wire shape of an error response.
type failureEnvelope struct {
	Error *Failure `json:"error"`
}

// JSON renders the structured error body returned to the caller.
func (f *Failure) JSON() []byte {
	data, err := json.Marshal(failureEnvelope{Error: f})
	if err != nil {
		// Fields are plain strings; this cannot fail in practice.
		return []byte(`{"error":{"message":"internal gateway error"}}`)
	}
	return data
}

// successResult builds a Result from an upstream response.
func successResult(statusCode int, headers map[string]string, body []byte, fromCache bool) *Result {
	return &Result{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		FromCache:  fromCache,
	}
}

// failureResult builds a failed Result.
func failureResult(statusCode int, message, details, correlationID string) *Result {
	return &Result{
		StatusCode: statusCode,
		Failure: &Failure{
			StatusCode:    statusCode,
			Message:       message,
			Details:       details,
			CorrelationID: correlationID,
		},
	}
}
