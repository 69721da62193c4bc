package apicall

import (
	"encoding/json"
	"fmt"
	"time"
)

// Keys of the result payload returned to the model.
const (
	KeyError         = "error"
	KeyErrorMessage  = "error_message"
	KeyExceptionType = "exception_type"
	KeyRequest       = "request"
	KeyStatusCode    = "status_code"
	KeyText          = "text"
	KeyData          = "data"
)

// ErrorKind classifies why a tool call did not succeed.
type ErrorKind string

const (
	// KindValidation means the call was rejected before any request was sent.
	KindValidation ErrorKind = "validation"
	// KindTransport means the request never produced an HTTP response.
	KindTransport ErrorKind = "transport"
	// KindApplication means the endpoint answered with a status >= 400.
	KindApplication ErrorKind = "application"
	// KindUnsupported means no handler exists for the invoked tool.
	KindUnsupported ErrorKind = "unsupported"
)

// CallError describes a failed tool call. It travels inside a Result and is
// never returned as a Go error by the Executor.
type CallError struct {
	Kind          ErrorKind
	Message       string
	StatusCode    int
	ExceptionType string
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Result is the outcome of a single tool call. Payload is always populated
// and is what gets serialised into the tool_result sent to the model, whether
// or not the call failed.
type Result struct {
	StatusCode int
	Payload    map[string]any
	Duration   time.Duration
	Err        *CallError
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// JSON renders the payload the way it is handed back to the model.
func (r Result) JSON() string {
	b, err := json.MarshalIndent(r.Payload, "", "  ")
	if err != nil {
		// Payloads are built from decoded JSON and plain values, so this only
		// happens if a caller stuffed something exotic into a request body.
		fallback, _ := json.Marshal(map[string]any{KeyError: fmt.Sprintf("failed to encode tool result: %v", err)})
		return string(fallback)
	}
	return string(b)
}

// NewFailure builds a result for a call that was rejected without any HTTP traffic.
func NewFailure(kind ErrorKind, message string) Result {
	return Result{
		Payload: map[string]any{KeyError: message},
		Err:     &CallError{Kind: kind, Message: message},
	}
}
