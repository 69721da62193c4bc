package apicall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dileep-u-k/openapi-agent/internal/version"
)

// DefaultTimeout bounds a tool call when the caller does not set one.
const DefaultTimeout = 30 * time.Second

// Call describes one outbound HTTP request requested by the model.
type Call struct {
	URL     string
	Method  string
	Body    any
	Params  map[string]any
	Headers map[string]string
	Timeout time.Duration
}

// Observer receives request and response records. Implementations are
// expected to mask headers themselves; the Executor only ever hands them the
// merged header set.
type Observer interface {
	LogRequest(method, rawURL string, headers map[string]string, params map[string]any, body any)
	LogResponse(statusCode int, duration time.Duration, data any)
}

type nopObserver struct{}

func (nopObserver) LogRequest(string, string, map[string]string, map[string]any, any) {}
func (nopObserver) LogResponse(int, time.Duration, any)                               {}

// Executor performs tool calls against arbitrary HTTP endpoints.
type Executor struct {
	headers    *HeaderStore
	httpClient *http.Client
	observer   Observer
}

// NewExecutor creates an Executor. A nil httpClient falls back to a dedicated
// client without a global timeout (each call carries its own), and a nil
// observer discards records.
func NewExecutor(headers *HeaderStore, httpClient *http.Client, observer Observer) *Executor {
	if headers == nil {
		headers = NewHeaderStore()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Executor{headers: headers, httpClient: httpClient, observer: observer}
}

// Headers exposes the store this Executor reads defaults from.
func (e *Executor) Headers() *HeaderStore { return e.headers }

// Execute performs the call and normalises the outcome. It never returns an
// error: validation, transport and HTTP failures are all encoded in the
// returned Result.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	if call.URL == "" {
		return NewFailure(KindValidation, "URL is required")
	}
	if call.Method == "" {
		return NewFailure(KindValidation, "Method is required")
	}

	headers := e.headers.Merge(call.Headers)
	debug := debugInfo(call, headers)

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.observer.LogRequest(call.Method, call.URL, headers, call.Params, call.Body)

	start := time.Now()
	req, err := buildRequest(ctx, call, headers)
	if err != nil {
		return transportFailure(err, "invalid_request", debug, time.Since(start))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return transportFailure(err, exceptionType(err), debug, time.Since(start))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(err, "read", debug, time.Since(start))
	}
	duration := time.Since(start)

	payload, decoded := normalizeBody(raw, resp.StatusCode)
	e.observer.LogResponse(resp.StatusCode, duration, payload)

	result := Result{StatusCode: resp.StatusCode, Payload: payload, Duration: duration}
	if resp.StatusCode >= http.StatusBadRequest {
		result.Err = applicationFailure(payload, decoded, resp, debug)
	}
	return result
}

func buildRequest(ctx context.Context, call Call, headers map[string]string) (*http.Request, error) {
	target, err := url.Parse(call.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", call.URL, err)
	}
	if len(call.Params) > 0 {
		query := target.Query()
		for key, value := range call.Params {
			addParam(query, key, value)
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		encoded, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(call.Method), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

// addParam encodes a decoded JSON value as one or more query values.
func addParam(query url.Values, key string, value any) {
	switch v := value.(type) {
	case nil:
	case []any:
		for _, item := range v {
			addParam(query, key, item)
		}
	case []string:
		for _, item := range v {
			query.Add(key, item)
		}
	case string:
		query.Add(key, v)
	default:
		query.Add(key, fmt.Sprint(v))
	}
}

// normalizeBody decodes a response body into the payload map. The second
// return value is the decoded JSON body, or nil when it was not JSON.
func normalizeBody(raw []byte, statusCode int) (map[string]any, any) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{KeyText: string(raw), KeyStatusCode: statusCode}, nil
	}
	switch v := decoded.(type) {
	case map[string]any:
		payload := make(map[string]any, len(v)+1)
		for k, val := range v {
			payload[k] = val
		}
		payload[KeyStatusCode] = statusCode
		return payload, decoded
	default:
		return map[string]any{KeyData: v, KeyStatusCode: statusCode}, decoded
	}
}

func applicationFailure(payload map[string]any, decoded any, resp *http.Response, debug map[string]any) *CallError {
	msg := fmt.Sprintf("API call failed with status code %d", resp.StatusCode)
	if reason := reasonPhrase(resp); reason != "" {
		msg += ": " + reason
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		msg = "Authentication failed (401): Check your API key"
	case http.StatusForbidden:
		msg = "Access forbidden (403): Check your API key permissions"
	}

	if body, ok := decoded.(map[string]any); ok {
		if detail, found := bodyErrorMessage(body); found {
			payload[KeyErrorMessage] = detail
		}
	}
	payload[KeyError] = msg
	payload[KeyRequest] = debug

	return &CallError{Kind: KindApplication, Message: msg, StatusCode: resp.StatusCode}
}

// bodyErrorMessage extracts the endpoint's own error description, looking at
// "message" first and then "error" (or "error.message" when it is an object).
func bodyErrorMessage(body map[string]any) (any, bool) {
	if msg, ok := body["message"]; ok {
		return msg, true
	}
	errVal, ok := body["error"]
	if !ok {
		return nil, false
	}
	if nested, isMap := errVal.(map[string]any); isMap {
		if msg, has := nested["message"]; has {
			return msg, true
		}
	}
	return errVal, true
}

func reasonPhrase(resp *http.Response) string {
	if _, reason, found := strings.Cut(resp.Status, " "); found && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

func transportFailure(err error, kind string, debug map[string]any, duration time.Duration) Result {
	msg := fmt.Sprintf("Request failed: %v", err)
	return Result{
		StatusCode: http.StatusInternalServerError,
		Duration:   duration,
		Payload: map[string]any{
			KeyError:         msg,
			KeyExceptionType: kind,
			KeyRequest:       debug,
			KeyStatusCode:    http.StatusInternalServerError,
		},
		Err: &CallError{
			Kind:          KindTransport,
			Message:       msg,
			StatusCode:    http.StatusInternalServerError,
			ExceptionType: kind,
		},
	}
}

func exceptionType(err error) string {
	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return "connection"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "request"
	}
}

// debugInfo is the masked snapshot of the outbound request attached to failures.
func debugInfo(call Call, headers map[string]string) map[string]any {
	return map[string]any{
		"method":      call.Method,
		"url":         call.URL,
		"headers":     MaskHeaders(headers),
		"params":      call.Params,
		"requestBody": call.Body,
	}
}
