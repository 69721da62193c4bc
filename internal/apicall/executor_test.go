package apicall

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method  string
	path    string
	query   map[string][]string
	headers http.Header
	body    []byte
}

func newTestServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	seen := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.method = r.Method
		seen.path = r.URL.Path
		seen.query = r.URL.Query()
		seen.headers = r.Header.Clone()
		seen.body, _ = io.ReadAll(r.Body)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

type spyObserver struct {
	requestHeaders map[string]string
	responses      int
}

func (s *spyObserver) LogRequest(_, _ string, headers map[string]string, _ map[string]any, _ any) {
	s.requestHeaders = headers
}

func (s *spyObserver) LogResponse(int, time.Duration, any) { s.responses++ }

func TestExecuteValidation(t *testing.T) {
	exec := NewExecutor(nil, nil, nil)

	tests := []struct {
		name string
		call Call
		want string
	}{
		{name: "missing url", call: Call{Method: "GET"}, want: "URL is required"},
		{name: "missing method", call: Call{URL: "https://api.example.com"}, want: "Method is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec.Execute(context.Background(), tt.call)
			require.False(t, res.OK())
			assert.Equal(t, KindValidation, res.Err.Kind)
			assert.Equal(t, map[string]any{"error": tt.want}, res.Payload)
		})
	}
}

func TestExecuteJSONObject(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusOK, "application/json", `{"ok": true}`)
	store := NewHeaderStore()
	store.Set("Authorization", "Bearer default-secret")
	obs := &spyObserver{}
	exec := NewExecutor(store, srv.Client(), obs)

	res := exec.Execute(context.Background(), Call{
		URL:     srv.URL + "/items",
		Method:  "post",
		Body:    map[string]any{"name": "widget"},
		Params:  map[string]any{"limit": float64(5), "tag": []any{"a", "b"}},
		Headers: map[string]string{"X-Trace": "t-1"},
	})

	require.True(t, res.OK(), "unexpected failure: %+v", res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"ok": true, "status_code": 200}, res.Payload)

	assert.Equal(t, http.MethodPost, seen.method)
	assert.Equal(t, "/items", seen.path)
	assert.Equal(t, []string{"5"}, seen.query["limit"])
	assert.Equal(t, []string{"a", "b"}, seen.query["tag"])
	assert.Equal(t, "Bearer default-secret", seen.headers.Get("Authorization"))
	assert.Equal(t, "t-1", seen.headers.Get("X-Trace"))
	assert.Equal(t, "application/json", seen.headers.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"widget"}`, string(seen.body))

	assert.Equal(t, 1, obs.responses)
	assert.Equal(t, "Bearer default-secret", obs.requestHeaders["Authorization"], "observer masks on its own")
}

func TestExecuteCallHeadersOverrideDefaults(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusOK, "application/json", `{}`)
	store := NewHeaderStore()
	store.Set("Authorization", "Bearer default")
	exec := NewExecutor(store, srv.Client(), nil)

	res := exec.Execute(context.Background(), Call{
		URL:     srv.URL,
		Method:  "GET",
		Headers: map[string]string{"Authorization": "Bearer per-call"},
	})

	require.True(t, res.OK())
	assert.Equal(t, "Bearer per-call", seen.headers.Get("Authorization"))
	assert.Empty(t, seen.body)
}

func TestExecuteCallHeadersOverrideDefaultsIgnoringCase(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusOK, "application/json", `{}`)
	store := NewHeaderStore()
	store.Set("Authorization", "Bearer default-token")
	obs := &spyObserver{}
	exec := NewExecutor(store, srv.Client(), obs)

	for i := 0; i < 50; i++ {
		res := exec.Execute(context.Background(), Call{
			URL:     srv.URL,
			Method:  "GET",
			Headers: map[string]string{"authorization": "Bearer override", "content-type": "text/plain"},
		})
		require.True(t, res.OK())
		require.Equal(t, []string{"Bearer override"}, seen.headers.Values("Authorization"), "call %d", i)
		require.Equal(t, []string{"text/plain"}, seen.headers.Values("Content-Type"), "call %d", i)
	}
	assert.NotContains(t, obs.requestHeaders, "Authorization")
	assert.Equal(t, "Bearer override", obs.requestHeaders["authorization"])
}

func TestExecuteBodyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]any
	}{
		{name: "list is wrapped", body: `[1, 2]`, want: map[string]any{"data": []any{float64(1), float64(2)}, "status_code": 200}},
		{name: "plain text kept raw", body: `hello`, want: map[string]any{"text": "hello", "status_code": 200}},
		{name: "empty body", body: ``, want: map[string]any{"text": "", "status_code": 200}},
		{name: "scalar is wrapped", body: `42`, want: map[string]any{"data": float64(42), "status_code": 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, http.StatusOK, "", tt.body)
			res := NewExecutor(nil, srv.Client(), nil).Execute(context.Background(), Call{URL: srv.URL, Method: "GET"})
			require.True(t, res.OK())
			assert.Equal(t, tt.want, res.Payload)
		})
	}
}

func TestExecuteApplicationErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantError   string
		wantMessage any
	}{
		{
			name:      "unauthorized",
			status:    http.StatusUnauthorized,
			body:      `{"detail": "nope"}`,
			wantError: "Authentication failed (401): Check your API key",
		},
		{
			name:      "forbidden",
			status:    http.StatusForbidden,
			body:      `{}`,
			wantError: "Access forbidden (403): Check your API key permissions",
		},
		{
			name:        "not found with message",
			status:      http.StatusNotFound,
			body:        `{"message": "no such item"}`,
			wantError:   "API call failed with status code 404: Not Found",
			wantMessage: "no such item",
		},
		{
			name:        "nested error message",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error": {"message": "bad field", "code": 7}}`,
			wantError:   "API call failed with status code 422: Unprocessable Entity",
			wantMessage: "bad field",
		},
		{
			name:        "flat error string",
			status:      http.StatusBadRequest,
			body:        `{"error": "invalid_grant"}`,
			wantError:   "API call failed with status code 400: Bad Request",
			wantMessage: "invalid_grant",
		},
		{
			name:      "text body",
			status:    http.StatusBadGateway,
			body:      `upstream down`,
			wantError: "API call failed with status code 502: Bad Gateway",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, "application/json", tt.body)
			store := NewHeaderStore()
			store.Set("X-Api-Key", "live_0123456789")
			res := NewExecutor(store, srv.Client(), nil).Execute(context.Background(), Call{URL: srv.URL, Method: "GET"})

			require.False(t, res.OK())
			assert.Equal(t, KindApplication, res.Err.Kind)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.status, res.Payload["status_code"])
			assert.Equal(t, tt.wantError, res.Payload["error"])
			if tt.wantMessage != nil {
				assert.Equal(t, tt.wantMessage, res.Payload["error_message"])
			} else {
				assert.NotContains(t, res.Payload, "error_message")
			}

			debug, ok := res.Payload["request"].(map[string]any)
			require.True(t, ok)
			headers := debug["headers"].(map[string]string)
			assert.Equal(t, "live********", headers["X-Api-Key"])
		})
	}
}

func TestExecuteUnauthorizedMentionsStatus(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusUnauthorized, "", ``)
	res := NewExecutor(nil, srv.Client(), nil).Execute(context.Background(), Call{URL: srv.URL, Method: "GET"})

	require.False(t, res.OK())
	assert.Contains(t, res.Payload["error"], "401")
	assert.Contains(t, res.Payload["error"], "Authentication failed")
}

func TestExecuteUnreachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	store := NewHeaderStore()
	store.Set("Authorization", "Bearer 0123456789abcdef")
	res := NewExecutor(store, nil, nil).Execute(context.Background(), Call{URL: "http://" + addr + "/x", Method: "GET"})

	require.False(t, res.OK())
	assert.Equal(t, KindTransport, res.Err.Kind)
	assert.Equal(t, 500, res.StatusCode)
	assert.Equal(t, 500, res.Payload["status_code"])
	assert.NotEmpty(t, res.Payload["error"])
	assert.Equal(t, "connection", res.Payload["exception_type"])

	debug := res.Payload["request"].(map[string]any)
	assert.Equal(t, "Bearer ********", debug["headers"].(map[string]string)["Authorization"])
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	res := NewExecutor(nil, srv.Client(), nil).Execute(context.Background(), Call{
		URL:     srv.URL,
		Method:  "GET",
		Timeout: 50 * time.Millisecond,
	})

	require.False(t, res.OK())
	assert.Equal(t, "timeout", res.Payload["exception_type"])
	assert.Equal(t, 500, res.StatusCode)
}

func TestExecuteInvalidURL(t *testing.T) {
	res := NewExecutor(nil, nil, nil).Execute(context.Background(), Call{URL: "://bad", Method: "GET"})
	require.False(t, res.OK())
	assert.Equal(t, KindTransport, res.Err.Kind)
	assert.Equal(t, "invalid_request", res.Payload["exception_type"])
}

func TestResultJSON(t *testing.T) {
	res := Result{Payload: map[string]any{"ok": true, "status_code": 200}}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.JSON()), &decoded))
	assert.Equal(t, true, decoded["ok"])
	assert.Equal(t, float64(200), decoded["status_code"])
}
