package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

var fixed = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestRecordFinishSuccess(t *testing.T) {
	rec := Begin("api_call_get_x", "toolu_1", map[string]any{"url": "https://api.example.com/x"}, fixed)
	rec.Finish(apicall.Result{StatusCode: 200, Payload: map[string]any{"ok": true, "status_code": 200}}, 1234*time.Millisecond)

	assert.True(t, rec.Success)
	assert.Nil(t, rec.ErrorDetails)
	assert.Equal(t, 1.23, rec.DurationSeconds)
	assert.Equal(t, map[string]any{"ok": true, "status_code": 200}, rec.Result)
	assert.Equal(t, fixed, rec.Timestamp)
}

func TestRecordFinishFailure(t *testing.T) {
	res := apicall.Result{
		StatusCode: 500,
		Payload:    map[string]any{"error": "Request failed: boom", "status_code": 500},
		Err:        &apicall.CallError{Kind: apicall.KindTransport, Message: "Request failed: boom", StatusCode: 500, ExceptionType: "connection"},
	}
	rec := Begin("api_call_get_x", "toolu_2", nil, fixed)
	rec.Finish(res, 6*time.Millisecond)

	assert.False(t, rec.Success)
	require.NotNil(t, rec.ErrorDetails)
	assert.Equal(t, "Request failed: boom", rec.ErrorDetails.Message)
	assert.Equal(t, 500, rec.ErrorDetails.StatusCode)
	assert.Equal(t, "connection", rec.ErrorDetails.ExceptionType)
	assert.Equal(t, res.Payload, rec.ErrorDetails.Response)
	assert.Equal(t, 0.01, rec.DurationSeconds)
}

func TestBeginMasksCredentialsInInput(t *testing.T) {
	input := map[string]any{
		"url":     "https://api.example.com/x",
		"headers": map[string]any{"x-api-key": "sk-live-abcdefgh", "Accept": "application/json"},
	}
	rec := Begin("api_call_get_x", "toolu_3", input, fixed)

	assert.Equal(t, map[string]any{
		"url":     "https://api.example.com/x",
		"headers": map[string]any{"x-api-key": "sk-l********", "Accept": "application/json"},
	}, rec.Input)
	assert.Equal(t, "sk-live-abcdefgh", input["headers"].(map[string]any)["x-api-key"])
}

func TestHistoryAppendAllClear(t *testing.T) {
	h := New()
	assert.Empty(t, h.All())

	h.Append(Record{ToolName: "a"})
	h.Append(Record{ToolName: "b"})
	require.Equal(t, 2, h.Len())

	all := h.All()
	assert.Equal(t, "a", all[0].ToolName)
	assert.Equal(t, "b", all[1].ToolName)

	all[0].ToolName = "mutated"
	assert.Equal(t, "a", h.All()[0].ToolName, "All must return a copy")

	h.Clear()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.All())
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				h.Append(Record{ToolName: "x"})
				_ = h.All()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 400, h.Len())
}
