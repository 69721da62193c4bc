package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/openapi-agent/internal/llm"
	"github.com/dileep-u-k/openapi-agent/internal/logging"
	"github.com/dileep-u-k/openapi-agent/internal/stats"
)

func TestRunFeedsProfilerAndRecorder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	profiler := stats.NewProfiler(rdb)

	var logs bytes.Buffer
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("toolu_1", "api_call_get_x", map[string]any{"url": "https://api.example.com/x", "method": "GET"}),
		textResponse("done"),
	}}
	o := New(client, testToolset, newManager(jsonTransport(500, `{"error": "boom"}`)), Config{Model: "claude-test"},
		WithProfiler(profiler),
		WithRecorder(logging.NewWithWriter(&logs, slog.LevelDebug)),
	)

	_, err := o.Run(context.Background(), "q", nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	model, err := profiler.Get(ctx, stats.KindModel, "claude-test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), model.TotalSuccesses)
	assert.Equal(t, int64(13), model.TotalInputTokens)

	tool, err := profiler.Get(ctx, stats.KindTool, "api_call_get_x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tool.TotalFailures)

	out := logs.String()
	assert.Contains(t, out, `"type":"model_request"`)
	assert.Contains(t, out, `"type":"model_response"`)
	assert.Contains(t, out, `"type":"tool_execution"`)
	assert.Contains(t, out, `"success":false`)
}

func TestModelFailureIsProfiled(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	profiler := stats.NewProfiler(rdb)

	client := &scriptedClient{err: errors.New("connection reset")}
	o := New(client, testToolset, newManager(jsonTransport(200, `{}`)), Config{Model: "claude-test"}, WithProfiler(profiler))

	_, err := o.Run(context.Background(), "q", nil, nil)
	require.Error(t, err)

	prof, err := profiler.Get(context.Background(), stats.KindModel, "claude-test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prof.TotalFailures)
	assert.Equal(t, "degraded", prof.Status)
}
