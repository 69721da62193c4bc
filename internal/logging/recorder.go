// Package logging writes the structured audit trail of a conversation run:
// outbound tool requests and their responses, tool executions, and model
// round trips. Credentials are masked and emoji are stripped before a record
// reaches the sink.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 5
)

// Record kinds, emitted as the "type" attribute.
const (
	TypeRequest       = "request"
	TypeResponse      = "response"
	TypeToolExecution = "tool_execution"
	TypeModelRequest  = "model_request"
	TypeModelResponse = "model_response"
)

// Options configures the file sink.
type Options struct {
	// Dir is created if missing. Defaults to "logs".
	Dir string
	// File defaults to openapi_agent_<timestamp>.log.
	File  string
	Level slog.Level
}

// Recorder is the logging collaborator shared by the executor and the
// conversation loop. It is safe for concurrent use.
type Recorder struct {
	logger  *slog.Logger
	console *slog.Logger
	path    string
	closer  io.Closer
}

var _ apicall.Observer = (*Recorder)(nil)

// New opens a rotating log file and returns a Recorder writing JSON records to it.
func New(opts Options) (*Recorder, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file := opts.File
	if file == "" {
		file = fmt.Sprintf("openapi_agent_%s.log", time.Now().Format("20060102_150405"))
	}
	path := filepath.Join(dir, file)

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}
	r := newRecorder(sink, opts.Level)
	r.path = path
	r.closer = sink
	r.logger.Debug("Logging initialized", "path", path)
	return r, nil
}

// NewWithWriter returns a Recorder writing JSON records to w.
func NewWithWriter(w io.Writer, level slog.Level) *Recorder {
	return newRecorder(w, level)
}

// Nop returns a Recorder that drops everything.
func Nop() *Recorder {
	return &Recorder{
		logger:  slog.New(slog.DiscardHandler),
		console: slog.New(slog.DiscardHandler),
	}
}

func newRecorder(w io.Writer, level slog.Level) *Recorder {
	return &Recorder{
		logger:  slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})),
		console: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

// Path is the file being written, or "" when the Recorder has no file sink.
func (r *Recorder) Path() string { return r.path }

// Close flushes and closes the file sink, if any.
func (r *Recorder) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Warn records a warning in the file and echoes it to stderr.
func (r *Recorder) Warn(msg string, args ...any) {
	msg = StripEmoji(msg)
	r.logger.Warn(msg, args...)
	r.console.Warn(msg, args...)
}

// Error records an error in the file and echoes it to stderr.
func (r *Recorder) Error(msg string, args ...any) {
	msg = StripEmoji(msg)
	r.logger.Error(msg, args...)
	r.console.Error(msg, args...)
}

// LogRequest records an outbound tool request. Headers are masked here no
// matter what the caller passed.
func (r *Recorder) LogRequest(method, rawURL string, headers map[string]string, params map[string]any, body any) {
	r.logger.Debug("API Request",
		"type", TypeRequest,
		"method", method,
		"url", rawURL,
		"headers", apicall.MaskHeaders(headers),
		"params", Sanitize(params),
		"data", Sanitize(body),
	)
}

// LogResponse records the normalised response of a tool request.
func (r *Recorder) LogResponse(statusCode int, duration time.Duration, data any) {
	r.logger.Debug("API Response",
		"type", TypeResponse,
		"status_code", statusCode,
		"duration", duration.Seconds(),
		"data", Sanitize(data),
	)
}

// LogToolExecution records one dispatched tool invocation.
func (r *Recorder) LogToolExecution(toolName string, input map[string]any, result map[string]any, duration time.Duration, success bool) {
	r.logger.Debug("Tool Execution: "+toolName,
		"type", TypeToolExecution,
		"tool_name", toolName,
		"input", Sanitize(input),
		"result", Sanitize(result),
		"duration", duration.Seconds(),
		"success", success,
	)
}

// LogModelRequest records a request to the model. messages is encoded in its
// JSON form.
func (r *Recorder) LogModelRequest(model string, maxTokens int, messages any) {
	r.logger.Debug("Model API Request",
		"type", TypeModelRequest,
		"model", model,
		"max_tokens", maxTokens,
		"messages", Sanitize(messages),
	)
}

// LogModelResponse records the model's reply.
func (r *Recorder) LogModelResponse(response any, duration time.Duration) {
	r.logger.Debug("Model API Response",
		"type", TypeModelResponse,
		"duration", duration.Seconds(),
		"response", Sanitize(response),
	)
}

// Sanitize returns v in its generic JSON form with emoji stripped from every
// string and credential members masked. Values that cannot be encoded are replaced by their %v rendering.
func Sanitize(v any) any {
	return apicall.MaskSensitive(sanitize(v))
}

func sanitize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return StripEmoji(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitize(item)
		}
		return out
	case bool, int, int64, float64:
		return val
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return StripEmoji(fmt.Sprintf("%v", v))
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return StripEmoji(string(raw))
	}
	return sanitize(generic)
}
