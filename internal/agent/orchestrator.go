// Package agent drives the conversation between the model and the tools it
// invokes until the model answers without a tool call or the iteration cap
// is reached.
package agent

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/dileep-u-k/openapi-agent/internal/api"
	"github.com/dileep-u-k/openapi-agent/internal/history"
	"github.com/dileep-u-k/openapi-agent/internal/llm"
	"github.com/dileep-u-k/openapi-agent/internal/stats"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
)

// DefaultMaxIterations caps the model round trips of one run.
const DefaultMaxIterations = 10

// Status tags the progress events reported through a StatusFunc.
type Status string

const (
	StatusThinking Status = "thinking"
	StatusResponse Status = "response"
	StatusToolCall Status = "tool_call"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// StatusFunc receives progress events while a run is in flight.
type StatusFunc func(message string, status Status)

// StopReason tells how a run ended.
type StopReason string

const (
	// StopCompleted means the model answered without invoking a tool.
	StopCompleted StopReason = "completed"
	// StopIterationLimit means the cap was hit and the last response was kept.
	StopIterationLimit StopReason = "iteration_limit"
)

// Recorder receives the structured audit records of a run.
type Recorder interface {
	LogToolExecution(toolName string, input map[string]any, result map[string]any, duration time.Duration, success bool)
	LogModelRequest(model string, maxTokens int, messages any)
	LogModelResponse(response any, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) LogToolExecution(string, map[string]any, map[string]any, time.Duration, bool) {}
func (nopRecorder) LogModelRequest(string, int, any)                                            {}
func (nopRecorder) LogModelResponse(any, time.Duration)                                         {}

// Config holds the per-run model settings.
type Config struct {
	Model         string
	MaxTokens     int
	MaxIterations int
	System        string
}

// Result is the outcome of one run.
type Result struct {
	// Response is the last model response: the final answer, or the last
	// tool-invoking response when the iteration cap was hit.
	Response *llm.Response
	// Messages is the conversation as sent on the last round trip: prior
	// messages, the query, and every tool-use / tool-result pair.
	Messages   []llm.Message
	Iterations int
	StopReason StopReason
	Usage      api.Usage
}

// Transcript returns Messages followed by the final assistant reply, ready
// to be passed as prior messages of the next run.
func (r *Result) Transcript() []llm.Message {
	out := slices.Clone(r.Messages)
	if r.Response != nil && r.StopReason == StopCompleted {
		out = append(out, llm.Message{Role: llm.RoleAssistant, Content: r.Response.Content})
	}
	return out
}

// Orchestrator runs conversations. One Orchestrator owns one History, so
// concurrent runs need one Orchestrator each.
type Orchestrator struct {
	client   llm.Client
	toolset  []tools.Tool
	manager  *tools.ToolManager
	history  *history.History
	recorder Recorder
	profiler *stats.Profiler
	cfg      Config
	now      func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithHistory shares an existing execution history.
func WithHistory(h *history.History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithRecorder sets the audit recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithProfiler enables usage statistics.
func WithProfiler(p *stats.Profiler) Option {
	return func(o *Orchestrator) { o.profiler = p }
}

// New creates an Orchestrator advertising toolset and dispatching invocations through manager.
func New(client llm.Client, toolset []tools.Tool, manager *tools.ToolManager, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	o := &Orchestrator{
		client:   client,
		toolset:  toolset,
		manager:  manager,
		history:  history.New(),
		recorder: nopRecorder{},
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// History is the execution history of the current (or last) run.
func (o *Orchestrator) History() *history.History { return o.history }

// Run sends query after the prior messages and loops until the model stops
// invoking tools. A model error ends the run and is returned wrapped; tool
// failures never do, they are handed back to the model as tool results.
func (o *Orchestrator) Run(ctx context.Context, query string, prior []llm.Message, notify StatusFunc) (*Result, error) {
	if notify == nil {
		notify = func(string, Status) {}
	}
	o.history.Clear()

	messages := append(slices.Clone(prior), llm.NewUserText(query))
	toolset := tools.Validate(o.toolset)
	log.Printf("🤖 Starting conversation. Model: %s, Max tokens: %d", o.cfg.Model, o.cfg.MaxTokens)

	res := &Result{Messages: messages}
	for res.Iterations < o.cfg.MaxIterations {
		res.Iterations++
		notify(fmt.Sprintf("Waiting for the model's response (iteration %d/%d)...", res.Iterations, o.cfg.MaxIterations), StatusThinking)

		resp, elapsed, err := o.send(ctx, toolset, res.Messages)
		if err != nil {
			return nil, fmt.Errorf("model request failed on iteration %d: %w", res.Iterations, err)
		}
		notify(fmt.Sprintf("Response received in %.2fs", elapsed.Seconds()), StatusResponse)
		res.Response = resp
		res.Usage.Add(resp.Usage)

		toolUse, ok := resp.FirstToolUse()
		if !ok {
			log.Printf("✅ Conversation completed after %d iterations", res.Iterations)
			res.StopReason = StopCompleted
			return res, nil
		}

		content := o.dispatch(ctx, toolUse, notify)
		res.Messages = append(res.Messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.NewToolResult(toolUse.ID, content),
		)
	}

	log.Printf("⚠️ Maximum iteration limit (%d) reached", o.cfg.MaxIterations)
	res.StopReason = StopIterationLimit
	return res, nil
}

func (o *Orchestrator) send(ctx context.Context, toolset []tools.Tool, messages []llm.Message) (*llm.Response, time.Duration, error) {
	o.recorder.LogModelRequest(o.cfg.Model, o.cfg.MaxTokens, messages)

	start := time.Now()
	resp, err := o.client.CreateMessage(ctx, &llm.Request{
		Model:     o.cfg.Model,
		MaxTokens: o.cfg.MaxTokens,
		System:    o.cfg.System,
		Tools:     toolset,
		Messages:  messages,
	})
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("🚨 Error calling model API after %.2fs: %v", elapsed.Seconds(), err)
		o.profiler.RecordModelFailure(ctx, o.cfg.Model)
		return nil, elapsed, err
	}

	o.recorder.LogModelResponse(map[string]any{
		"id":          resp.ID,
		"model":       resp.Model,
		"stop_reason": resp.StopReason,
		"content":     llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
		"usage":       resp.Usage,
	}, elapsed)
	o.profiler.RecordModelSuccess(ctx, o.cfg.Model, elapsed, resp.Usage)
	return resp, elapsed, nil
}

// dispatch executes one tool invocation, records it and returns the content
// of the tool_result message.
func (o *Orchestrator) dispatch(ctx context.Context, toolUse llm.ToolUsePart, notify StatusFunc) string {
	notify("Using tool: "+toolUse.Name, StatusToolCall)
	log.Printf("🛠️ Executing tool: %s (ID: %s)", toolUse.Name, toolUse.ID)

	rec := history.Begin(toolUse.Name, toolUse.ID, toolUse.Input, o.now())
	start := time.Now()
	result := o.manager.Execute(ctx, toolUse.Name, toolUse.Input)
	elapsed := time.Since(start)
	rec.Finish(result, elapsed)
	o.history.Append(*rec)

	o.recorder.LogToolExecution(rec.ToolName, rec.Input, rec.Result, elapsed, rec.Success)
	o.profiler.RecordTool(ctx, toolUse.Name, elapsed, rec.Success)

	msg := fmt.Sprintf("Tool %s completed in %.2fs", toolUse.Name, rec.DurationSeconds)
	if rec.Success {
		notify(msg, StatusSuccess)
	} else {
		msg += " with error: " + rec.ErrorDetails.Message
		if rec.ErrorDetails.StatusCode != 0 {
			msg += fmt.Sprintf(" (Status: %d)", rec.ErrorDetails.StatusCode)
		}
		log.Printf("❌ Tool %s failed: %s", toolUse.Name, rec.ErrorDetails.Message)
		notify(msg, StatusError)
	}
	return result.JSON()
}
