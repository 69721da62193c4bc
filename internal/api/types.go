// Package api defines the JSON payloads of the agent's HTTP surface and the
// token accounting shared between model clients and the stats profiler.
package api

import "encoding/json"

// Usage is the token accounting of one or more model calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
	// History holds earlier messages of the conversation in model wire format.
	History json.RawMessage `json:"history,omitempty"`
	// Model overrides the configured model for this request.
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ChatResponse is the result of POST /api/v1/chat.
type ChatResponse struct {
	RunID          string          `json:"run_id"`
	Content        string          `json:"content"`
	StopReason     string          `json:"stop_reason"`
	Iterations     int             `json:"iterations"`
	Usage          Usage           `json:"usage"`
	LatencyMS      int64           `json:"latency_ms"`
	Messages       json.RawMessage `json:"messages"`
	ToolExecutions json.RawMessage `json:"tool_executions"`
}

// HeaderUpdate is the body of PUT /api/v1/headers.
type HeaderUpdate struct {
	Headers map[string]string `json:"headers" binding:"required"`
}

// ToolSummary describes one advertised tool in GET /api/v1/tools.
type ToolSummary struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name,omitempty"`
	Description  string `json:"description"`
}

// ErrorResponse is returned by every endpoint on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
