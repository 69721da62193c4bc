// Package history keeps the ledger of tool executions for one conversation run.
package history

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

// ErrorDetails describes why a recorded execution failed.
type ErrorDetails struct {
	Message       string         `json:"message"`
	StatusCode    int            `json:"status_code,omitempty"`
	ExceptionType string         `json:"exception_type,omitempty"`
	Response      map[string]any `json:"response,omitempty"`
}

// Record is one tool invocation and its outcome.
type Record struct {
	ToolName        string         `json:"tool_name"`
	ToolUseID       string         `json:"tool_use_id"`
	Timestamp       time.Time      `json:"timestamp"`
	Input           map[string]any `json:"input"`
	Result          map[string]any `json:"result"`
	DurationSeconds float64        `json:"duration_seconds"`
	Success         bool           `json:"success"`
	ErrorDetails    *ErrorDetails  `json:"error_details"`
}

// Begin starts a record for an invocation that is about to run. The record
// keeps a copy of input with credential members masked.
func Begin(toolName, toolUseID string, input map[string]any, now time.Time) *Record {
	rec := &Record{
		ToolName:  toolName,
		ToolUseID: toolUseID,
		Timestamp: now,
	}
	if input != nil {
		rec.Input, _ = apicall.MaskSensitive(input).(map[string]any)
	}
	return rec
}

// Finish completes the record from the call outcome. elapsed covers the whole
// dispatch, not just the HTTP round trip.
func (r *Record) Finish(res apicall.Result, elapsed time.Duration) {
	r.Result = res.Payload
	r.DurationSeconds = math.Round(elapsed.Seconds()*100) / 100
	r.Success = res.OK()
	if res.Err != nil {
		r.ErrorDetails = &ErrorDetails{
			Message:       res.Err.Message,
			StatusCode:    res.Err.StatusCode,
			ExceptionType: res.Err.ExceptionType,
			Response:      res.Payload,
		}
	}
}

// History is an append-only ledger of finished records. It is cleared once
// at the start of every run and never in the middle of one.
type History struct {
	mu      sync.RWMutex
	records []Record
}

// New creates an empty History.
func New() *History {
	return &History{}
}

// Append stores a finished record. The record is copied, so later changes
// to the caller's value do not leak in.
func (h *History) Append(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
}

// All returns the records in invocation order.
func (h *History) All() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.records)
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Clear drops every record.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}
