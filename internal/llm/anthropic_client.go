package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dileep-u-k/openapi-agent/internal/api"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// --- API Data Structures ---

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    Role       `json:"role"`
	Content []wirePart `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []wirePart     `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// APIError is a non-2xx answer from a model provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("model API error (%d %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("model API error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// --- Main Client ---

// AnthropicClient talks to the Anthropic Messages API over plain HTTP.
type AnthropicClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	retryDelay time.Duration
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client. An empty endpoint selects the public API.
// The HTTP client has no timeout of its own; the caller's context bounds each call.
func NewAnthropicClient(apiKey, endpoint string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key cannot be empty")
	}
	if endpoint == "" {
		endpoint = anthropicAPIURL
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{},
		retryDelay: initialRetryDelay,
	}, nil
}

// CreateMessage sends one Messages API request.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	payload, err := buildAnthropicPayload(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build anthropic request payload: %w", err)
	}
	body, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseAnthropicResponse(body)
}

// --- Helper Functions ---

func buildAnthropicPayload(req *Request) ([]byte, error) {
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts := make([]wirePart, 0, len(m.Content))
		for _, part := range m.Content {
			// The Messages API rejects empty text blocks.
			if t, ok := part.(TextPart); ok && t.Text == "" {
				continue
			}
			w, err := toWirePart(part)
			if err != nil {
				return nil, err
			}
			parts = append(parts, w)
		}
		if len(parts) == 0 {
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: parts})
	}

	out := anthropicRequest{
		Model:     req.Model,
		MaxTokens: defaultMaxTokens,
		System:    req.System,
		Tools:     toAnthropicTools(req.Tools),
		Messages:  msgs,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	return json.Marshal(out)
}

func toAnthropicTools(toolset []tools.Tool) []anthropicTool {
	if len(toolset) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(toolset))
	for _, t := range toolset {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out
}

func parseAnthropicResponse(body []byte) (*Response, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic response: %w", err)
	}
	out := &Response{
		ID:         resp.ID,
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage: api.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		part, err := fromWirePart(block)
		if err != nil {
			// Newer block kinds (thinking, citations, ...) are not part of the loop.
			log.Printf("Skipping anthropic content block: %v", err)
			continue
		}
		out.Content = append(out.Content, part)
	}
	return out, nil
}

func (c *AnthropicClient) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	delay := c.retryDelay
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("anthropic request cancelled: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := c.createRequest(ctx, payload)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("anthropic request failed: %w", err)
			}
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", i+1, maxRetries, err)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		if err := resp.Body.Close(); err != nil {
			log.Printf("Warning: Failed to close response body: %v", err)
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response body: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := newAPIError(resp.StatusCode, body)
		if !apiErr.Retryable() {
			return nil, apiErr
		}
		lastErr = fmt.Errorf("attempt %d/%d: %w", i+1, maxRetries, apiErr)
	}
	return nil, lastErr
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if gjson.ValidBytes(body) {
		apiErr.Type = gjson.GetBytes(body, "error.type").String()
		apiErr.Message = gjson.GetBytes(body, "error.message").String()
	}
	if apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}

func (c *AnthropicClient) createRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")
	return req, nil
}
